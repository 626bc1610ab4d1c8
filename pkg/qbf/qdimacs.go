package qbf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/vars"
)

// WriteQDimacs serializes a prefix and matrix in QDIMACS format. Adjacent
// blocks with the same quantifier are fused into a single quantifier line;
// some certification tool chains reject consecutive lines with the same
// quantifier.
func WriteQDimacs(w io.Writer, reg *vars.Registry, prefix Prefix, matrix *cnf.CNF) error {
	blocks := prefix.resolve(reg)
	maxVar := matrix.MaxVar()
	for _, b := range blocks {
		for _, v := range b.Vars {
			if v > maxVar {
				maxVar = v
			}
		}
	}
	if rm := reg.MaxVar(); rm > maxVar {
		maxVar = rm
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", maxVar, matrix.NrOfClauses()); err != nil {
		return err
	}
	for _, b := range blocks {
		bw.WriteString(b.Q.String())
		for _, v := range b.Vars {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Itoa(v))
		}
		if _, err := bw.WriteString(" 0\n"); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString(matrix.String()); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadQDimacs parses a QDIMACS problem: header, quantifier lines, clauses.
// Comment lines are skipped. The returned prefix uses explicit variable
// sets.
func ReadQDimacs(r io.Reader) (Prefix, *cnf.CNF, error) {
	var prefix Prefix
	matrix := cnf.New()
	sawHeader := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	var clause []int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "c") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "p"):
			fields := strings.Fields(line)
			if len(fields) != 4 || fields[1] != "cnf" {
				return nil, nil, errors.Errorf("malformed QDIMACS header %q", line)
			}
			sawHeader = true
		case strings.HasPrefix(line, "e") || strings.HasPrefix(line, "a"):
			q := Exists
			if line[0] == 'a' {
				q = Forall
			}
			var vs []int
			for _, tok := range strings.Fields(line)[1:] {
				v, err := strconv.Atoi(tok)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "malformed quantifier line %q", line)
				}
				if v == 0 {
					break
				}
				vs = append(vs, v)
			}
			prefix = append(prefix, Block{Q: q, Vars: vs})
		default:
			for _, tok := range strings.Fields(line) {
				lit, err := strconv.Atoi(tok)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "malformed clause line %q", line)
				}
				if lit == 0 {
					matrix.AddClause(clause...)
					clause = clause[:0]
					continue
				}
				clause = append(clause, lit)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if !sawHeader {
		return nil, nil, errors.New("QDIMACS input has no header")
	}
	if len(clause) != 0 {
		return nil, nil, errors.New("unexpected end of QDIMACS input inside a clause")
	}
	return prefix, matrix, nil
}

// ParseResponse reads a solver answer in the `s cnf` protocol. The first
// nonempty line must be `s cnf 1` or `s cnf 0`; on SAT, every `V <lit> 0`
// token sequence contributes one model literal.
func ParseResponse(r io.Reader) (model []int, sat bool, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	sawVerdict := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawVerdict {
			switch {
			case strings.HasPrefix(line, "s cnf 1"):
				sat = true
			case strings.HasPrefix(line, "s cnf 0"):
				return nil, false, nil
			default:
				return nil, false, errors.Errorf("unexpected solver response %q", line)
			}
			sawVerdict = true
			continue
		}
		if !strings.HasPrefix(line, "V") {
			continue
		}
		fields := strings.Fields(line)
		for i := 1; i < len(fields); i++ {
			lit, convErr := strconv.Atoi(fields[i])
			if convErr != nil {
				return nil, false, errors.Wrapf(convErr, "malformed model line %q", line)
			}
			if lit == 0 {
				continue
			}
			model = append(model, lit)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	if !sawVerdict {
		return nil, false, errors.New("empty solver response")
	}
	return model, sat, nil
}

// ParseAssignmentLines reads the alternative preprocessor protocol of plain
// `<var> <lit>` lines. Variables reported as don't-care (value 0) are
// omitted from the model.
func ParseAssignmentLines(r io.Reader, interest []int) ([]int, error) {
	want := make(map[int]bool, len(interest))
	for _, v := range interest {
		if v < 0 {
			v = -v
		}
		want[v] = true
	}
	var model []int
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err1 := strconv.Atoi(fields[0])
		lit, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		if lit == 0 || !want[abs(v)] {
			continue
		}
		model = append(model, lit)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return model, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
