package cnf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// String renders the clauses in DIMACS body format, one clause per line,
// each terminated with 0.
func (c *CNF) String() string {
	var b strings.Builder
	for _, cl := range c.clauses {
		for _, lit := range cl {
			b.WriteString(strconv.Itoa(lit))
			b.WriteByte(' ')
		}
		b.WriteString("0\n")
	}
	return b.String()
}

// WriteDimacs writes the CNF in DIMACS format including the header line.
func (c *CNF) WriteDimacs(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "p cnf %d %d\n", c.MaxVar(), len(c.clauses)); err != nil {
		return err
	}
	if _, err := bw.WriteString(c.String()); err != nil {
		return err
	}
	return bw.Flush()
}

// SaveFile writes the CNF in DIMACS format to the named file.
func (c *CNF) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open %q for writing", path)
	}
	if err := c.WriteDimacs(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %q", path)
	}
	return f.Close()
}

// ReadDimacs parses a DIMACS CNF. Comment lines are skipped. Every variable
// referenced must be at most maxVar, and the clause count must match the
// header.
func ReadDimacs(r io.Reader, maxVar int) (*CNF, error) {
	c := New()
	sawHeader := false
	declaredClauses := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	var clause []int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "c") {
			continue
		}
		if strings.HasPrefix(line, "p") {
			fields := strings.Fields(line)
			if len(fields) != 4 || fields[0] != "p" || fields[1] != "cnf" {
				return nil, errors.Errorf("malformed DIMACS header %q", line)
			}
			declaredMax, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, errors.Wrapf(err, "malformed DIMACS header %q", line)
			}
			if declaredMax > maxVar {
				return nil, errors.Errorf("DIMACS references variable %d beyond known maximum %d", declaredMax, maxVar)
			}
			declaredClauses, err = strconv.Atoi(fields[3])
			if err != nil {
				return nil, errors.Wrapf(err, "malformed DIMACS header %q", line)
			}
			sawHeader = true
			continue
		}
		for _, tok := range strings.Fields(line) {
			lit, err := strconv.Atoi(tok)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed literal %q", tok)
			}
			if lit == 0 {
				c.AddClause(clause...)
				clause = clause[:0]
				continue
			}
			v := lit
			if v < 0 {
				v = -v
			}
			if v > maxVar {
				return nil, errors.Errorf("DIMACS references variable %d beyond known maximum %d", v, maxVar)
			}
			clause = append(clause, lit)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(clause) != 0 {
		return nil, errors.New("unexpected end of DIMACS input inside a clause")
	}
	if !sawHeader {
		return nil, errors.New("DIMACS input has no header")
	}
	if c.NrOfClauses() != declaredClauses {
		return nil, errors.Errorf("DIMACS header declares %d clauses, found %d", declaredClauses, c.NrOfClauses())
	}
	return c, nil
}

// LoadFile reads a DIMACS file written by SaveFile.
func LoadFile(path string, maxVar int) (*CNF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open DIMACS file %q", path)
	}
	defer f.Close()
	c, err := ReadDimacs(f, maxVar)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return c, nil
}
