// Package aig reads and writes and-inverter graphs in the ASCII AIGER
// format and encodes safety specifications into the CNF forms the synthesis
// engines consume.
package aig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A Symbol is a named input or output literal.
type Symbol struct {
	Lit  uint
	Name string
}

// A Latch holds a state literal and its next-state function literal.
type Latch struct {
	Lit  uint
	Next uint
	Name string
}

// An And is one and-gate: LHS = RHS0 ∧ RHS1. Literals follow the AIGER
// convention: even literals are variables, odd literals negations, 0 is
// false and 1 is true.
type And struct {
	LHS  uint
	RHS0 uint
	RHS1 uint
}

// Graph is an and-inverter graph.
type Graph struct {
	MaxVar  uint
	Inputs  []Symbol
	Latches []Latch
	Outputs []Symbol
	Ands    []And
}

// Read parses an ASCII AIGER ("aag") file.
func Read(r io.Reader) (*Graph, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	if !scanner.Scan() {
		return nil, errors.New("empty AIGER input")
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 6 || header[0] != "aag" {
		return nil, errors.Errorf("malformed AIGER header %q", scanner.Text())
	}
	nums := make([]uint, 5)
	for i := 0; i < 5; i++ {
		n, err := strconv.ParseUint(header[i+1], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed AIGER header %q", scanner.Text())
		}
		nums[i] = uint(n)
	}
	g := &Graph{MaxVar: nums[0]}
	nIn, nLatch, nOut, nAnd := nums[1], nums[2], nums[3], nums[4]

	line := func() ([]uint, error) {
		if !scanner.Scan() {
			return nil, errors.New("unexpected end of AIGER input")
		}
		fields := strings.Fields(scanner.Text())
		out := make([]uint, len(fields))
		for i, f := range fields {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed AIGER line %q", scanner.Text())
			}
			out[i] = uint(n)
		}
		return out, nil
	}

	for i := uint(0); i < nIn; i++ {
		vs, err := line()
		if err != nil {
			return nil, err
		}
		if len(vs) != 1 {
			return nil, errors.New("malformed AIGER input line")
		}
		g.Inputs = append(g.Inputs, Symbol{Lit: vs[0]})
	}
	for i := uint(0); i < nLatch; i++ {
		vs, err := line()
		if err != nil {
			return nil, err
		}
		if len(vs) < 2 {
			return nil, errors.New("malformed AIGER latch line")
		}
		g.Latches = append(g.Latches, Latch{Lit: vs[0], Next: vs[1]})
	}
	for i := uint(0); i < nOut; i++ {
		vs, err := line()
		if err != nil {
			return nil, err
		}
		if len(vs) != 1 {
			return nil, errors.New("malformed AIGER output line")
		}
		g.Outputs = append(g.Outputs, Symbol{Lit: vs[0]})
	}
	for i := uint(0); i < nAnd; i++ {
		vs, err := line()
		if err != nil {
			return nil, err
		}
		if len(vs) != 3 {
			return nil, errors.New("malformed AIGER and line")
		}
		g.Ands = append(g.Ands, And{LHS: vs[0], RHS0: vs[1], RHS1: vs[2]})
	}

	// Symbol table and comments.
	for scanner.Scan() {
		text := scanner.Text()
		if text == "c" {
			break
		}
		fields := strings.SplitN(text, " ", 2)
		if len(fields) != 2 || len(fields[0]) < 2 {
			continue
		}
		idx, err := strconv.Atoi(fields[0][1:])
		if err != nil {
			continue
		}
		switch fields[0][0] {
		case 'i':
			if idx < len(g.Inputs) {
				g.Inputs[idx].Name = fields[1]
			}
		case 'l':
			if idx < len(g.Latches) {
				g.Latches[idx].Name = fields[1]
			}
		case 'o':
			if idx < len(g.Outputs) {
				g.Outputs[idx].Name = fields[1]
			}
		}
	}
	return g, scanner.Err()
}

// LoadFile reads an ASCII AIGER file from disk.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open AIGER file %q", path)
	}
	defer f.Close()
	g, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return g, nil
}

// Write emits the graph in ASCII AIGER format, including named symbols.
func (g *Graph) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "aag %d %d %d %d %d\n",
		g.MaxVar, len(g.Inputs), len(g.Latches), len(g.Outputs), len(g.Ands))
	for _, in := range g.Inputs {
		fmt.Fprintf(bw, "%d\n", in.Lit)
	}
	for _, l := range g.Latches {
		fmt.Fprintf(bw, "%d %d\n", l.Lit, l.Next)
	}
	for _, out := range g.Outputs {
		fmt.Fprintf(bw, "%d\n", out.Lit)
	}
	for _, a := range g.Ands {
		fmt.Fprintf(bw, "%d %d %d\n", a.LHS, a.RHS0, a.RHS1)
	}
	for i, in := range g.Inputs {
		if in.Name != "" {
			fmt.Fprintf(bw, "i%d %s\n", i, in.Name)
		}
	}
	for i, l := range g.Latches {
		if l.Name != "" {
			fmt.Fprintf(bw, "l%d %s\n", i, l.Name)
		}
	}
	for i, out := range g.Outputs {
		if out.Name != "" {
			fmt.Fprintf(bw, "o%d %s\n", i, out.Name)
		}
	}
	return bw.Flush()
}

// SaveFile writes the graph to the named file.
func (g *Graph) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open %q for writing", path)
	}
	if err := g.Write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %q", path)
	}
	return f.Close()
}
