// Package qbf decides quantified Boolean formulas in prenex CNF form. It
// offers an in-process expansion-based solver built on the SAT backend and a
// generic driver for external QDIMACS solvers, plus the QDIMACS codec both
// share.
package qbf

import (
	"fmt"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/vars"
)

// Quant is one of the two quantifiers.
type Quant int

const (
	Exists Quant = iota
	Forall
)

func (q Quant) String() string {
	if q == Exists {
		return "e"
	}
	return "a"
}

// Block is one quantifier block. Either Vars names the variables explicitly,
// or (when Vars is nil) Kind selects all registry variables of that kind at
// solve time.
type Block struct {
	Q    Quant
	Kind vars.Kind
	Vars []int
}

// Prefix is an ordered quantifier prefix; Prefix[0] is outermost.
type Prefix []Block

// E builds an existential block over a variable kind.
func E(k vars.Kind) Block { return Block{Q: Exists, Kind: k} }

// A builds a universal block over a variable kind.
func A(k vars.Kind) Block { return Block{Q: Forall, Kind: k} }

// EVars builds an existential block over explicit variables.
func EVars(vs []int) Block { return Block{Q: Exists, Vars: vs} }

// AVars builds a universal block over explicit variables.
func AVars(vs []int) Block { return Block{Q: Forall, Vars: vs} }

// resolve expands kind blocks against the registry, drops empty blocks, and
// merges adjacent blocks with the same quantifier.
func (p Prefix) resolve(reg *vars.Registry) []Block {
	out := make([]Block, 0, len(p))
	for _, b := range p {
		vs := b.Vars
		if vs == nil {
			vs = reg.OfKind(b.Kind)
		}
		if len(vs) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Q == b.Q {
			merged := append(append([]int(nil), out[n-1].Vars...), vs...)
			out[n-1].Vars = merged
			continue
		}
		out = append(out, Block{Q: b.Q, Vars: append([]int(nil), vs...)})
	}
	return out
}

// Solver decides prenex-CNF QBF.
type Solver interface {
	// IsSat decides the QBF given by prefix and matrix.
	IsSat(prefix Prefix, matrix *cnf.CNF) (bool, error)
	// IsSatModel decides the QBF and, when satisfiable, returns an
	// assignment to the outermost existential block(s) as a cube.
	IsSatModel(prefix Prefix, matrix *cnf.CNF) (model []int, sat bool, err error)
}

// SolverError reports an external solver that crashed, timed out, or
// answered with an unknown exit code.
type SolverError struct {
	Cmd      string
	ExitCode int
	Err      error
}

func (e *SolverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qbf solver %q failed: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("qbf solver %q terminated with unexpected exit code %d", e.Cmd, e.ExitCode)
}

func (e *SolverError) Unwrap() error { return e.Err }
