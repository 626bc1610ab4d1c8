// Package engine contains the synthesis back-ends: the template-based
// winning-region search and the frame-based incremental fixed-point, plus
// the checkpoint loader and an optional parallel combination.
package engine

import (
	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
)

// Result is the outcome of a winning-region computation. When Realizable is
// false the region fields are nil; unrealizability is a result, not an
// error.
type Result struct {
	Realizable bool
	// Win is the winning region W over present-state variables (possibly
	// with auxiliary variables from Tseitin encodings); NegWin is its
	// negation.
	Win    *cnf.CNF
	NegWin *cnf.CNF
}

// Engine computes a winning region for a safety specification.
type Engine interface {
	ComputeWinningRegion() (Result, error)
}

// Extractor consumes a computed winning region and produces whatever the
// selected back-end emits: a stored checkpoint or a circuit implementation.
type Extractor interface {
	Extract(win, negWin *cnf.CNF, spec *aig.Spec) error
}

// specialize fixes the literals of the cube to true in c, by unit
// propagation.
func specialize(c *cnf.CNF, cube []int) {
	for _, lit := range cube {
		if lit < 0 {
			c.SetVarValue(-lit, false)
		} else {
			c.SetVarValue(lit, true)
		}
	}
}
