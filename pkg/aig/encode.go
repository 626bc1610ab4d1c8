package aig

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/vars"
)

// ControllablePrefix marks the inputs the system player controls, following
// the synthesis-competition naming convention.
const ControllablePrefix = "controllable_"

// Spec is the CNF view of a safety specification. All formulas share one
// registry. The error bit is PresState[0]; it latches the bad output, so a
// run that ever raises the output stays bad forever.
type Spec struct {
	Reg   *vars.Registry
	Graph *Graph

	// Trans is the transition relation T(x,u,c,x'), asserted.
	Trans *cnf.CNF
	// TransEq reifies the transition relation into the single literal
	// TLit, for queries that need T as a proposition.
	TransEq *cnf.CNF
	TLit    int

	// Initial is the all-zero initial state predicate I.
	Initial *cnf.CNF
	// Unsafe is the error predicate E; Safe is its negation.
	Unsafe *cnf.CNF
	Safe   *cnf.CNF
	// NextUnsafe and NextSafe are E and its negation over the next-state
	// copies.
	NextUnsafe *cnf.CNF
	NextSafe   *cnf.CNF
}

// Encode builds the CNF view of a safety AIGER specification: one bad
// output, latches starting at zero, controllable inputs marked by name.
func Encode(g *Graph, reg *vars.Registry) (*Spec, error) {
	if len(g.Outputs) != 1 {
		return nil, errors.Errorf("expected exactly one (error) output, got %d", len(g.Outputs))
	}

	s := &Spec{
		Reg:        reg,
		Graph:      g,
		Trans:      cnf.New(),
		TransEq:    cnf.New(),
		Initial:    cnf.New(),
		Unsafe:     cnf.New(),
		Safe:       cnf.New(),
		NextUnsafe: cnf.New(),
		NextSafe:   cnf.New(),
	}

	litMap := make(map[uint]int)

	for i := range g.Inputs {
		in := &g.Inputs[i]
		kind := vars.Input
		if strings.HasPrefix(in.Name, ControllablePrefix) {
			kind = vars.Ctrl
		}
		litMap[in.Lit>>1] = reg.Create(kind, in.Name)
	}

	// The error bit comes first in both state kinds so that the paired
	// index invariant holds and PresState[0] is the error bit.
	presErr := reg.Create(vars.PresState, "error")
	for i := range g.Latches {
		litMap[g.Latches[i].Lit>>1] = reg.Create(vars.PresState, g.Latches[i].Name)
	}
	nextErr := reg.Create(vars.NextState, "error'")
	nextOf := make([]int, 0, len(g.Latches))
	for i := range g.Latches {
		name := g.Latches[i].Name
		if name != "" {
			name += "'"
		}
		nextOf = append(nextOf, reg.Create(vars.NextState, name))
	}

	constTrue := 0
	convert := func(aigLit uint) int {
		v := aigLit >> 1
		var base int
		if v == 0 {
			if constTrue == 0 {
				constTrue = reg.Create(vars.Tmp, "const1")
				s.Trans.AddClause(constTrue)
				s.TransEq.AddClause(constTrue)
			}
			base = constTrue
		} else {
			base = litMap[v]
			if base == 0 {
				base = reg.FreshTmp()
				litMap[v] = base
			}
		}
		if aigLit&1 == 1 {
			return -base
		}
		return base
	}

	// Gate definitions go into both transition forms; the auxiliary
	// variables are shared.
	for _, a := range g.Ands {
		gl := convert(a.LHS)
		r0 := convert(a.RHS0)
		r1 := convert(a.RHS1)
		for _, dst := range []*cnf.CNF{s.Trans, s.TransEq} {
			dst.AddClause(-gl, r0)
			dst.AddClause(-gl, r1)
			dst.AddClause(gl, -r0, -r1)
		}
	}

	// Latch update functions: asserted in Trans, reified in TransEq.
	errOut := convert(g.Outputs[0].Lit)
	var eqLits []int

	addUpdate := func(next, fn int) {
		s.Trans.AddClause(-next, fn)
		s.Trans.AddClause(next, -fn)
		e := reg.FreshTmp()
		s.TransEq.AddClause(-e, -next, fn)
		s.TransEq.AddClause(-e, next, -fn)
		s.TransEq.AddClause(e, next, fn)
		s.TransEq.AddClause(e, -next, -fn)
		eqLits = append(eqLits, e)
	}

	// The error latch absorbs the bad output: err' = err ∨ bad.
	errFn := reg.FreshTmp()
	for _, dst := range []*cnf.CNF{s.Trans, s.TransEq} {
		dst.AddClause(-errFn, presErr, errOut)
		dst.AddClause(-presErr, errFn)
		dst.AddClause(-errOut, errFn)
	}
	addUpdate(nextErr, errFn)
	for i := range g.Latches {
		addUpdate(nextOf[i], convert(g.Latches[i].Next))
	}

	s.TLit = reg.Create(vars.Tmp, "T")
	tClause := make([]int, 0, len(eqLits)+1)
	for _, e := range eqLits {
		s.TransEq.AddClause(-s.TLit, e)
		tClause = append(tClause, -e)
	}
	tClause = append(tClause, s.TLit)
	s.TransEq.AddClause(tClause...)

	for _, p := range reg.OfKind(vars.PresState) {
		s.Initial.AddClause(-p)
	}
	s.Unsafe.AddClause(presErr)
	s.Safe.AddClause(-presErr)
	s.NextUnsafe.AddClause(nextErr)
	s.NextSafe.AddClause(-nextErr)

	return s, nil
}
