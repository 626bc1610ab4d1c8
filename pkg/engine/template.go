package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/qbf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/vars"
)

// Template mode selectors. CNF modes parameterize the winning region as a
// clause set; AND modes parameterize it as a network of and-gates. The
// search for parameter values runs either as one QBF query or as a SAT-only
// counterexample-guided loop.
const (
	TemplCNFQBF = iota
	TemplCNFCEGIS
	TemplANDQBF
	TemplANDCEGIS
)

// Template searches for a winning region of a fixed syntactic shape,
// growing the shape until one fits or the state space is exhausted.
type Template struct {
	spec    *aig.Spec
	log     *logrus.Entry
	newSess sat.Starter
	qbf     qbf.Solver
	mode    int

	win    *cnf.CNF
	negWin *cnf.CNF
}

// NewTemplate creates the template back-end.
func NewTemplate(spec *aig.Spec, log *logrus.Entry, newSess sat.Starter, q qbf.Solver, mode int) *Template {
	return &Template{spec: spec, log: log, newSess: newSess, qbf: q, mode: mode}
}

// ComputeWinningRegion implements Engine.
func (t *Template) ComputeWinningRegion() (Result, error) {
	t.log.Info("starting to compute a winning region")
	reg := t.spec.Reg
	reg.Push()

	find := t.findCNFTemplate
	unit := "clauses"
	if t.mode == TemplANDQBF || t.mode == TemplANDCEGIS {
		find = t.findANDNetwork
		unit = "gates"
	}

	// The error bit is not part of the template's state space, hence -1.
	bits := len(reg.OfKind(vars.PresState)) - 1
	maxSize := uint64(1)
	if bits > 0 && bits < 63 {
		maxSize = uint64(1) << uint(bits)
	} else if bits >= 63 {
		maxSize = ^uint64(0)
	}

	size := uint64(1)
	for {
		reg.ResetToLastPush()
		t.log.Debugf("trying template with %d %s", size, unit)
		found, err := find(int(size))
		if err != nil {
			return Result{}, err
		}
		if found {
			t.log.WithField("channel", "stats").Infof("found winning region with %d %s", size, unit)
			return Result{Realizable: true, Win: t.win, NegWin: t.negWin}, nil
		}
		t.log.WithField("channel", "stats").Infof("no winning region with %d %s", size, unit)
		if size >= maxSize {
			return Result{}, nil
		}
		if size < 4 {
			size++
		} else {
			size <<= 1
		}
	}
}

// templateVars returns the non-error present and next state variables; the
// error bit is always false inside the winning region and is handled by a
// fixed clause instead.
func (t *Template) templateVars() (ps, ns []int) {
	reg := t.spec.Reg
	ps = append([]int(nil), reg.OfKind(vars.PresState)[1:]...)
	ns = append([]int(nil), reg.OfKind(vars.NextState)[1:]...)
	return ps, ns
}

// findCNFTemplate encodes a clause-set template with nClauses slots and asks
// a solver for parameter values making it a winning region.
func (t *Template) findCNFTemplate(nClauses int) (bool, error) {
	reg := t.spec.Reg
	psVars, nsVars := t.templateVars()
	nVars := len(psVars)

	constr := cnf.New()
	w1 := reg.Create(vars.Tmp, "w1")
	w2 := reg.Create(vars.Tmp, "w2")

	// Parameters: per clause one activation bit, per (clause, variable)
	// one inclusion bit and one polarity bit.
	active := make([]int, nClauses)
	contains := make([][]int, nClauses)
	negated := make([][]int, nClauses)
	for c := 0; c < nClauses; c++ {
		active[c] = reg.FreshTemplParam()
		contains[c] = make([]int, nVars)
		negated[c] = make([]int, nVars)
		for v := 0; v < nVars; v++ {
			contains[c][v] = reg.FreshTemplParam()
			negated[c][v] = reg.FreshTemplParam()
		}
	}

	// The region is reified twice, once over present state (w1) and once
	// over next state (w2). One clause is fixed: the error bit is false.
	allClauseLits1 := make([]int, 0, nClauses+1)
	allClauseLits2 := make([]int, 0, nClauses+1)
	allClauseLits1 = append(allClauseLits1, -reg.PresError())
	allClauseLits2 = append(allClauseLits2, -reg.NextError())
	for c := 0; c < nClauses; c++ {
		clauseLit1 := reg.FreshTmp()
		clauseLit2 := reg.FreshTmp()
		allClauseLits1 = append(allClauseLits1, clauseLit1)
		allClauseLits2 = append(allClauseLits2, clauseLit2)
		litsInClause1 := make([]int, 0, nVars+2)
		litsInClause2 := make([]int, 0, nVars+2)
		// A deactivated clause slot is true regardless of its
		// literals.
		litsInClause1 = append(litsInClause1, -active[c])
		litsInClause2 = append(litsInClause2, -active[c])
		for v := 0; v < nVars; v++ {
			act1 := reg.FreshTmp()
			act2 := reg.FreshTmp()
			litsInClause1 = append(litsInClause1, act1)
			litsInClause2 = append(litsInClause2, act2)
			// act is false if the variable is not included, and
			// otherwise carries the chosen polarity of the
			// state variable.
			constr.AddClause(contains[c][v], -act1)
			constr.AddClause(contains[c][v], -act2)
			constr.AddClause(-contains[c][v], -negated[c][v], psVars[v], act1)
			constr.AddClause(-contains[c][v], -negated[c][v], -psVars[v], -act1)
			constr.AddClause(-contains[c][v], -negated[c][v], nsVars[v], act2)
			constr.AddClause(-contains[c][v], -negated[c][v], -nsVars[v], -act2)
			constr.AddClause(-contains[c][v], negated[c][v], -psVars[v], act1)
			constr.AddClause(-contains[c][v], negated[c][v], psVars[v], -act1)
			constr.AddClause(-contains[c][v], negated[c][v], -nsVars[v], act2)
			constr.AddClause(-contains[c][v], negated[c][v], nsVars[v], -act2)
		}
		// clauseLit ⇔ OR(litsInClause).
		for _, lit := range litsInClause1 {
			constr.AddClause(-lit, clauseLit1)
		}
		for _, lit := range litsInClause2 {
			constr.AddClause(-lit, clauseLit2)
		}
		litsInClause1 = append(litsInClause1, -clauseLit1)
		constr.AddClause(litsInClause1...)
		litsInClause2 = append(litsInClause2, -clauseLit2)
		constr.AddClause(litsInClause2...)
	}
	// w ⇔ AND(allClauseLits).
	for i := range allClauseLits1 {
		constr.AddClause(allClauseLits1[i], -w1)
		constr.AddClause(allClauseLits2[i], -w2)
	}
	neg1 := cnf.Negated(allClauseLits1)
	neg1 = append(neg1, w1)
	constr.AddClause(neg1...)
	neg2 := cnf.Negated(allClauseLits2)
	neg2 = append(neg2, w2)
	constr.AddClause(neg2...)

	var model []int
	var found bool
	var err error
	if t.mode == TemplCNFQBF {
		model, found, err = t.solveQBF(constr, w1, w2)
	} else {
		model, found, err = t.solveCEGIS(constr, w1, w2)
	}
	if err != nil || !found {
		return false, err
	}

	// Read the parameters off the model and emit the concrete region.
	canBe0, _ := modelPolarity(reg.MaxVar(), model)
	t.win = cnf.New()
	t.win.AddClause(-reg.PresError())
	for c := 0; c < nClauses; c++ {
		if canBe0[active[c]] {
			continue
		}
		clause := make([]int, 0, nVars)
		for v := 0; v < nVars; v++ {
			if canBe0[contains[c][v]] {
				continue
			}
			if canBe0[negated[c][v]] {
				clause = append(clause, psVars[v])
			} else {
				clause = append(clause, -psVars[v])
			}
		}
		t.win.AddClause(clause...)
	}
	t.negWin = t.win.Clone()
	t.negWin.Negate(reg)
	return true, nil
}

// findANDNetwork encodes an and-network template with nGates gates. Gate g
// may read the non-error state variables and the outputs of earlier gates;
// a final parameter selects the output polarity.
func (t *Template) findANDNetwork(nGates int) (bool, error) {
	reg := t.spec.Reg
	psVars, nsVars := t.templateVars()
	nVars := len(psVars)

	w1 := reg.Create(vars.Tmp, "w1")
	constr := cnf.New()
	w2 := reg.Create(vars.Tmp, "w2")

	used := make([][]int, nGates)
	neg := make([][]int, nGates)
	for g := 0; g < nGates; g++ {
		used[g] = make([]int, nVars+g)
		neg[g] = make([]int, nVars+g)
		for v := 0; v < nVars+g; v++ {
			used[g][v] = reg.FreshTemplParam()
			neg[g][v] = reg.FreshTemplParam()
		}
	}

	// Gate outputs and inputs, present and next copies in parallel.
	gop := make([]int, 0, nGates)
	gon := make([]int, 0, nGates)
	gip := make([][]int, nGates)
	gin := make([][]int, nGates)
	for g := 0; g < nGates; g++ {
		gop = append(gop, reg.FreshTmp())
		gon = append(gon, reg.FreshTmp())
		gip[g] = append(append([]int(nil), psVars...), gop[:g]...)
		gin[g] = append(append([]int(nil), nsVars...), gon[:g]...)
	}

	for g := 0; g < nGates; g++ {
		actP := make([]int, 0, len(gip[g])+1)
		actN := make([]int, 0, len(gip[g])+1)
		for v := range gip[g] {
			aP := reg.FreshTmp()
			aN := reg.FreshTmp()
			actP = append(actP, aP)
			actN = append(actN, aN)
			// An unused gate input is neutral for AND, i.e. true;
			// a used one carries the chosen polarity.
			constr.AddClause(used[g][v], aP)
			constr.AddClause(used[g][v], aN)
			constr.AddClause(-used[g][v], -neg[g][v], gip[g][v], aP)
			constr.AddClause(-used[g][v], -neg[g][v], -gip[g][v], -aP)
			constr.AddClause(-used[g][v], -neg[g][v], gin[g][v], aN)
			constr.AddClause(-used[g][v], -neg[g][v], -gin[g][v], -aN)
			constr.AddClause(-used[g][v], neg[g][v], -gip[g][v], aP)
			constr.AddClause(-used[g][v], neg[g][v], gip[g][v], -aP)
			constr.AddClause(-used[g][v], neg[g][v], -gin[g][v], aN)
			constr.AddClause(-used[g][v], neg[g][v], gin[g][v], -aN)
		}
		// gop[g] ⇔ AND(actP), gon[g] ⇔ AND(actN).
		for i := range actP {
			constr.AddClause(actP[i], -gop[g])
			constr.AddClause(actN[i], -gon[g])
		}
		clP := cnf.Negated(actP)
		clP = append(clP, gop[g])
		constr.AddClause(clP...)
		clN := cnf.Negated(actN)
		clN = append(clN, gon[g])
		constr.AddClause(clN...)
	}

	// The region is the last gate output under a polarity parameter,
	// conjoined with the safe states.
	outNeg := reg.FreshTemplParam()
	psSafe := -reg.PresError()
	nsSafe := -reg.NextError()
	constr.AddClause(psSafe, -w1)
	constr.AddClause(-psSafe, outNeg, gop[nGates-1], -w1)
	constr.AddClause(-psSafe, outNeg, -gop[nGates-1], w1)
	constr.AddClause(-psSafe, -outNeg, gop[nGates-1], w1)
	constr.AddClause(-psSafe, -outNeg, -gop[nGates-1], -w1)
	constr.AddClause(nsSafe, -w2)
	constr.AddClause(-nsSafe, outNeg, gon[nGates-1], -w2)
	constr.AddClause(-nsSafe, outNeg, -gon[nGates-1], w2)
	constr.AddClause(-nsSafe, -outNeg, gon[nGates-1], w2)
	constr.AddClause(-nsSafe, -outNeg, -gon[nGates-1], -w2)

	var model []int
	var found bool
	var err error
	if t.mode == TemplANDQBF {
		model, found, err = t.solveQBF(constr, w1, w2)
	} else {
		model, found, err = t.solveCEGIS(constr, w1, w2)
	}
	if err != nil || !found {
		return false, err
	}

	canBe0, _ := modelPolarity(reg.MaxVar(), model)

	// Re-create the gate outputs persistently; the solving auxiliaries
	// are rolled back by the caller's next reset, the winning region must
	// survive it.
	reg.ResetToLastPush()
	gop = gop[:0]
	gop2 := make([]int, 0, nGates)
	gip = make([][]int, nGates)
	gip2 := make([][]int, nGates)
	for g := 0; g < nGates; g++ {
		gop = append(gop, reg.FreshTmp())
		gop2 = append(gop2, reg.FreshTmp())
		gip[g] = append(append([]int(nil), psVars...), gop[:g]...)
		gip2[g] = append(append([]int(nil), psVars...), gop2[:g]...)
	}

	t.win = cnf.New()
	t.negWin = cnf.New()
	for g := 0; g < nGates; g++ {
		andOver := make([]int, 0, len(gip[g])+1)
		andOver2 := make([]int, 0, len(gip2[g])+1)
		for v := range gip[g] {
			if canBe0[used[g][v]] {
				continue
			}
			if canBe0[neg[g][v]] {
				t.win.AddClause(gip[g][v], -gop[g])
				t.negWin.AddClause(gip2[g][v], -gop2[g])
				andOver = append(andOver, gip[g][v])
				andOver2 = append(andOver2, gip2[g][v])
			} else {
				t.win.AddClause(-gip[g][v], -gop[g])
				t.negWin.AddClause(-gip2[g][v], -gop2[g])
				andOver = append(andOver, -gip[g][v])
				andOver2 = append(andOver2, -gip2[g][v])
			}
		}
		cnf.NegateLits(andOver)
		andOver = append(andOver, gop[g])
		t.win.AddClause(andOver...)
		cnf.NegateLits(andOver2)
		andOver2 = append(andOver2, gop2[g])
		t.negWin.AddClause(andOver2...)
	}
	t.win.AddClause(-reg.PresError())
	if canBe0[outNeg] {
		t.win.AddClause(gop[nGates-1])
		t.negWin.AddClause(reg.PresError(), -gop2[nGates-1])
	} else {
		t.win.AddClause(-gop[nGates-1])
		t.negWin.AddClause(reg.PresError(), gop2[nGates-1])
	}
	return true, nil
}

// modelPolarity splits a model cube into per-variable "may be false" and
// "may be true" tables; variables absent from the model may be either.
func modelPolarity(maxVar int, model []int) (canBe0, canBe1 []bool) {
	canBe0 = make([]bool, maxVar+1)
	canBe1 = make([]bool, maxVar+1)
	for i := range canBe0 {
		canBe0[i] = true
		canBe1[i] = true
	}
	for _, lit := range model {
		if lit < 0 {
			if -lit <= maxVar {
				canBe1[-lit] = false
			}
		} else if lit <= maxVar {
			canBe0[lit] = false
		}
	}
	return canBe0, canBe1
}

// solveQBF poses the whole synthesis query as one QBF:
// ∃params ∀state,input ∃ctrl,next,tmp. constraints.
func (t *Template) solveQBF(constr *cnf.CNF, w1, w2 int) ([]int, bool, error) {
	reg := t.spec.Reg
	query := t.spec.TransEq.Clone()
	query.AddCNF(constr)

	// Outside the initial state or inside the region: I → w1.
	initImplies := append([]int(nil), reg.OfKind(vars.PresState)...)
	initImplies = append(initImplies, w1)
	query.AddClause(initImplies...)
	// From the region, the system can take a transition that stays in.
	query.AddClause(-w1, t.spec.TLit)
	query.AddClause(-w1, w2)

	prefix := qbf.Prefix{
		qbf.E(vars.TemplParam),
		qbf.A(vars.PresState),
		qbf.A(vars.Input),
		qbf.E(vars.Ctrl),
		qbf.E(vars.NextState),
		qbf.E(vars.Tmp),
	}
	return t.qbf.IsSatModel(prefix, query)
}

// solveCEGIS runs the SAT-only counterexample-guided loop: one session
// produces candidate parameter values, a verifier/generalizer pair per
// candidate searches for a (state, input) breaking closure, and every
// counterexample is excluded by a freshly renamed specialization of the
// constraints.
func (t *Template) solveCEGIS(constr *cnf.CNF, w1, w2 int) ([]int, bool, error) {
	reg := t.spec.Reg
	gen := t.spec.Trans.Clone()
	gen.AddCNF(constr)
	initImplies := append([]int(nil), reg.OfKind(vars.PresState)...)
	initImplies = append(initImplies, w1)
	gen.AddClause(initImplies...)
	gen.AddClause(-w1, w2)

	params := reg.OfKind(vars.TemplParam)
	candidates := t.newSess(params, false)

	// Correctness for the initial state is fixed up front through the
	// same exclusion mechanism as counterexamples.
	initial := append([]int(nil), reg.OfKind(vars.PresState)...)
	initial = append(initial, reg.OfKind(vars.Input)...)
	cnf.NegateLits(initial)
	t.exclude(candidates, initial, gen)

	for {
		ok, candidate := candidates.ModelOrCore(nil, params)
		if !ok {
			return nil, false, nil
		}
		correct, counterexample := t.check(candidate, constr, w1, w2)
		if correct {
			return candidate, true, nil
		}
		t.exclude(candidates, counterexample, gen)
	}
}

// check verifies one candidate. It returns either correctness or a
// (state, input) cube for which no control response keeps the region
// closed.
func (t *Template) check(candidate []int, constr *cnf.CNF, w1, w2 int) (bool, []int) {
	reg := t.spec.Reg
	in := reg.OfKind(vars.Input)
	pres := reg.OfKind(vars.PresState)
	ctrl := reg.OfKind(vars.Ctrl)
	sic := make([]int, 0, len(pres)+len(in)+len(ctrl))
	sic = append(sic, pres...)
	sic = append(sic, in...)
	sic = append(sic, ctrl...)
	si := sic[:len(pres)+len(in)]

	checkCNF := constr.Clone()
	specialize(checkCNF, candidate)
	checkCNF.AddCNF(t.spec.Trans)
	checkCNF.AddClause(w1)
	genCNF := checkCNF.Clone()
	genCNF.AddClause(w2)
	checkCNF.AddClause(-w2)

	verifier := t.newSess(sic, false)
	verifier.AddCNF(checkCNF)
	generalizer := t.newSess(sic, false)
	generalizer.AddCNF(genCNF)

	for {
		ok, stateInput := verifier.ModelOrCore(nil, si)
		if !ok {
			return true, nil
		}
		ok, out := generalizer.SplitModelOrCore(stateInput, nil, ctrl)
		if !ok {
			// No response at all works here; the core over
			// (state, input) is the counterexample.
			return false, out
		}
		resp := out
		ok, core := verifier.SplitModelOrCore(stateInput, resp, nil)
		if ok {
			panic("template: response satisfies both the region and its complement")
		}
		verifier.AddNegCubeAsClause(core)
	}
}

// exclude adds a copy of the constraints, specialized to the counterexample
// and with everything except the template parameters renamed to fresh
// variables, to the candidate session.
func (t *Template) exclude(candidates sat.Session, counterexample []int, gen *cnf.CNF) {
	reg := t.spec.Reg
	toAdd := gen.Clone()
	specialize(toAdd, counterexample)

	occurring := toAdd.Vars()
	max := 0
	if n := len(occurring); n > 0 {
		max = occurring[n-1]
	}
	rename := make([]int, max+1)
	for i := range rename {
		rename[i] = i
	}
	for _, v := range occurring {
		if reg.KindOf(v) != vars.TemplParam {
			rename[v] = reg.FreshTmp()
		}
	}
	toAdd.Rename(rename)
	candidates.AddCNF(toAdd)
}
