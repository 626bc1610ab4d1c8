package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/vars"
)

// IFM is the frame-based backward fixed-point engine for safety games. It
// maintains frames R0, R1, ... over-approximating the states from which the
// environment can force the error within i steps, blocks proof obligations
// with unsat-core generalization, propagates inductive clauses forward, and
// keeps one pair of incremental solver sessions per frame.
type IFM struct {
	spec    *aig.Spec
	log     *logrus.Entry
	newSess sat.Starter

	frames    []*cnf.CNF
	frameKeys []map[string]bool
	win       *cnf.CNF

	// gotoNextLower[i] holds T ∧ R_{i-1}(next) plus the accumulated
	// blocking clauses; genBlockTrans[i] holds the same and serves
	// unsat-core generalization of blocked transitions; gotoWin holds
	// T ∧ W(next). Sessions are created on first access and never
	// destroyed.
	gotoNextLower []sat.Session
	genBlockTrans []sat.Session
	gotoWin       sat.Session

	sin  []int
	sicn []int
}

type proofObligation struct {
	state []int
	level int
	// Predecessor transition for the transition-blocking optimization:
	// the (state, input) cube that reached state, and the control cube
	// of that transition.
	preStateIn []int
	preCtrl    []int
}

func (p proofObligation) hasPre() bool { return p.preStateIn != nil }

// NewIFM creates the fixed-point back-end.
func NewIFM(spec *aig.Spec, log *logrus.Entry, newSess sat.Starter) *IFM {
	reg := spec.Reg
	s := reg.OfKind(vars.PresState)
	i := reg.OfKind(vars.Input)
	c := reg.OfKind(vars.Ctrl)
	n := reg.OfKind(vars.NextState)

	e := &IFM{spec: spec, log: log, newSess: newSess}
	e.sin = append(e.sin, s...)
	e.sin = append(e.sin, i...)
	e.sin = append(e.sin, n...)
	e.sicn = append(e.sicn, s...)
	e.sicn = append(e.sicn, i...)
	e.sicn = append(e.sicn, c...)
	e.sicn = append(e.sicn, n...)

	e.frames = []*cnf.CNF{spec.Unsafe.Clone()}
	e.frameKeys = []map[string]bool{frameKeySet(e.frames[0])}

	first := e.newSess(e.sicn, false)
	first.AddCNF(spec.Trans)
	first.AddCNF(spec.NextUnsafe)
	e.gotoNextLower = []sat.Session{nil, first}

	firstGen := e.newSess(e.sicn, false)
	firstGen.AddCNF(spec.Trans)
	firstGen.AddCNF(spec.NextUnsafe)
	e.genBlockTrans = []sat.Session{nil, firstGen}

	e.win = spec.Safe.Clone()
	e.gotoWin = e.newSess(e.sicn, false)
	e.gotoWin.AddCNF(spec.Trans)
	e.gotoWin.AddCNF(spec.NextSafe)

	return e
}

// ComputeWinningRegion implements Engine.
func (e *IFM) ComputeWinningRegion() (Result, error) {
	reg := e.spec.Reg
	stateVars := reg.OfKind(vars.PresState)
	initial := make([]int, len(stateVars))
	for i, v := range stateVars {
		initial[i] = -v
	}

	for k := 1; ; k++ {
		e.log.Debugf("iteration k=%d", k)
		if e.recBlockCube(initial, k) == resLose {
			return Result{}, nil
		}
		if equal := e.propagateBlockedStates(k); equal != 0 {
			e.log.WithField("channel", "stats").Infof("frames R%d and R%d are equal after %d iterations", equal-1, equal, k)
			win := e.frame(equal).Clone()
			win.Negate(reg)
			win.AddClause(-reg.PresError())
			negWin := e.frame(equal).Clone()
			return Result{Realizable: true, Win: win, NegWin: negWin}, nil
		}
	}
}

const (
	resLose = iota
	resGreater
)

// recBlockCube tries to show that no state of the cube belongs to the given
// frame, working through a queue of proof obligations ordered by level. It
// returns resLose when the initial state is discovered to be losing.
func (e *IFM) recBlockCube(stateCube []int, level int) int {
	queue := []proofObligation{{state: stateCube, level: level}}

	for len(queue) > 0 {
		ob := popMinLevel(&queue)
		s := ob.state

		if e.isLose(s) {
			continue
		}
		if e.isBlocked(s, ob.level) {
			// Block the transition that produced this obligation
			// one level up; the state itself is already handled.
			if ob.hasPre() {
				e.genAndBlockTrans(ob.preStateIn, ob.preCtrl, ob.level+1)
			}
			continue
		}

		ok, out := e.nextLower(ob.level).ModelOrCore(s, e.sin)
		if !ok {
			// No environment move reaches the lower frame; the
			// core is the generalized blocked state.
			e.addBlockedState(out, ob.level)
			if ob.hasPre() {
				e.genAndBlockTrans(ob.preStateIn, ob.preCtrl, ob.level+1)
			}
			continue
		}

		reg := e.spec.Reg
		succ := reg.ExtractNextAsPresent(out)
		if ob.level == 1 || e.isLose(succ) {
			inCube := reg.Extract(out, vars.Input)
			stCube := reg.Extract(out, vars.PresState)
			ok, out = e.gotoWin.SplitModelOrCore(stCube, inCube, e.sicn)
			if ok {
				// The same state-input pair can also reach a
				// winning state.
				succ = reg.ExtractNextAsPresent(out)
				si := reg.ExtractPresIn(out)
				cc := reg.Extract(out, vars.Ctrl)
				if ob.level == 1 || e.isBlocked(succ, ob.level-1) {
					e.genAndBlockTrans(si, cc, ob.level)
				} else {
					queue = append(queue, proofObligation{state: succ, level: ob.level - 1, preStateIn: si, preCtrl: cc})
				}
				queue = append(queue, ob)
			} else {
				// No control response avoids losing from this
				// state under this input.
				if reg.ContainsInit(out) {
					return resLose
				}
				e.addLose(out)
			}
		} else {
			si := reg.ExtractPresIn(out)
			cc := reg.Extract(out, vars.Ctrl)
			queue = append(queue, proofObligation{state: succ, level: ob.level - 1, preStateIn: si, preCtrl: cc})
			queue = append(queue, ob)
		}
	}
	return resGreater
}

// propagateBlockedStates pushes clauses of R_i that are inductive relative
// to R_i into R_{i+1}. It returns i+1 when R_i and R_{i+1} end up equal,
// 0 otherwise.
func (e *IFM) propagateBlockedStates(maxLevel int) int {
	for i := 1; i <= maxLevel; i++ {
		equal := true
		for _, clause := range e.frame(i).Clauses() {
			if e.frameHas(i+1, clause) {
				continue
			}
			negClause := cnf.Negated(clause)
			if e.nextLower(i + 1).IsSat(negClause) {
				equal = false
				continue
			}
			// No edge from the blocked states into R_i; the
			// clause holds one level up as well.
			e.addClauseToFrame(i+1, clause)
			propagated := append([]int(nil), clause...)
			e.spec.Reg.SwapPresentNext(propagated)
			e.nextLower(i + 2).AddClause(propagated...)
			e.blockTransSolver(i + 2).AddClause(propagated...)
		}
		if equal {
			return i + 1
		}
	}
	return 0
}

// addBlockedState turns the generalized cube into the blocking clause
// ¬cube ∨ error and installs it in frames 0..level and their sessions, then
// pushes it into as many higher frames as it stays inductive in.
func (e *IFM) addBlockedState(cube []int, level int) {
	reg := e.spec.Reg
	blocking := make([]int, 0, len(cube)+1)
	for _, lit := range cube {
		blocking = append(blocking, -lit)
	}
	// The clause never speaks about error states being blocked; cores
	// that already mention the error bit keep a single copy.
	if !cnf.Contains(blocking, reg.PresError()) {
		blocking = append(blocking, reg.PresError())
	}
	next := append([]int(nil), blocking...)
	reg.SwapPresentNext(next)

	for l := 0; l <= level; l++ {
		e.addClauseToFrame(l, blocking)
		e.nextLower(l + 1).AddClause(next...)
		e.blockTransSolver(l + 1).AddClause(next...)
	}

	// Push the clause forward while it stays inductive.
	assump := append([]int(nil), cube...)
	if !cnf.Contains(assump, -reg.PresError()) {
		assump = append(assump, -reg.PresError())
	}
	for l := level + 1; l < len(e.frames); l++ {
		if e.nextLower(l).IsSat(assump) {
			break
		}
		e.addClauseToFrame(l, blocking)
		e.nextLower(l + 1).AddClause(next...)
		e.blockTransSolver(l + 1).AddClause(next...)
	}
}

// addBlockedTransition blocks a generalized (state, input) cube in every
// level up to the given one.
func (e *IFM) addBlockedTransition(stateInCube []int, level int) {
	blocking := cnf.Negated(stateInCube)
	for l := 1; l <= level; l++ {
		e.nextLower(l).AddClause(blocking...)
	}
}

// genAndBlockTrans minimizes a (state, input) cube that cannot reach the
// lower frame regardless of the control, and blocks it.
func (e *IFM) genAndBlockTrans(stateIn, ctrl []int, level int) {
	ok, core := e.blockTransSolver(level).SplitModelOrCore(stateIn, ctrl, nil)
	if ok {
		panic("ifm: transition expected to be blocked has a model")
	}
	e.addBlockedTransition(core, level)
}

func (e *IFM) isBlocked(stateCube []int, level int) bool {
	return !e.frame(level).IsSatBy(stateCube)
}

func (e *IFM) isLose(stateCube []int) bool {
	return !e.win.IsSatBy(stateCube)
}

// addLose strengthens the global losing knowledge with a (state, input)
// core: the negated cube joins W and, present-to-next substituted, the
// gotoWin session.
func (e *IFM) addLose(cube []int) {
	blocking := cnf.Negated(cube)
	e.win.AddClauseAndSimplify(blocking)
	e.spec.Reg.SwapPresentNext(blocking)
	e.gotoWin.AddClause(blocking...)
}

// frame returns R_index, growing the sequence as needed.
func (e *IFM) frame(index int) *cnf.CNF {
	for len(e.frames) <= index {
		e.frames = append(e.frames, cnf.New())
		e.frameKeys = append(e.frameKeys, make(map[string]bool))
	}
	return e.frames[index]
}

func (e *IFM) frameHas(index int, clause []int) bool {
	e.frame(index)
	return e.frameKeys[index][clauseKey(clause)]
}

func (e *IFM) addClauseToFrame(index int, clause []int) {
	e.frame(index)
	key := clauseKey(clause)
	if e.frameKeys[index][key] {
		return
	}
	e.frameKeys[index][key] = true
	e.frames[index].AddClause(clause...)
}

// nextLower returns the GotoNextLower session for the level, creating
// sessions seeded with the transition relation on first access.
func (e *IFM) nextLower(index int) sat.Session {
	for len(e.gotoNextLower) <= index {
		s := e.newSess(e.sicn, false)
		s.AddCNF(e.spec.Trans)
		e.gotoNextLower = append(e.gotoNextLower, s)
	}
	return e.gotoNextLower[index]
}

func (e *IFM) blockTransSolver(index int) sat.Session {
	for len(e.genBlockTrans) <= index {
		s := e.newSess(e.sicn, false)
		s.AddCNF(e.spec.Trans)
		e.genBlockTrans = append(e.genBlockTrans, s)
	}
	return e.genBlockTrans[index]
}

// popMinLevel removes and returns the obligation with the lowest level,
// preferring the earliest queued among equals.
func popMinLevel(queue *[]proofObligation) proofObligation {
	q := *queue
	min := 0
	for i := 1; i < len(q); i++ {
		if q[i].level < q[min].level {
			min = i
		}
	}
	ob := q[min]
	*queue = append(q[:min], q[min+1:]...)
	return ob
}

func frameKeySet(c *cnf.CNF) map[string]bool {
	keys := make(map[string]bool, c.NrOfClauses())
	for _, cl := range c.Clauses() {
		keys[clauseKey(cl)] = true
	}
	return keys
}

func clauseKey(clause []int) string {
	sorted := append([]int(nil), clause...)
	sort.Ints(sorted)
	var b strings.Builder
	for _, lit := range sorted {
		b.WriteString(strconv.Itoa(lit))
		b.WriteByte(' ')
	}
	return b.String()
}
