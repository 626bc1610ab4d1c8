package sat

import (
	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/safesynth/safesynth/pkg/cnf"
)

const (
	satisfiable   = 1
	unsatisfiable = -1
)

// Gini returns a Starter producing sessions backed by the gini CDCL solver.
// When minimizeCores is set, unsat cores are shrunk by the deterministic
// drop-one-and-retest loop before being returned. The randomizeModels flag
// is ignored: gini assigns phases deterministically.
func Gini(minimizeCores bool) Starter {
	return func(watch []int, randomizeModels bool) Session {
		return &giniSession{
			g:             gini.New(),
			minimizeCores: minimizeCores,
		}
	}
}

type giniSession struct {
	g             *gini.Gini
	minimizeCores bool
}

func (s *giniSession) AddClause(lits ...int) {
	for _, lit := range lits {
		s.ensure(lit)
		s.g.Add(z.Dimacs2Lit(lit))
	}
	s.g.Add(z.LitNull)
}

// ensure makes the variable of lit known to the solver. Assuming or reading
// a variable the solver has never seen is undefined; fresh variables are
// unconstrained and default to false in models.
func (s *giniSession) ensure(lit int) {
	v := lit
	if v < 0 {
		v = -v
	}
	for int(s.g.MaxVar()) < v {
		s.g.Lit()
	}
}

func (s *giniSession) AddCNF(c *cnf.CNF) {
	for _, cl := range c.Clauses() {
		s.AddClause(cl...)
	}
}

func (s *giniSession) AddNegCubeAsClause(cube []int) {
	s.AddClause(cnf.Negated(cube)...)
}

func (s *giniSession) IsSat(assumptions []int) bool {
	s.assume(assumptions)
	return s.g.Solve() == satisfiable
}

func (s *giniSession) ModelOrCore(assumptions, interest []int) (bool, []int) {
	return s.SplitModelOrCore(assumptions, nil, interest)
}

func (s *giniSession) SplitModelOrCore(coreAssumps, fixedAssumps, interest []int) (bool, []int) {
	s.assume(fixedAssumps)
	s.assume(coreAssumps)
	if s.g.Solve() == satisfiable {
		return true, s.model(interest)
	}
	core := s.failed(coreAssumps)
	if s.minimizeCores {
		core = s.minimize(core, fixedAssumps)
	}
	return false, core
}

func (s *giniSession) assume(lits []int) {
	for _, lit := range lits {
		s.ensure(lit)
		s.g.Assume(z.Dimacs2Lit(lit))
	}
}

// model projects the current satisfying assignment onto the given variables.
func (s *giniSession) model(interest []int) []int {
	out := make([]int, 0, len(interest))
	for _, v := range interest {
		if v < 0 {
			v = -v
		}
		if int(s.g.MaxVar()) < v {
			out = append(out, -v)
			continue
		}
		if s.g.Value(z.Dimacs2Lit(v)) {
			out = append(out, v)
		} else {
			out = append(out, -v)
		}
	}
	return out
}

// failed returns the failed assumptions restricted to the given group,
// preserving the group's order and polarities.
func (s *giniSession) failed(group []int) []int {
	why := s.g.Why(nil)
	inWhy := make(map[int]bool, len(why))
	for _, m := range why {
		inWhy[m.Dimacs()] = true
	}
	out := make([]int, 0, len(why))
	for _, lit := range group {
		if inWhy[lit] {
			out = append(out, lit)
		}
	}
	return out
}

// minimize drops core literals one at a time, keeping the fixed assumptions,
// and retests; literals whose removal keeps the problem unsat are discarded.
func (s *giniSession) minimize(core, fixedAssumps []int) []int {
	for i := 0; i < len(core); {
		trial := make([]int, 0, len(core)-1)
		trial = append(trial, core[:i]...)
		trial = append(trial, core[i+1:]...)
		s.assume(fixedAssumps)
		s.assume(trial)
		if s.g.Solve() == unsatisfiable {
			core = trial
		} else {
			i++
		}
	}
	return core
}
