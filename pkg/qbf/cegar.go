package qbf

import (
	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/vars"
)

// Cegar is an in-process QBF solver built on the SAT backend. It decides
// prenex problems by counterexample-guided expansion: universally quantified
// blocks are refuted or confirmed through pairs of incremental SAT sessions,
// in the style of expansion-based QBF solvers. Auxiliary variables created
// during solving are reclaimed from the registry when the call returns.
type Cegar struct {
	reg     *vars.Registry
	session sat.Starter
}

// NewCegar returns an in-process solver allocating from reg and creating
// SAT sessions with start.
func NewCegar(reg *vars.Registry, start sat.Starter) *Cegar {
	return &Cegar{reg: reg, session: start}
}

// IsSat decides the QBF.
func (c *Cegar) IsSat(prefix Prefix, matrix *cnf.CNF) (bool, error) {
	_, sat, err := c.IsSatModel(prefix, matrix)
	return sat, err
}

// IsSatModel decides the QBF and returns an assignment to the outermost
// existential block(s) when satisfiable. If the outermost block is
// universal, a satisfiable result carries an empty model.
func (c *Cegar) IsSatModel(prefix Prefix, matrix *cnf.CNF) ([]int, bool, error) {
	c.reg.Push()
	defer func() {
		c.reg.ResetToLastPush()
		c.reg.Pop()
	}()
	model, ok := c.solve(prefix.resolve(c.reg), matrix.Clone())
	if !ok {
		return nil, false, nil
	}
	return model, true, nil
}

// solve decides the blocks over the matrix. The matrix is consumed. On a
// satisfiable result with a leading existential block, the returned cube is
// a total assignment to that block witnessing satisfiability.
func (c *Cegar) solve(blocks []Block, matrix *cnf.CNF) ([]int, bool) {
	firstForall := -1
	for i, b := range blocks {
		if b.Q == Forall {
			firstForall = i
			break
		}
	}

	if firstForall < 0 {
		// Purely existential: one SAT call.
		s := c.session(nil, false)
		s.AddCNF(matrix)
		var interest []int
		if len(blocks) > 0 {
			interest = blocks[0].Vars
		}
		return s.ModelOrCore(nil, interest)
	}

	if firstForall == 0 {
		// Leading universal: decide the dual problem.
		neg, negBlocks := c.dualize(blocks, matrix)
		_, ok := c.solve(negBlocks, neg)
		if ok {
			return nil, false
		}
		return nil, true
	}

	// Leading existential with at least one universal block. Flatten to
	// the ∃X ∀Y ∃Z shape by expanding universal blocks beyond the first.
	blocks, matrix = c.flatten(blocks, matrix)
	x := blocks[0].Vars
	y := blocks[1].Vars

	inX := make(map[int]bool, len(x))
	for _, v := range x {
		inX[v] = true
	}

	abstraction := c.session(nil, false)
	for {
		ok, candidate := abstraction.ModelOrCore(nil, x)
		if !ok {
			return nil, false
		}
		sub := matrix.Clone()
		applyCube(sub, candidate)
		holds, counter := c.forallExists(y, sub)
		if holds {
			return candidate, true
		}
		// The universal player wins with counter; future candidates
		// must survive it. Instantiate the matrix with counter, give
		// the inner variables a fresh identity, and conjoin.
		refined := matrix.Clone()
		applyCube(refined, counter)
		c.renameExcept(refined, inX)
		abstraction.AddCNF(refined)
	}
}

// forallExists decides ∀Y ∃rest. ψ where rest is every matrix variable
// outside y. When false, the returned cube is a total assignment to y for
// which no inner assignment satisfies ψ.
func (c *Cegar) forallExists(y []int, psi *cnf.CNF) (bool, []int) {
	inY := make(map[int]bool, len(y))
	for _, v := range y {
		inY[v] = true
	}
	var inner []int
	for _, v := range psi.Vars() {
		if !inY[v] {
			inner = append(inner, v)
		}
	}

	verifier := c.session(nil, false)
	verifier.AddCNF(psi)

	candidates := c.session(nil, false)
	for {
		ok, candidate := candidates.ModelOrCore(nil, y)
		if !ok {
			return true, nil
		}
		ok, model := verifier.ModelOrCore(candidate, inner)
		if !ok {
			return false, candidate
		}
		// The inner player answers candidate with model; rule out
		// every y this answer also handles.
		handled := psi.Clone()
		applyCube(handled, model)
		handled.Negate(c.reg)
		candidates.AddCNF(handled)
	}
}

// dualize negates the matrix (Tseitin, fresh auxiliaries innermost) and
// flips every quantifier.
func (c *Cegar) dualize(blocks []Block, matrix *cnf.CNF) (*cnf.CNF, []Block) {
	before := c.reg.MaxVar()
	neg := matrix.Clone()
	neg.Negate(c.reg)
	out := make([]Block, 0, len(blocks)+1)
	for _, b := range blocks {
		q := Exists
		if b.Q == Exists {
			q = Forall
		}
		out = append(out, Block{Q: q, Vars: b.Vars})
	}
	var aux []int
	for v := before + 1; v <= c.reg.MaxVar(); v++ {
		aux = append(aux, v)
	}
	if len(aux) > 0 {
		out = append(out, Block{Q: Exists, Vars: aux})
	}
	return neg, normalize(out)
}

// flatten reduces a leading-existential prefix to at most three blocks by
// Shannon-expanding every universal variable beyond the first universal
// block. The expansion doubles the clauses it touches per variable; deep
// prefixes never occur in the synthesis queries, which are all ∃∀∃.
func (c *Cegar) flatten(blocks []Block, matrix *cnf.CNF) ([]Block, *cnf.CNF) {
	for {
		forallIdx := -1
		for i := len(blocks) - 1; i >= 0; i-- {
			if blocks[i].Q == Forall {
				forallIdx = i
				break
			}
		}
		if forallIdx <= 1 {
			return blocks, matrix
		}
		var inner []int
		for _, b := range blocks[forallIdx+1:] {
			inner = append(inner, b.Vars...)
		}
		w := blocks[forallIdx].Vars
		for _, wv := range w {
			matrix, inner = c.expandVar(matrix, wv, inner)
		}
		merged := append(append([]int(nil), blocks[forallIdx-1].Vars...), inner...)
		blocks = append(blocks[:forallIdx-1], Block{Q: Exists, Vars: merged})
		blocks = normalize(blocks)
	}
}

// expandVar replaces ∀w ∃inner. φ by ∃inner,inner'. φ[w:=⊥] ∧ φ'[w:=⊤],
// where φ' renames inner to the fresh copies inner'. It returns the new
// matrix and the combined inner variable set.
func (c *Cegar) expandVar(matrix *cnf.CNF, w int, inner []int) (*cnf.CNF, []int) {
	low := matrix.Clone()
	low.SetVarValue(w, false)
	high := matrix.Clone()
	high.SetVarValue(w, true)

	max := high.MaxVar()
	for _, v := range inner {
		if v > max {
			max = v
		}
	}
	rename := make([]int, max+1)
	for i := range rename {
		rename[i] = i
	}
	copies := make([]int, 0, len(inner))
	for _, v := range inner {
		f := c.reg.FreshTmp()
		rename[v] = f
		copies = append(copies, f)
	}
	high.Rename(rename)
	low.AddCNF(high)
	return low, append(inner, copies...)
}

// renameExcept maps every variable of m not in keep to a fresh auxiliary.
func (c *Cegar) renameExcept(m *cnf.CNF, keep map[int]bool) {
	occurring := m.Vars()
	max := 0
	if n := len(occurring); n > 0 {
		max = occurring[n-1]
	}
	rename := make([]int, max+1)
	for i := range rename {
		rename[i] = i
	}
	for _, v := range occurring {
		if !keep[v] {
			rename[v] = c.reg.FreshTmp()
		}
	}
	m.Rename(rename)
}

func applyCube(m *cnf.CNF, cube []int) {
	for _, lit := range cube {
		if lit < 0 {
			m.SetVarValue(-lit, false)
		} else {
			m.SetVarValue(lit, true)
		}
	}
}

// normalize drops empty blocks and merges adjacent same-quantifier blocks.
func normalize(blocks []Block) []Block {
	out := blocks[:0]
	for _, b := range blocks {
		if len(b.Vars) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Q == b.Q {
			out[n-1].Vars = append(out[n-1].Vars, b.Vars...)
			continue
		}
		out = append(out, b)
	}
	return out
}
