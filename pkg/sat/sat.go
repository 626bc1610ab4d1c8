// Package sat defines the incremental SAT session contract used by the
// synthesis engines and implements it on top of the gini solver.
package sat

import "github.com/safesynth/safesynth/pkg/cnf"

// Session is one incremental SAT solving session. Clauses accumulate
// monotonically; solving never invalidates the session. A session is owned
// by a single engine and is not safe for concurrent use.
type Session interface {
	// AddClause adds one clause.
	AddClause(lits ...int)
	// AddCNF adds every clause of c.
	AddCNF(c *cnf.CNF)
	// AddNegCubeAsClause adds the negation of the cube as a clause.
	AddNegCubeAsClause(cube []int)
	// IsSat solves under the given assumption literals.
	IsSat(assumptions []int) bool
	// ModelOrCore solves under the assumptions. On SAT, out is the model
	// projected onto the interest variables, expressed as a cube. On
	// UNSAT, out is a subset of the assumptions sufficient for
	// unsatisfiability.
	ModelOrCore(assumptions, interest []int) (sat bool, out []int)
	// SplitModelOrCore solves under coreAssumps together with
	// fixedAssumps. On SAT the model is projected onto interest; on
	// UNSAT the returned core is restricted to coreAssumps, with
	// fixedAssumps held throughout.
	SplitModelOrCore(coreAssumps, fixedAssumps, interest []int) (sat bool, out []int)
}

// Starter creates a fresh incremental session. watch declares the variables
// the caller will later project models onto; randomizeModels asks for
// randomized model values where the backing solver supports it.
type Starter func(watch []int, randomizeModels bool) Session
