// Package cnf provides the in-memory CNF representation used throughout the
// synthesizer: an ordered list of clauses over signed integer literals,
// together with the bulk edit operations the engines need and DIMACS I/O.
package cnf

import (
	"sort"
	"strconv"
	"strings"

	"github.com/safesynth/safesynth/pkg/vars"
)

// CNF is a conjunction of clauses. The zero value is the empty CNF, which is
// trivially true. A CNF holding a single empty clause is unsatisfiable.
// Clause order is observable (solver-feeding loops iterate in insertion
// order) but carries no meaning.
type CNF struct {
	clauses [][]int
}

// New returns an empty CNF.
func New() *CNF {
	return &CNF{}
}

// Clone returns a deep copy.
func (c *CNF) Clone() *CNF {
	out := &CNF{clauses: make([][]int, len(c.clauses))}
	for i, cl := range c.clauses {
		out.clauses[i] = append([]int(nil), cl...)
	}
	return out
}

// Clear removes all clauses.
func (c *CNF) Clear() {
	c.clauses = c.clauses[:0]
}

// AddClause appends a clause. The literals are copied.
func (c *CNF) AddClause(lits ...int) {
	c.clauses = append(c.clauses, append([]int(nil), lits...))
}

// AddCube adds every literal of the cube as a unit clause.
func (c *CNF) AddCube(cube []int) {
	for _, lit := range cube {
		c.AddClause(lit)
	}
}

// AddNegClauseAsCube adds the negation of a clause, literal by literal, as
// unit clauses.
func (c *CNF) AddNegClauseAsCube(clause []int) {
	for _, lit := range clause {
		c.AddClause(-lit)
	}
}

// AddNegCubeAsClause adds the negation of a cube as a single clause.
func (c *CNF) AddNegCubeAsClause(cube []int) {
	neg := append([]int(nil), cube...)
	NegateLits(neg)
	c.clauses = append(c.clauses, neg)
}

// AddCNF appends all clauses of other.
func (c *CNF) AddCNF(other *CNF) {
	for _, cl := range other.clauses {
		c.clauses = append(c.clauses, append([]int(nil), cl...))
	}
}

// AddClauseAndSimplify removes every existing clause that is a superset of
// the new clause, then appends it. It reports whether any clause was removed.
func (c *CNF) AddClauseAndSimplify(clause []int) bool {
	kept := c.clauses[:0]
	removed := false
	for _, cl := range c.clauses {
		if IsSubset(clause, cl) {
			removed = true
			continue
		}
		kept = append(kept, cl)
	}
	c.clauses = kept
	c.AddClause(clause...)
	return removed
}

// RemoveSmallest removes and returns a clause of minimum size. With ties the
// earliest inserted clause wins. Panics on an empty CNF.
func (c *CNF) RemoveSmallest() []int {
	if len(c.clauses) == 0 {
		panic("cnf: RemoveSmallest on empty CNF")
	}
	min := 0
	for i, cl := range c.clauses {
		if len(cl) < len(c.clauses[min]) {
			min = i
		}
	}
	res := c.clauses[min]
	c.clauses = append(c.clauses[:min], c.clauses[min+1:]...)
	return res
}

// Simplify removes every clause that is a superset of another clause.
// Clauses are compared pairwise, each pair at most once.
func (c *CNF) Simplify() {
	dead := make([]bool, len(c.clauses))
	for i := range c.clauses {
		if dead[i] {
			continue
		}
		for j := range c.clauses {
			if i == j || dead[j] {
				continue
			}
			if IsSubset(c.clauses[i], c.clauses[j]) {
				dead[j] = true
			}
		}
	}
	kept := c.clauses[:0]
	for i, cl := range c.clauses {
		if !dead[i] {
			kept = append(kept, cl)
		}
	}
	c.clauses = kept
}

// RemoveDuplicates normalizes the CNF to a set of sets and back: literals
// within each clause come out sorted, duplicate clauses collapse, and the
// clause list is sorted lexicographically.
func (c *CNF) RemoveDuplicates() {
	seen := make(map[string][]int, len(c.clauses))
	for _, cl := range c.clauses {
		s := append([]int(nil), cl...)
		sort.Ints(s)
		seen[litKey(s)] = s
	}
	c.clauses = c.clauses[:0]
	for _, cl := range seen {
		c.clauses = append(c.clauses, cl)
	}
	sort.Slice(c.clauses, func(i, j int) bool {
		return lessLits(c.clauses[i], c.clauses[j])
	})
}

// SwapPresentNext exchanges present-state and next-state variables in every
// literal, preserving polarity.
func (c *CNF) SwapPresentNext(reg *vars.Registry) {
	for _, cl := range c.clauses {
		reg.SwapPresentNext(cl)
	}
}

// Rename applies the injective variable map m to every literal: a literal l
// becomes m[|l|] with the sign of l. m must cover every variable occurring
// in the CNF.
func (c *CNF) Rename(m []int) {
	for _, cl := range c.clauses {
		for i, lit := range cl {
			if lit < 0 {
				cl[i] = -m[-lit]
			} else {
				cl[i] = m[lit]
			}
		}
	}
}

// SetVarValue fixes a variable to a value and propagates: clauses satisfied
// by the assignment are removed, the falsified literal is removed from the
// rest. If some clause becomes empty the whole CNF collapses to a single
// empty clause. Assumes each variable occurs at most once per clause.
func (c *CNF) SetVarValue(v int, value bool) {
	kept := c.clauses[:0]
	for _, cl := range c.clauses {
		satisfied := false
		falsifiedAt := -1
		for i, lit := range cl {
			if (lit == v && value) || (lit == -v && !value) {
				satisfied = true
				break
			}
			if (lit == v && !value) || (lit == -v && value) {
				falsifiedAt = i
				break
			}
		}
		if satisfied {
			continue
		}
		if falsifiedAt >= 0 {
			cl[falsifiedAt] = cl[len(cl)-1]
			cl = cl[:len(cl)-1]
			if len(cl) == 0 {
				c.clauses = [][]int{{}}
				return
			}
		}
		kept = append(kept, cl)
	}
	c.clauses = kept
}

// Negate replaces the CNF by a Tseitin encoding of its negation. For every
// clause with more than one literal a fresh auxiliary variable t is created
// with clauses (¬t ∨ ¬l) for each literal l; a final clause collects all the
// t variables together with the negations of the former unit clauses. The
// result is equisatisfiable to the negation over the original variables and
// must only be used where the introduced variables sit under an existential
// quantifier.
func (c *CNF) Negate(reg *vars.Registry) {
	original := c.clauses
	c.clauses = nil
	oneClauseFalse := make([]int, 0, len(original)+1)
	for _, cl := range original {
		if len(cl) == 1 {
			oneClauseFalse = append(oneClauseFalse, -cl[0])
			continue
		}
		t := reg.FreshTmp()
		oneClauseFalse = append(oneClauseFalse, t)
		for _, lit := range cl {
			c.AddClause(-t, -lit)
		}
	}
	c.clauses = append(c.clauses, oneClauseFalse)
}

// IsSatBy reports whether the cube syntactically satisfies the CNF: every
// clause must contain at least one literal that also occurs in the cube. No
// solver is involved.
func (c *CNF) IsSatBy(cube []int) bool {
	inCube := make(map[int]bool, len(cube))
	for _, lit := range cube {
		inCube[lit] = true
	}
	for _, cl := range c.clauses {
		satisfied := false
		for _, lit := range cl {
			if inCube[lit] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// Clauses exposes the clause list. The caller must not modify it.
func (c *CNF) Clauses() [][]int {
	return c.clauses
}

// NrOfClauses returns the number of clauses.
func (c *CNF) NrOfClauses() int {
	return len(c.clauses)
}

// NrOfLits returns the total number of literal occurrences.
func (c *CNF) NrOfLits() int {
	n := 0
	for _, cl := range c.clauses {
		n += len(cl)
	}
	return n
}

// MaxVar returns the largest variable id occurring in the CNF, 0 if none.
func (c *CNF) MaxVar() int {
	max := 0
	for _, cl := range c.clauses {
		for _, lit := range cl {
			v := lit
			if v < 0 {
				v = -v
			}
			if v > max {
				max = v
			}
		}
	}
	return max
}

// ContainsVar reports whether the variable occurs in any clause.
func (c *CNF) ContainsVar(v int) bool {
	for _, cl := range c.clauses {
		for _, lit := range cl {
			if lit == v || lit == -v {
				return true
			}
		}
	}
	return false
}

// AppendVarsTo inserts every occurring variable into the set.
func (c *CNF) AppendVarsTo(set map[int]bool) {
	for _, cl := range c.clauses {
		for _, lit := range cl {
			if lit < 0 {
				set[-lit] = true
			} else {
				set[lit] = true
			}
		}
	}
}

// Vars returns the occurring variables in ascending order.
func (c *CNF) Vars() []int {
	set := make(map[int]bool)
	c.AppendVarsTo(set)
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Equal reports clause-list equality, including order.
func (c *CNF) Equal(other *CNF) bool {
	if len(c.clauses) != len(other.clauses) {
		return false
	}
	for i, cl := range c.clauses {
		if len(cl) != len(other.clauses[i]) {
			return false
		}
		for j, lit := range cl {
			if lit != other.clauses[i][j] {
				return false
			}
		}
	}
	return true
}

// EqualSets reports whether the two CNFs contain the same clauses viewed as
// sets of literal sets.
func (c *CNF) EqualSets(other *CNF) bool {
	return clauseSet(c).equals(clauseSet(other))
}

type litSet map[string]bool

func clauseSet(c *CNF) litSet {
	s := make(litSet, len(c.clauses))
	for _, cl := range c.clauses {
		sorted := append([]int(nil), cl...)
		sort.Ints(sorted)
		s[litKey(sorted)] = true
	}
	return s
}

func (s litSet) equals(o litSet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o[k] {
			return false
		}
	}
	return true
}

func litKey(sorted []int) string {
	var b strings.Builder
	for _, lit := range sorted {
		b.WriteString(strconv.Itoa(lit))
		b.WriteByte(' ')
	}
	return b.String()
}

func lessLits(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
