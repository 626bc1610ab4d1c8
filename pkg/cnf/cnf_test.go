package cnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/vars"
)

func clauses(c *CNF) [][]int {
	return c.Clauses()
}

func TestEmptyCNF(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.NrOfClauses())
	assert.Equal(t, 0, c.NrOfLits())
	assert.True(t, c.IsSatBy(nil))
	assert.True(t, c.IsSatBy([]int{1, -2}))
}

func TestAddForms(t *testing.T) {
	c := New()
	c.AddClause(1, -2)
	c.AddCube([]int{3, -4})
	c.AddNegCubeAsClause([]int{5, -6})
	c.AddNegClauseAsCube([]int{7, -8})
	require.Equal(t, [][]int{
		{1, -2},
		{3},
		{-4},
		{-5, 6},
		{-7},
		{8},
	}, clauses(c))

	other := New()
	other.AddClause(9)
	c.AddCNF(other)
	assert.Equal(t, []int{9}, clauses(c)[6])
}

func TestAddClauseAndSimplify(t *testing.T) {
	c := New()
	c.AddClause(1, 2, 3)
	c.AddClause(1, 2)
	c.AddClause(4)

	// {1,2,3} and the equal clause {1,2} are both supersets of {2,1}:
	// both go away.
	removed := c.AddClauseAndSimplify([]int{2, 1})
	assert.True(t, removed)
	assert.Equal(t, [][]int{{4}, {2, 1}}, clauses(c))

	removed = c.AddClauseAndSimplify([]int{5, 6})
	assert.False(t, removed)
}

func TestRemoveSmallest(t *testing.T) {
	c := New()
	c.AddClause(1, 2, 3)
	c.AddClause(4, 5)
	c.AddClause(6, 7)
	got := c.RemoveSmallest()
	assert.Equal(t, []int{4, 5}, got)
	assert.Equal(t, 2, c.NrOfClauses())

	assert.Panics(t, func() { New().RemoveSmallest() })
}

func TestSimplifyIdempotent(t *testing.T) {
	c := New()
	c.AddClause(1, 2, 3)
	c.AddClause(1, 2)
	c.AddClause(2, 1, 4)
	c.AddClause(5)
	c.Simplify()

	once := c.Clone()
	c.Simplify()
	assert.True(t, c.EqualSets(once))
	assert.Equal(t, [][]int{{1, 2}, {5}}, clauses(c))
}

func TestRemoveDuplicates(t *testing.T) {
	c := New()
	c.AddClause(3, 1)
	c.AddClause(1, 3)
	c.AddClause(-2)
	c.AddClause(-2)
	c.RemoveDuplicates()

	assert.Equal(t, [][]int{{-2}, {1, 3}}, clauses(c))

	once := c.Clone()
	c.RemoveDuplicates()
	assert.True(t, c.Equal(once))
}

func TestSetVarValue(t *testing.T) {
	c := New()
	c.AddClause(1, 2)
	c.AddClause(-1, 3)
	c.SetVarValue(1, true)
	assert.Equal(t, [][]int{{3}}, clauses(c))

	// Emptying the last literal of a clause collapses the CNF.
	c = New()
	c.AddClause(1)
	c.AddClause(2, 3)
	c.SetVarValue(1, false)
	require.Equal(t, [][]int{{}}, clauses(c))
	assert.False(t, c.IsSatBy([]int{2}))

	// A collapsed CNF cannot be recovered.
	c.SetVarValue(2, true)
	assert.Equal(t, [][]int{{}}, clauses(c))
}

func TestIsSatByIsPurelySyntactic(t *testing.T) {
	c := New()
	c.AddClause(1, 2)
	c.AddClause(-3)

	assert.True(t, c.IsSatBy([]int{1, -3}))
	assert.True(t, c.IsSatBy([]int{2, -3, 5}))
	// Cube {3} does not intersect clause {-3} even though variable 3
	// occurs; the check is on literals.
	assert.False(t, c.IsSatBy([]int{1, 3}))
	assert.False(t, c.IsSatBy([]int{1}))
}

func TestRename(t *testing.T) {
	c := New()
	c.AddClause(1, -2)
	c.Rename([]int{0, 5, 7})
	assert.Equal(t, [][]int{{5, -7}}, clauses(c))
}

// evalCNF evaluates the CNF under a total assignment, mapping variable to
// polarity.
func evalCNF(c *CNF, assignment map[int]bool) bool {
	for _, cl := range c.Clauses() {
		sat := false
		for _, lit := range cl {
			v := lit
			if v < 0 {
				v = -v
			}
			val, ok := assignment[v]
			if !ok {
				continue
			}
			if (lit > 0) == val {
				sat = true
				break
			}
		}
		if !sat {
			return false
		}
	}
	return true
}

func TestNegateRoundTrip(t *testing.T) {
	reg := vars.NewRegistry()
	v1 := reg.Create(vars.PresState, "a")
	v2 := reg.Create(vars.PresState, "b")
	v3 := reg.Create(vars.PresState, "c")

	orig := New()
	orig.AddClause(v1, -v2)
	orig.AddClause(v3)

	neg := orig.Clone()
	neg.Negate(reg)
	tmps := reg.OfKind(vars.Tmp)
	require.Len(t, tmps, 1) // one auxiliary for the single multi-literal clause

	// For every total assignment over the original variables: it
	// satisfies the original iff no extension to the auxiliaries
	// satisfies the negation.
	for bits := 0; bits < 8; bits++ {
		assignment := map[int]bool{
			v1: bits&1 != 0,
			v2: bits&2 != 0,
			v3: bits&4 != 0,
		}
		origSat := evalCNF(orig, assignment)
		negSat := false
		for tbits := 0; tbits < 2; tbits++ {
			assignment[tmps[0]] = tbits != 0
			if evalCNF(neg, assignment) {
				negSat = true
			}
		}
		delete(assignment, tmps[0])
		assert.Equal(t, origSat, !negSat, "assignment %v", assignment)
	}
}

func TestSwapPresentNextInvolution(t *testing.T) {
	reg := vars.NewRegistry()
	p1 := reg.Create(vars.PresState, "p1")
	p2 := reg.Create(vars.PresState, "p2")
	in := reg.Create(vars.Input, "u")
	n1 := reg.Create(vars.NextState, "n1")
	n2 := reg.Create(vars.NextState, "n2")

	c := New()
	c.AddClause(p1, -p2, in)
	c.AddClause(-p1)

	orig := c.Clone()
	c.SwapPresentNext(reg)
	assert.Equal(t, [][]int{{n1, -n2, in}, {-n1}}, clauses(c))
	c.SwapPresentNext(reg)
	assert.True(t, c.Equal(orig))
}

func TestVarsHelpers(t *testing.T) {
	c := New()
	c.AddClause(3, -1)
	c.AddClause(-3, 7)
	assert.Equal(t, []int{1, 3, 7}, c.Vars())
	assert.Equal(t, 7, c.MaxVar())
	assert.True(t, c.ContainsVar(1))
	assert.False(t, c.ContainsVar(2))
}

func TestIsSubset(t *testing.T) {
	assert.True(t, IsSubset([]int{1, 2}, []int{2, 3, 1}))
	assert.False(t, IsSubset([]int{1, -2}, []int{1, 2}))
	assert.True(t, IsSubset(nil, []int{1}))
	assert.False(t, IsSubset([]int{1}, nil))
}
