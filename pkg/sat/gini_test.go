package sat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/cnf"
)

func newSession(t *testing.T, minCores bool) Session {
	t.Helper()
	return Gini(minCores)(nil, false)
}

func TestIsSat(t *testing.T) {
	s := newSession(t, false)
	s.AddClause(1, 2)
	s.AddClause(-1, 2)

	assert.True(t, s.IsSat(nil))
	assert.True(t, s.IsSat([]int{2}))
	assert.False(t, s.IsSat([]int{-2}))
	// The session stays usable after an unsat call.
	assert.True(t, s.IsSat([]int{1}))
}

func TestModel(t *testing.T) {
	s := newSession(t, false)
	s.AddClause(1)
	s.AddClause(-1, 2)

	sat, model := s.ModelOrCore(nil, []int{1, 2, 3})
	require.True(t, sat)
	assert.Contains(t, model, 1)
	assert.Contains(t, model, 2)
	assert.Len(t, model, 3)
}

func TestCoreIsSubsetOfAssumptions(t *testing.T) {
	s := newSession(t, false)
	s.AddClause(-1, -2)

	sat, core := s.ModelOrCore([]int{1, 2, 3}, nil)
	require.False(t, sat)
	assert.Subset(t, []int{1, 2, 3}, core)
	assert.NotContains(t, core, 3)
}

func TestMinimizedCore(t *testing.T) {
	s := newSession(t, true)
	s.AddClause(-1)

	sat, core := s.ModelOrCore([]int{2, 3, 1}, nil)
	require.False(t, sat)
	assert.Equal(t, []int{1}, core)
}

func TestSplitModelOrCore(t *testing.T) {
	s := newSession(t, true)
	// With 3 fixed, 1 and 2 together are inconsistent.
	s.AddClause(-3, -1, -2)

	sat, core := s.SplitModelOrCore([]int{1, 2}, []int{3}, nil)
	require.False(t, sat)
	// The core covers only the first assumption group.
	assert.Subset(t, []int{1, 2}, core)
	assert.NotContains(t, core, 3)

	sat, model := s.SplitModelOrCore([]int{1}, []int{3}, []int{2})
	require.True(t, sat)
	assert.Equal(t, []int{-2}, model)
}

func TestAddCNFAndNegCube(t *testing.T) {
	s := newSession(t, false)
	c := cnf.New()
	c.AddClause(1, 2)
	c.AddClause(-2, 3)
	s.AddCNF(c)
	s.AddNegCubeAsClause([]int{1, 3})

	// 1 ∧ 3 is now excluded.
	assert.False(t, s.IsSat([]int{1, 3}))
	assert.True(t, s.IsSat([]int{1, -3}))
}
