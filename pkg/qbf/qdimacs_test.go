package qbf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/vars"
)

func TestWriteQDimacsMergesAdjacentBlocks(t *testing.T) {
	reg := vars.NewRegistry()
	u := reg.Create(vars.Input, "u")
	p := reg.Create(vars.PresState, "error")
	c := reg.Create(vars.Ctrl, "c")

	matrix := cnf.New()
	matrix.AddClause(u, -p)
	matrix.AddClause(c)

	// Input and PresState are both existential and adjacent: the writer
	// must fuse them into one quantifier line.
	prefix := Prefix{E(vars.Input), E(vars.PresState), A(vars.Ctrl)}
	var b strings.Builder
	require.NoError(t, WriteQDimacs(&b, reg, prefix, matrix))
	assert.Equal(t, "p cnf 3 2\ne 1 2 0\na 3 0\n1 -2 0\n3 0\n", b.String())
}

func TestWriteQDimacsSkipsEmptyBlocks(t *testing.T) {
	reg := vars.NewRegistry()
	x := reg.Create(vars.PresState, "x")
	matrix := cnf.New()
	matrix.AddClause(x)

	prefix := Prefix{E(vars.TemplParam), A(vars.PresState), E(vars.Tmp)}
	var b strings.Builder
	require.NoError(t, WriteQDimacs(&b, reg, prefix, matrix))
	assert.Equal(t, "p cnf 1 1\na 1 0\n1 0\n", b.String())
}

func TestReadQDimacs(t *testing.T) {
	in := `c comment
p cnf 4 2
e 1 2 0
a 3 0
1 -3 0
2 4 0
`
	prefix, matrix, err := ReadQDimacs(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, prefix, 2)
	assert.Equal(t, Exists, prefix[0].Q)
	assert.Equal(t, []int{1, 2}, prefix[0].Vars)
	assert.Equal(t, Forall, prefix[1].Q)
	assert.Equal(t, [][]int{{1, -3}, {2, 4}}, matrix.Clauses())
}

func TestWriteReadRoundTrip(t *testing.T) {
	reg := vars.NewRegistry()
	a := reg.Create(vars.Input, "a")
	b := reg.Create(vars.Ctrl, "b")
	matrix := cnf.New()
	matrix.AddClause(a, -b)

	prefix := Prefix{A(vars.Input), E(vars.Ctrl)}
	var buf strings.Builder
	require.NoError(t, WriteQDimacs(&buf, reg, prefix, matrix))

	gotPrefix, gotMatrix, err := ReadQDimacs(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, gotPrefix, 2)
	assert.Equal(t, []int{a}, gotPrefix[0].Vars)
	assert.Equal(t, []int{b}, gotPrefix[1].Vars)
	assert.True(t, matrix.Equal(gotMatrix))
}

func TestParseResponse(t *testing.T) {
	model, sat, err := ParseResponse(strings.NewReader("s cnf 1\nV 3 0\nV -4 0\n"))
	require.NoError(t, err)
	assert.True(t, sat)
	assert.Equal(t, []int{3, -4}, model)

	_, sat, err = ParseResponse(strings.NewReader("\ns cnf 0\n"))
	require.NoError(t, err)
	assert.False(t, sat)

	_, _, err = ParseResponse(strings.NewReader("something else\n"))
	assert.Error(t, err)

	_, _, err = ParseResponse(strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseAssignmentLines(t *testing.T) {
	in := "1 -1\n2 2\n3 0\nnoise\n4 4\n"
	model, err := ParseAssignmentLines(strings.NewReader(in), []int{1, 2, 3})
	require.NoError(t, err)
	// Variable 3 is a don't-care and variable 4 is not of interest.
	assert.Equal(t, []int{-1, 2}, model)
}
