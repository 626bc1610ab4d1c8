package cnf

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimacsRoundTrip(t *testing.T) {
	c := New()
	c.AddClause(1, -3)
	c.AddClause(2)
	c.AddClause(-1, -2, 3)

	path := filepath.Join(t.TempDir(), "out.dimacs")
	require.NoError(t, c.SaveFile(path))

	loaded, err := LoadFile(path, 3)
	require.NoError(t, err)
	assert.True(t, c.Equal(loaded))
}

func TestDimacsString(t *testing.T) {
	c := New()
	c.AddClause(1, -2)
	c.AddClause(3)
	assert.Equal(t, "1 -2 0\n3 0\n", c.String())
}

func TestReadDimacs(t *testing.T) {
	in := `c a comment
p cnf 4 2
1 -2 0
3 4 0
`
	c, err := ReadDimacs(strings.NewReader(in), 4)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, -2}, {3, 4}}, c.Clauses())
}

func TestReadDimacsErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		input  string
		maxVar int
	}{
		"no header":        {"1 2 0\n", 5},
		"bad header":       {"p dnf 2 1\n1 2 0\n", 5},
		"unknown variable": {"p cnf 9 1\n9 0\n", 5},
		"clause mismatch":  {"p cnf 2 3\n1 2 0\n", 5},
		"unterminated":     {"p cnf 2 1\n1 2\n", 5},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadDimacs(strings.NewReader(tc.input), tc.maxVar)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.dimacs"), 5)
	assert.Error(t, err)
}
