package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/vars"
)

func TestLoadRoundTrip(t *testing.T) {
	spec := encodeAag(t, aagToggle)
	reg := spec.Reg
	sVar := reg.OfKind(vars.PresState)[1]

	win := cnf.New()
	win.AddClause(-reg.PresError())
	win.AddClause(-sVar)
	path := filepath.Join(t.TempDir(), "toggle.dimacs")
	require.NoError(t, win.SaveFile(path))

	eng := NewLoad(spec, testLog(), path)
	res, err := eng.ComputeWinningRegion()
	require.NoError(t, err)
	require.True(t, res.Realizable)
	assert.True(t, res.Win.Equal(win))
	checkWinningRegion(t, spec, res)
}

func TestLoadMissingFile(t *testing.T) {
	spec := encodeAag(t, aagToggle)
	eng := NewLoad(spec, testLog(), filepath.Join(t.TempDir(), "absent.dimacs"))
	_, err := eng.ComputeWinningRegion()
	assert.Error(t, err)
}
