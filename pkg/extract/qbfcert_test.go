package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/qbf"
)

// stubCertifier hands back a prepared graph, recording the query.
type stubCertifier struct {
	graph  *aig.Graph
	prefix qbf.Prefix
	matrix *cnf.CNF
}

func (s *stubCertifier) Certify(prefix qbf.Prefix, matrix *cnf.CNF) (*aig.Graph, error) {
	s.prefix = prefix
	s.matrix = matrix
	return s.graph, nil
}

func TestQBFCertPostProcessing(t *testing.T) {
	spec := testSpec(t)

	// The certificate exposes the existential variables as inputs: one
	// uncontrollable input, then the error bit, then the remaining
	// state; one and-gate reads the negated error bit.
	cert := &stubCertifier{graph: &aig.Graph{
		MaxVar: 5,
		Inputs: []aig.Symbol{{Lit: 2}, {Lit: 4}, {Lit: 6}},
		Ands:   []aig.And{{LHS: 10, RHS0: 5, RHS1: 6}, {LHS: 8, RHS0: 4, RHS1: 2}},
	}}

	out := filepath.Join(t.TempDir(), "impl.aag")
	ex := NewQBFCert(testLog(), cert, out)

	win := cnf.New()
	win.AddClause(-spec.Reg.PresError())
	negWin := cnf.New()
	negWin.AddClause(spec.Reg.PresError())
	require.NoError(t, ex.Extract(win, negWin, spec))

	// The error-bit input (lit 4) is gone, its occurrences in gates are
	// replaced by constants, and the missing control output is padded
	// with constant false.
	g := cert.graph
	require.Len(t, g.Inputs, 2)
	assert.Equal(t, uint(2), g.Inputs[0].Lit)
	assert.Equal(t, uint(6), g.Inputs[1].Lit)
	assert.Equal(t, aig.And{LHS: 10, RHS0: 1, RHS1: 6}, g.Ands[0])
	assert.Equal(t, aig.And{LHS: 8, RHS0: 0, RHS1: 2}, g.Ands[1])
	require.Len(t, g.Outputs, 1)
	assert.Equal(t, uint(0), g.Outputs[0].Lit)

	// The strategy query existentially quantifies state and input
	// outermost and universally quantifies the controls.
	require.NotNil(t, cert.matrix)
	require.GreaterOrEqual(t, len(cert.prefix), 3)
	assert.Equal(t, qbf.Exists, cert.prefix[0].Q)
	assert.Equal(t, qbf.Forall, cert.prefix[2].Q)

	written, err := aig.LoadFile(out)
	require.NoError(t, err)
	assert.Len(t, written.Outputs, 1)
}
