package engine

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/qbf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/vars"
)

// Latch s with s' = c, error once s is raised. Realizable: hold c at 0;
// the winning region is ¬error ∧ ¬s.
const aagToggle = `aag 2 1 1 1 0
2
4 2
4
i0 controllable_c
l0 s
`

// Error exactly when c is 0: the controller must assert c every step.
// Realizable with the trivial region ¬error.
const aagHold = `aag 2 1 1 1 0
2
4 4
3
i0 controllable_c
l0 s
`

// No controllable inputs and the error bit rises immediately.
const aagDoomed = `aag 2 0 1 1 0
4 4
5
l0 s
`

// s' = u: the environment forces the error in two steps.
const aagEnvForced = `aag 3 2 1 1 0
2
4
6 2
6
i0 u
i1 controllable_c
l0 s
`

// Two latches both fed by c and an error as soon as either is set. The
// winning region ¬error ∧ ¬s1 ∧ ¬s2 needs two template clauses.
const aagTwoClause = `aag 4 1 2 1 1
2
4 2
6 2
9
8 5 7
i0 controllable_c
l0 s1
l1 s2
`

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(log)
}

func encodeAag(t *testing.T, src string) *aig.Spec {
	t.Helper()
	g, err := aig.Read(strings.NewReader(src))
	require.NoError(t, err)
	spec, err := aig.Encode(g, vars.NewRegistry())
	require.NoError(t, err)
	return spec
}

// checkWinningRegion verifies the soundness conditions of a winning region:
// I → W, W → ¬E, and closure under the system's ability to stay inside.
func checkWinningRegion(t *testing.T, spec *aig.Spec, res Result) {
	t.Helper()
	require.True(t, res.Realizable)
	reg := spec.Reg
	starter := sat.Gini(false)

	// I → W, i.e. I ∧ ¬W is unsatisfiable.
	s := starter(nil, false)
	s.AddCNF(spec.Initial)
	s.AddCNF(res.NegWin)
	require.False(t, s.IsSat(nil), "initial state is not inside the winning region")

	// W → ¬E, i.e. W ∧ E is unsatisfiable.
	s = starter(nil, false)
	s.AddCNF(res.Win)
	s.AddCNF(spec.Unsafe)
	require.False(t, s.IsSat(nil), "winning region contains an error state")

	// ∃x,u ∀c ∃x',tmp. W(x) ∧ T ∧ ¬W(x') must be unsatisfiable.
	escape := res.NegWin.Clone()
	escape.SwapPresentNext(reg)
	escape.AddCNF(spec.Trans)
	escape.AddCNF(res.Win)
	prefix := qbf.Prefix{
		qbf.E(vars.PresState),
		qbf.E(vars.Input),
		qbf.A(vars.Ctrl),
		qbf.E(vars.NextState),
		qbf.E(vars.Tmp),
	}
	solver := qbf.NewCegar(reg, starter)
	escapes, err := solver.IsSat(prefix, escape)
	require.NoError(t, err)
	require.False(t, escapes, "environment can force the system out of the winning region")
}
