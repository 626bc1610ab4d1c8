package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/qbf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/vars"
)

func TestInstrumentSatCountsCalls(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())
	start := rec.InstrumentSat(sat.Gini(false))
	s := start(nil, false)
	s.AddClause(1, 2)

	s.IsSat(nil)
	s.ModelOrCore(nil, []int{1})
	s.SplitModelOrCore([]int{1}, nil, nil)

	assert.Equal(t, 3.0, counterTotal(rec.satCalls))
	assert.Zero(t, counterTotal(rec.qbfCalls))
}

func TestInstrumentQbfCountsCalls(t *testing.T) {
	reg := vars.NewRegistry()
	x := reg.Create(vars.Input, "x")
	rec := NewRecorder(prometheus.NewRegistry())
	solver := rec.InstrumentQbf(qbf.NewCegar(reg, sat.Gini(false)))

	m := cnf.New()
	m.AddClause(x)
	sat1, err := solver.IsSat(qbf.Prefix{qbf.E(vars.Input)}, m)
	require.NoError(t, err)
	assert.True(t, sat1)
	assert.Equal(t, 1.0, counterTotal(rec.qbfCalls))
}

func TestRecorderWithoutRegisterer(t *testing.T) {
	rec := NewRecorder(nil)
	start := rec.InstrumentSat(sat.Gini(false))
	s := start(nil, false)
	s.AddClause(1)
	assert.True(t, s.IsSat(nil))
	assert.Equal(t, 1.0, counterTotal(rec.satCalls))
}
