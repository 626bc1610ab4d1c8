// Package stats instruments the solver backends with prometheus metrics and
// produces the end-of-run statistics summary.
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/qbf"
	"github.com/safesynth/safesynth/pkg/sat"
)

// Recorder counts solver calls and the time spent in them.
type Recorder struct {
	satCalls   prometheus.Counter
	satSeconds prometheus.Counter
	qbfCalls   prometheus.Counter
	qbfSeconds prometheus.Counter
}

// NewRecorder creates a recorder and registers its collectors.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		satCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safesynth_sat_calls_total",
			Help: "Number of SAT solver invocations.",
		}),
		satSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safesynth_sat_seconds_total",
			Help: "Wall-clock seconds spent in SAT solver calls.",
		}),
		qbfCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safesynth_qbf_calls_total",
			Help: "Number of QBF solver invocations.",
		}),
		qbfSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safesynth_qbf_seconds_total",
			Help: "Wall-clock seconds spent in QBF solver calls.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.satCalls, r.satSeconds, r.qbfCalls, r.qbfSeconds)
	}
	return r
}

// InstrumentSat wraps a session starter so that every solve call is counted
// and timed.
func (r *Recorder) InstrumentSat(start sat.Starter) sat.Starter {
	return func(watch []int, randomizeModels bool) sat.Session {
		return &instrumentedSession{inner: start(watch, randomizeModels), rec: r}
	}
}

type instrumentedSession struct {
	inner sat.Session
	rec   *Recorder
}

func (s *instrumentedSession) AddClause(lits ...int) { s.inner.AddClause(lits...) }

func (s *instrumentedSession) AddCNF(c *cnf.CNF) { s.inner.AddCNF(c) }

func (s *instrumentedSession) AddNegCubeAsClause(cube []int) { s.inner.AddNegCubeAsClause(cube) }

func (s *instrumentedSession) IsSat(assumptions []int) bool {
	defer s.rec.timeSat(time.Now())
	return s.inner.IsSat(assumptions)
}

func (s *instrumentedSession) ModelOrCore(assumptions, interest []int) (bool, []int) {
	defer s.rec.timeSat(time.Now())
	return s.inner.ModelOrCore(assumptions, interest)
}

func (s *instrumentedSession) SplitModelOrCore(coreAssumps, fixedAssumps, interest []int) (bool, []int) {
	defer s.rec.timeSat(time.Now())
	return s.inner.SplitModelOrCore(coreAssumps, fixedAssumps, interest)
}

func (r *Recorder) timeSat(start time.Time) {
	r.satCalls.Inc()
	r.satSeconds.Add(time.Since(start).Seconds())
}

// InstrumentQbf wraps a QBF solver so that every call is counted and timed.
func (r *Recorder) InstrumentQbf(inner qbf.Solver) qbf.Solver {
	return &instrumentedQbf{inner: inner, rec: r}
}

type instrumentedQbf struct {
	inner qbf.Solver
	rec   *Recorder
}

func (q *instrumentedQbf) IsSat(prefix qbf.Prefix, matrix *cnf.CNF) (bool, error) {
	defer q.rec.timeQbf(time.Now())
	return q.inner.IsSat(prefix, matrix)
}

func (q *instrumentedQbf) IsSatModel(prefix qbf.Prefix, matrix *cnf.CNF) ([]int, bool, error) {
	defer q.rec.timeQbf(time.Now())
	return q.inner.IsSatModel(prefix, matrix)
}

func (r *Recorder) timeQbf(start time.Time) {
	r.qbfCalls.Inc()
	r.qbfSeconds.Add(time.Since(start).Seconds())
}

// LogSummary writes the accumulated totals to the statistics log channel.
func (r *Recorder) LogSummary(log *logrus.Entry) {
	log.WithFields(logrus.Fields{
		"sat_calls":   counterTotal(r.satCalls),
		"sat_seconds": counterTotal(r.satSeconds),
		"qbf_calls":   counterTotal(r.qbfCalls),
		"qbf_seconds": counterTotal(r.qbfSeconds),
	}).Info("solver statistics")
}

func counterTotal(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
