// Package synth wires a configuration into a concrete synthesis run: it
// loads the specification, selects a back-end and an extractor, injects the
// solver backends, and drives realizability-only or full synthesis.
package synth

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/engine"
	"github.com/safesynth/safesynth/pkg/extract"
	"github.com/safesynth/safesynth/pkg/qbf"
	"github.com/safesynth/safesynth/pkg/sat"
	"github.com/safesynth/safesynth/pkg/stats"
	"github.com/safesynth/safesynth/pkg/vars"
)

// ConfigError reports an unknown back-end, solver, or extractor name.
type ConfigError string

func (e ConfigError) Error() string { return string(e) }

func configErrorf(format string, args ...interface{}) ConfigError {
	return ConfigError(fmt.Sprintf(format, args...))
}

// Config selects the pieces of one run.
type Config struct {
	AigerIn  string
	AigerOut string
	// TmpDir holds the temp files of external solver queries; ToolDir is
	// the directory containing the external solver executables.
	TmpDir  string
	ToolDir string
	// WinDir holds checkpointed winning regions.
	WinDir string

	BackEnd   string // templ, ifm, load, par
	Mode      int    // template mode selector
	Extractor string // store, qbfcert
	QBF       string // cegar, depqbf, bloqqer
	SAT       string // gini, gini-min

	// TimeoutSec is passed to the bloqqer QBF solver on its command line;
	// zero passes 1000000 seconds. DepQBF, the QBFCert script and the
	// in-process solvers run without a bound.
	TimeoutSec        int
	RealizabilityOnly bool

	Logger  *logrus.Logger
	Metrics prometheus.Registerer
}

func (c Config) baseName() string {
	base := filepath.Base(c.AigerIn)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run performs one synthesis run and reports realizability. Unrealizability
// is a result, not an error.
func Run(cfg Config) (bool, error) {
	log := logrus.NewEntry(cfg.Logger)
	rec := stats.NewRecorder(cfg.Metrics)

	graph, err := aig.LoadFile(cfg.AigerIn)
	if err != nil {
		return false, err
	}

	build := func() (*aig.Spec, sat.Starter, error) {
		reg := vars.NewRegistry()
		spec, err := aig.Encode(graph, reg)
		if err != nil {
			return nil, nil, err
		}
		starter, err := satStarter(cfg)
		if err != nil {
			return nil, nil, err
		}
		return spec, rec.InstrumentSat(starter), nil
	}

	spec, starter, err := build()
	if err != nil {
		return false, err
	}

	var eng engine.Engine
	var race *engine.Race
	specs := map[string]*aig.Spec{}
	switch cfg.BackEnd {
	case "templ":
		eng, err = newTemplate(cfg, spec, log, starter, rec)
	case "ifm":
		eng = engine.NewIFM(spec, log, starter)
	case "load":
		eng = engine.NewLoad(spec, log, filepath.Join(cfg.WinDir, cfg.baseName()+".dimacs"))
	case "par":
		// Each raced engine gets its own registry and sessions; the
		// registry is not safe for concurrent use.
		race = engine.NewRace(log)
		specs["ifm"] = spec
		race.Add("ifm", engine.NewIFM(spec, log, starter))
		tSpec, tStarter, berr := build()
		if berr != nil {
			return false, berr
		}
		specs["templ"] = tSpec
		var tEng engine.Engine
		tEng, err = newTemplate(cfg, tSpec, log, tStarter, rec)
		race.Add("templ", tEng)
		eng = race
	default:
		err = configErrorf("unknown back-end %q (supported: templ, ifm, load, par)", cfg.BackEnd)
	}
	if err != nil {
		return false, err
	}

	res, err := eng.ComputeWinningRegion()
	if err != nil {
		return false, err
	}
	if race != nil {
		spec = specs[race.Winner()]
	}

	result := log.WithField("channel", "result")
	if !res.Realizable {
		result.Info("the specification is unrealizable")
		rec.LogSummary(log.WithField("channel", "stats"))
		return false, nil
	}
	result.Info("the specification is realizable")

	if cfg.RealizabilityOnly {
		rec.LogSummary(log.WithField("channel", "stats"))
		return true, nil
	}

	var ext engine.Extractor
	switch cfg.Extractor {
	case "store":
		ext = extract.NewStore(log, cfg.WinDir, cfg.baseName())
	case "qbfcert":
		cert, cerr := qbf.NewQBFCert(spec.Reg, cfg.TmpDir, cfg.baseName(), cfg.ToolDir)
		if cerr != nil {
			return true, cerr
		}
		ext = extract.NewQBFCert(log, cert, cfg.AigerOut)
	default:
		return true, configErrorf("unknown extractor %q (supported: store, qbfcert)", cfg.Extractor)
	}

	log.Info("starting to extract a circuit")
	if err := ext.Extract(res.Win, res.NegWin, spec); err != nil {
		return true, err
	}
	log.Info("synthesis done")
	rec.LogSummary(log.WithField("channel", "stats"))
	return true, nil
}

func satStarter(cfg Config) (sat.Starter, error) {
	switch cfg.SAT {
	case "", "gini":
		return sat.Gini(false), nil
	case "gini-min":
		return sat.Gini(true), nil
	default:
		return nil, configErrorf("unknown SAT solver %q (supported: gini, gini-min)", cfg.SAT)
	}
}

func qbfSolver(cfg Config, spec *aig.Spec, starter sat.Starter, rec *stats.Recorder) (qbf.Solver, error) {
	var solver qbf.Solver
	var err error
	switch cfg.QBF {
	case "", "cegar":
		solver = qbf.NewCegar(spec.Reg, starter)
	case "depqbf":
		solver, err = qbf.NewDepQBF(spec.Reg, cfg.TmpDir, cfg.baseName(), cfg.ToolDir)
	case "bloqqer":
		solver, err = qbf.NewBloqqer(spec.Reg, cfg.TmpDir, cfg.baseName(), cfg.ToolDir, cfg.TimeoutSec)
	default:
		err = configErrorf("unknown QBF solver %q (supported: cegar, depqbf, bloqqer)", cfg.QBF)
	}
	if err != nil {
		return nil, err
	}
	return rec.InstrumentQbf(solver), nil
}

func newTemplate(cfg Config, spec *aig.Spec, log *logrus.Entry, starter sat.Starter, rec *stats.Recorder) (engine.Engine, error) {
	if cfg.Mode < engine.TemplCNFQBF || cfg.Mode > engine.TemplANDCEGIS {
		return nil, configErrorf("unknown template mode %d", cfg.Mode)
	}
	var q qbf.Solver
	if cfg.Mode == engine.TemplCNFQBF || cfg.Mode == engine.TemplANDQBF {
		var err error
		q, err = qbfSolver(cfg, spec, starter, rec)
		if err != nil {
			return nil, err
		}
	}
	return engine.NewTemplate(spec, log, starter, q, cfg.Mode), nil
}
