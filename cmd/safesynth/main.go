package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/safesynth/safesynth/pkg/synth"
)

// toolPathEnv names the directory containing the external solver
// executables.
const toolPathEnv = "SAFESYNTH_TP"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logMask string
		cfg     = synth.Config{
			Logger:  logrus.New(),
			Metrics: prometheus.NewRegistry(),
		}
	)

	cmd := &cobra.Command{
		Use:   "safesynth",
		Short: "Synthesize safety controllers from AIGER specifications",
		Long: `safesynth decides realizability of AIGER safety specifications with
controllable inputs and synthesizes an implementation of the controllable
inputs when one exists.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogger(cfg.Logger, logMask)
			if cfg.ToolDir == "" {
				cfg.ToolDir = os.Getenv(toolPathEnv)
			}

			realizable, err := synth.Run(cfg)
			if err != nil {
				return err
			}
			// Realizability is a result, not an exit code: the
			// process exits 0 either way.
			if realizable {
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "REALIZABLE")
			} else {
				color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), "UNREALIZABLE")
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.AigerIn, "in", "i", "", "input AIGER specification (required)")
	flags.StringVarP(&cfg.AigerOut, "out", "o", "impl.aag", "output AIGER implementation")
	flags.StringVar(&cfg.TmpDir, "tmp-dir", "./tmp", "directory for temporary solver files")
	flags.StringVar(&cfg.WinDir, "win-dir", "win", "directory for checkpointed winning regions")
	flags.StringVar(&cfg.ToolDir, "tool-dir", "", "directory with external solver executables (default $"+toolPathEnv+")")
	flags.StringVarP(&cfg.BackEnd, "backend", "b", "ifm", "back-end: templ, ifm, load, par")
	flags.IntVarP(&cfg.Mode, "mode", "m", 0, "template back-end mode (0=CNF+QBF, 1=CNF+CEGIS, 2=AND+QBF, 3=AND+CEGIS)")
	flags.StringVarP(&cfg.Extractor, "extractor", "e", "store", "extractor: store, qbfcert")
	flags.StringVar(&cfg.QBF, "qbf-solver", "cegar", "QBF solver: cegar, depqbf, bloqqer")
	flags.StringVar(&cfg.SAT, "sat-solver", "gini", "SAT solver: gini, gini-min")
	flags.IntVar(&cfg.TimeoutSec, "timeout", 0, "timeout in seconds passed to the bloqqer QBF solver (0 = 1000000)")
	flags.BoolVarP(&cfg.RealizabilityOnly, "realizability-only", "r", false, "stop after deciding realizability")
	flags.StringVarP(&logMask, "log", "l", "ERW", "log categories: any of E, R, W, I, L, D")
	cobra.CheckErr(cmd.MarkFlagRequired("in"))

	return cmd
}

// configureLogger maps the category mask onto a logrus level: the most
// verbose selected category wins. R (results) and L (statistics) arrive as
// info-level entries on their own channel fields and are enabled together
// with I.
func configureLogger(log *logrus.Logger, mask string) {
	mask = strings.ToUpper(mask)
	level := logrus.ErrorLevel
	raise := func(l logrus.Level) {
		if l > level {
			level = l
		}
	}
	for _, c := range mask {
		switch c {
		case 'E':
			raise(logrus.ErrorLevel)
		case 'W':
			raise(logrus.WarnLevel)
		case 'R', 'I', 'L':
			raise(logrus.InfoLevel)
		case 'D':
			raise(logrus.DebugLevel)
		}
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
}
