package extract

import (
	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/qbf"
	"github.com/safesynth/safesynth/pkg/vars"
)

// QBFCert extracts a circuit for the control signals by certifying the
// strategy QBF: Herbrand functions for the controls are computed for
//
//	∃ x,u. ∀ c. ∃ x'. W(x) ∧ T(x,u,c,x') ∧ ¬W(x'),
//
// which is unsatisfiable exactly when the region is winning, and the
// certifier's refutation yields the control functions.
type QBFCert struct {
	log  *logrus.Entry
	cert qbf.Certifier
	out  string
}

// NewQBFCert creates the certificate-based extractor writing the resulting
// implementation to out.
func NewQBFCert(log *logrus.Entry, cert qbf.Certifier, out string) *QBFCert {
	return &QBFCert{log: log, cert: cert, out: out}
}

// Extract implements engine.Extractor.
func (q *QBFCert) Extract(win, negWin *cnf.CNF, spec *aig.Spec) error {
	reg := spec.Reg
	strategy := negWin.Clone()
	strategy.SwapPresentNext(reg)
	strategy.AddCNF(spec.Trans)
	strategy.AddCNF(win)

	prefix := qbf.Prefix{
		qbf.E(vars.Input),
		qbf.E(vars.PresState),
		qbf.A(vars.Ctrl),
		qbf.E(vars.NextState),
		qbf.E(vars.Tmp),
	}

	graph, err := q.cert.Certify(prefix, strategy)
	if err != nil {
		return err
	}

	// The certificate lists every existential variable as an input, in
	// prefix order: inputs, present states, next states, auxiliaries.
	// Only the inputs and the non-error states remain; the error bit is
	// substituted by constant false.
	nrIn := len(reg.OfKind(vars.Input)) + len(reg.OfKind(vars.PresState)) - 1
	errIdx := len(reg.OfKind(vars.Input))
	if errIdx < len(graph.Inputs) {
		errLit := graph.Inputs[errIdx].Lit
		negErrLit := errLit + 1
		graph.Inputs = append(graph.Inputs[:errIdx], graph.Inputs[errIdx+1:]...)
		for i := range graph.Ands {
			if graph.Ands[i].RHS0 == errLit {
				graph.Ands[i].RHS0 = 0
			}
			if graph.Ands[i].RHS1 == errLit {
				graph.Ands[i].RHS1 = 0
			}
			if graph.Ands[i].RHS0 == negErrLit {
				graph.Ands[i].RHS0 = 1
			}
			if graph.Ands[i].RHS1 == negErrLit {
				graph.Ands[i].RHS1 = 1
			}
		}
	}
	if nrIn < len(graph.Inputs) {
		graph.Inputs = graph.Inputs[:nrIn]
	}

	// Controls the certifier did not assign are irrelevant; they are
	// emitted as constant false.
	nrCtrl := len(reg.OfKind(vars.Ctrl))
	if len(graph.Outputs) < nrCtrl {
		q.log.Debug("certifier did not assign all control signals, padding with 0")
	}
	for len(graph.Outputs) < nrCtrl {
		graph.Outputs = append(graph.Outputs, aig.Symbol{Lit: 0})
	}

	q.log.WithField("channel", "stats").Infof("implementation has %d and gates", len(graph.Ands))
	return graph.SaveFile(q.out)
}
