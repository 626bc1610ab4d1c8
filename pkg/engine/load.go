package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
)

// Load reads a winning region checkpointed by a previous run instead of
// computing one, so a different extractor can be applied without repeating
// the synthesis.
type Load struct {
	spec *aig.Spec
	log  *logrus.Entry
	path string
}

// NewLoad creates the checkpoint-loading back-end.
func NewLoad(spec *aig.Spec, log *logrus.Entry, path string) *Load {
	return &Load{spec: spec, log: log, path: path}
}

// ComputeWinningRegion implements Engine by loading the stored region.
func (l *Load) ComputeWinningRegion() (Result, error) {
	l.log.Debugf("loading winning region from %s", l.path)
	win, err := cnf.LoadFile(l.path, l.spec.Reg.MaxVar())
	if err != nil {
		return Result{}, err
	}
	negWin := win.Clone()
	negWin.Negate(l.spec.Reg)
	return Result{Realizable: true, Win: win, NegWin: negWin}, nil
}
