// Package extract implements the consumers of a computed winning region:
// the checkpoint store and the certificate-based circuit extractor.
package extract

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
)

// Store checkpoints the winning region as a DIMACS file under
// <dir>/<base>.dimacs so that a later run can pick it up with the load
// back-end.
type Store struct {
	log  *logrus.Entry
	dir  string
	base string
}

// NewStore creates the checkpoint extractor.
func NewStore(log *logrus.Entry, dir, base string) *Store {
	return &Store{log: log, dir: dir, base: base}
}

// Path returns the file the region is written to.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.base+".dimacs")
}

// Extract implements engine.Extractor.
func (s *Store) Extract(win, negWin *cnf.CNF, spec *aig.Spec) error {
	if err := os.MkdirAll(s.dir, 0o777); err != nil {
		return errors.Wrapf(err, "could not create directory %q for storing winning regions", s.dir)
	}
	path := s.Path()
	s.log.Debugf("storing winning region in %s", path)
	return win.SaveFile(path)
}
