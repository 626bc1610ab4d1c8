package qbf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/safesynth/safesynth/pkg/aig"
	"github.com/safesynth/safesynth/pkg/cnf"
	"github.com/safesynth/safesynth/pkg/vars"
)

const (
	exitSat   = 10
	exitUnsat = 20
)

var uniqueCounter atomic.Int64

// uniqueTmpFile returns `<dir>/<prefix>_<base>_<pid>_<n><suffix>`, unique
// within this process.
func uniqueTmpFile(dir, prefix, base, suffix string) string {
	n := uniqueCounter.Add(1)
	name := fmt.Sprintf("%s_%s_%d_%d%s", prefix, base, os.Getpid(), n, suffix)
	return filepath.Join(dir, name)
}

// External drives a QDIMACS solver running as a child process. Queries are
// serialized into a uniquely named temp file, the solver is spawned, and its
// exit code and answer file are interpreted. Both files are removed on every
// exit path.
type External struct {
	reg    *vars.Registry
	tmpDir string
	base   string
	exe    string
	// args builds the command line; model selects the model-producing
	// invocation.
	args func(model bool, inFile string) []string
	// plainModel switches the answer parser to the preprocessor protocol
	// of `<var> <lit>` lines instead of `s cnf`/`V` lines.
	plainModel bool
}

// NewDepQBF returns a driver for the DepQBF solver found under
// toolDir/depqbf. No timeout is passed to DepQBF.
func NewDepQBF(reg *vars.Registry, tmpDir, base, toolDir string) (*External, error) {
	exe := filepath.Join(toolDir, "depqbf", "depqbf")
	if _, err := os.Stat(exe); err != nil {
		return nil, errors.Wrap(err, "depqbf executable not found")
	}
	return &External{
		reg:    reg,
		tmpDir: tmpDir,
		base:   base,
		exe:    exe,
		args: func(model bool, inFile string) []string {
			if model {
				return []string{"--qdo", inFile}
			}
			return []string{inFile}
		},
	}, nil
}

// NewBloqqer returns a driver that runs the Bloqqer preprocessor as a full
// solver, found under toolDir/bloqqer. timeoutSec is passed on the command
// line; zero passes 1000000 seconds.
func NewBloqqer(reg *vars.Registry, tmpDir, base, toolDir string, timeoutSec int) (*External, error) {
	exe := filepath.Join(toolDir, "bloqqer", "bloqqer")
	if _, err := os.Stat(exe); err != nil {
		return nil, errors.Wrap(err, "bloqqer executable not found")
	}
	if timeoutSec == 0 {
		timeoutSec = 1000000
	}
	return &External{
		reg:        reg,
		tmpDir:     tmpDir,
		base:       base,
		exe:        exe,
		plainModel: true,
		args: func(model bool, inFile string) []string {
			return []string{inFile, strconv.Itoa(timeoutSec)}
		},
	}, nil
}

// IsSat implements Solver.
func (e *External) IsSat(prefix Prefix, matrix *cnf.CNF) (bool, error) {
	inFile, outFile, err := e.dump(prefix, matrix)
	if err != nil {
		return false, err
	}
	defer cleanupFiles(inFile, outFile)
	code, err := e.run(false, inFile, outFile)
	if err != nil {
		return false, err
	}
	return e.classify(code)
}

// IsSatModel implements Solver. The model covers the outermost existential
// block(s); variables the solver reports as don't-care are omitted.
func (e *External) IsSatModel(prefix Prefix, matrix *cnf.CNF) ([]int, bool, error) {
	inFile, outFile, err := e.dump(prefix, matrix)
	if err != nil {
		return nil, false, err
	}
	defer cleanupFiles(inFile, outFile)
	code, err := e.run(true, inFile, outFile)
	if err != nil {
		return nil, false, err
	}
	sat, err := e.classify(code)
	if err != nil {
		return nil, false, err
	}
	if !sat {
		return nil, false, nil
	}

	f, err := os.Open(outFile)
	if err != nil {
		return nil, false, errors.Wrap(err, "could not read solver answer file")
	}
	defer f.Close()
	if e.plainModel {
		model, err := ParseAssignmentLines(f, outerExistentials(e.reg, prefix))
		return model, true, err
	}
	model, sat, err := ParseResponse(f)
	return model, sat, err
}

func (e *External) dump(prefix Prefix, matrix *cnf.CNF) (string, string, error) {
	if err := os.MkdirAll(e.tmpDir, 0o777); err != nil {
		return "", "", errors.Wrap(err, "could not create temp directory")
	}
	inFile := uniqueTmpFile(e.tmpDir, "qbf_query", e.base, ".qdimacs")
	outFile := uniqueTmpFile(e.tmpDir, "qbf_answer", e.base, ".out")
	f, err := os.Create(inFile)
	if err != nil {
		return "", "", errors.Wrap(err, "could not create query file")
	}
	if err := WriteQDimacs(f, e.reg, prefix, matrix); err != nil {
		f.Close()
		os.Remove(inFile)
		return "", "", errors.Wrap(err, "could not write query file")
	}
	if err := f.Close(); err != nil {
		os.Remove(inFile)
		return "", "", err
	}
	return inFile, outFile, nil
}

// run spawns the solver with its output redirected to outFile and returns
// the exit code.
func (e *External) run(model bool, inFile, outFile string) (int, error) {
	out, err := os.Create(outFile)
	if err != nil {
		return 0, errors.Wrap(err, "could not create answer file")
	}
	defer out.Close()
	cmd := exec.Command(e.exe, e.args(model, inFile)...)
	cmd.Stdout = out
	cmd.Stderr = out
	err = cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, &SolverError{Cmd: e.exe, Err: err}
}

func (e *External) classify(code int) (bool, error) {
	switch code {
	case exitSat:
		return true, nil
	case exitUnsat:
		return false, nil
	default:
		return false, &SolverError{Cmd: e.exe, ExitCode: code}
	}
}

func cleanupFiles(files ...string) {
	for _, f := range files {
		os.Remove(f)
	}
}

// outerExistentials returns the variables of the outermost existential
// block(s), i.e. everything before the first universal block.
func outerExistentials(reg *vars.Registry, prefix Prefix) []int {
	var out []int
	for _, b := range prefix.resolve(reg) {
		if b.Q != Exists {
			break
		}
		out = append(out, b.Vars...)
	}
	return out
}

// Certifier produces an implementation graph for the outermost existential
// variables of a satisfiable QBF.
type Certifier interface {
	Certify(prefix Prefix, matrix *cnf.CNF) (*aig.Graph, error)
}

// QBFCert drives an external certification tool chain: the query is dumped
// to QDIMACS, the certification script is run on it, and the resulting AIGER
// file is read back.
type QBFCert struct {
	reg    *vars.Registry
	tmpDir string
	base   string
	script string
}

// NewQBFCert locates the certification script under toolDir/qbfcert.
func NewQBFCert(reg *vars.Registry, tmpDir, base, toolDir string) (*QBFCert, error) {
	script := filepath.Join(toolDir, "qbfcert", "qbfcert_min.sh")
	if _, err := os.Stat(script); err != nil {
		return nil, errors.Wrap(err, "qbfcert script not found")
	}
	return &QBFCert{reg: reg, tmpDir: tmpDir, base: base, script: script}, nil
}

// Certify implements Certifier.
func (q *QBFCert) Certify(prefix Prefix, matrix *cnf.CNF) (*aig.Graph, error) {
	if err := os.MkdirAll(q.tmpDir, 0o777); err != nil {
		return nil, errors.Wrap(err, "could not create temp directory")
	}
	inFile := uniqueTmpFile(q.tmpDir, "qbf_query", q.base, ".qdimacs")
	aigFile := inFile + ".aiger"
	defer cleanupFiles(inFile, aigFile)

	f, err := os.Create(inFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not create query file")
	}
	if err := WriteQDimacs(f, q.reg, prefix, matrix); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "could not write query file")
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	cmd := exec.Command(q.script, inFile)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &SolverError{Cmd: q.script, ExitCode: exitErr.ExitCode()}
		}
		return nil, &SolverError{Cmd: q.script, Err: err}
	}
	g, err := aig.LoadFile(aigFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not read certificate")
	}
	return g, nil
}
