package engine

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Race runs several engines concurrently and adopts the first outcome.
// Solver calls are not interruptible, so the slower engines keep running
// until they finish on their own; their results are discarded.
//
// Engines handed to Race must not share a registry or solver sessions with
// each other.
type Race struct {
	log     *logrus.Entry
	engines []Engine
	names   []string
	winner  string
}

// NewRace creates the parallel back-end.
func NewRace(log *logrus.Entry) *Race {
	return &Race{log: log}
}

// Add registers a named engine.
func (r *Race) Add(name string, e Engine) {
	r.names = append(r.names, name)
	r.engines = append(r.engines, e)
}

type raceOutcome struct {
	name   string
	result Result
	err    error
}

// ComputeWinningRegion implements Engine.
func (r *Race) ComputeWinningRegion() (Result, error) {
	results := make(chan raceOutcome, len(r.engines))
	var group errgroup.Group
	for i := range r.engines {
		name, eng := r.names[i], r.engines[i]
		group.Go(func() error {
			res, err := eng.ComputeWinningRegion()
			results <- raceOutcome{name: name, result: res, err: err}
			return err
		})
	}
	go func() {
		// Reap the stragglers so their failures are at least logged.
		if err := group.Wait(); err != nil {
			r.log.Debugf("parallel engine finished with error: %v", err)
		}
	}()

	first := <-results
	r.winner = first.name
	r.log.WithField("channel", "stats").Infof("engine %s finished first", first.name)
	return first.result, first.err
}

// Winner names the engine whose result was adopted. Valid after
// ComputeWinningRegion returns.
func (r *Race) Winner() string {
	return r.winner
}
