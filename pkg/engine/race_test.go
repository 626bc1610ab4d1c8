package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safesynth/safesynth/pkg/cnf"
)

type stubEngine struct {
	delay  time.Duration
	result Result
	err    error
}

func (s stubEngine) ComputeWinningRegion() (Result, error) {
	time.Sleep(s.delay)
	return s.result, s.err
}

func TestRaceTakesFirstResult(t *testing.T) {
	fast := Result{Realizable: true, Win: cnf.New(), NegWin: cnf.New()}
	r := NewRace(testLog())
	r.Add("slow", stubEngine{delay: 200 * time.Millisecond})
	r.Add("fast", stubEngine{result: fast})

	res, err := r.ComputeWinningRegion()
	require.NoError(t, err)
	assert.True(t, res.Realizable)
	assert.Equal(t, "fast", r.Winner())
}

func TestRacePropagatesError(t *testing.T) {
	r := NewRace(testLog())
	r.Add("broken", stubEngine{err: assert.AnError})
	_, err := r.ComputeWinningRegion()
	assert.Error(t, err)
}
