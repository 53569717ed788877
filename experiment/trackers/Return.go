package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/gosac/experiment/tracker"
	"gonum.org/v1/gonum/mat"
)

// Return tracks and saves the episodic returns of a vectorized
// environment. When the environment is stepped, this Tracker will
// accumulate the reward of each sub-environment and store the return
// of each episode as soon as it ends.
//
// Note: An episode must finish for this Tracker to store its return.
// If the last episode of a sub-environment does not finish, that
// episode's return is never stored.
type Return struct {
	currentReturns []float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker for numEnvs
// sub-environments. The returns are saved to filename when Save is
// called.
func NewReturn(numEnvs int, filename string) *Return {
	return &Return{
		currentReturns: make([]float64, numEnvs),
		filename:       filename,
	}
}

var _ tracker.StepTracker = &Return{}

// TrackStep tracks the rewards seen on a step of each sub-environment.
// By calling this method on every step, the Tracker will store the
// cumulative reward of each episode as the episodic return. When an
// episode ends, its return is stored and accumulation starts over for
// the next episode of that sub-environment.
//
// TrackStep panics if the number of sub-environments does not match.
func (r *Return) TrackStep(rewards, dones *mat.VecDense) {
	if rewards.Len() != len(r.currentReturns) || dones.Len() != rewards.Len() {
		panic(fmt.Sprintf("trackStep: expected %v sub-environments but "+
			"got %v rewards and %v dones", len(r.currentReturns),
			rewards.Len(), dones.Len()))
	}

	for i := range r.currentReturns {
		r.currentReturns[i] += rewards.AtVec(i)
		if dones.AtVec(i) != 0 {
			r.episodeReturns = append(r.episodeReturns, r.currentReturns[i])
			r.currentReturns[i] = 0
		}
	}
}

// Data returns the returns of all finished episodes in the order in
// which the episodes finished
func (r *Return) Data() []float64 {
	return append([]float64(nil), r.episodeReturns...)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() error {
	return save(r.filename, r.episodeReturns)
}

// save gob encodes data to a new file filename
func save(filename string, data interface{}) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %w", err)
	}
	defer file.Close()

	if err = gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("save: could not encode data: %w", err)
	}
	return nil
}

// Load loads data saved by a Tracker into data, which should be a
// pointer to a slice of the saved type
func Load(filename string, data interface{}) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("load: could not open data file: %w", err)
	}
	defer file.Close()

	if err = gob.NewDecoder(file).Decode(data); err != nil {
		return fmt.Errorf("load: could not decode data: %w", err)
	}
	return nil
}
