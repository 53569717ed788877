// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"

	"github.com/samuelfneumann/gosac/experiment/tracker"
	"gonum.org/v1/gonum/mat"
)

// Experiment runs a Predictor on an environment until a step limit is
// reached. Experiments send the rewards and done flags of each step to
// their tracker.StepTrackers, which cache the data they track so that
// it can later be saved to disk with Save. New StepTrackers can be
// registered through the constructor or through Register.
type Experiment interface {
	// Run runs the experiment until its step limit is reached or ctx
	// is done
	Run(ctx context.Context) error

	// Register adds a new tracker.StepTracker to the (possibly already
	// running) experiment. Useful if you want to track data only after
	// a specified event.
	Register(t tracker.StepTracker)

	// Save saves the data of all StepTrackers which can be saved
	Save() error
}

// Predictor selects actions for a batch of observations, one row per
// sub-environment
type Predictor interface {
	Predict(obs *mat.Dense, deterministic bool, state []*mat.Dense,
		episodeStart *mat.VecDense) (*mat.Dense, []*mat.Dense, error)
}

// Saver is a tracker which can save its data to disk
type Saver interface {
	Save() error
}
