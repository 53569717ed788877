package experiment

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/experiment/tracker"
	"gonum.org/v1/gonum/mat"
)

// Evaluation is an Experiment that runs a fixed Predictor on an
// environment without learning. Sub-environments are reset
// automatically when their episodes end, so an Evaluation runs until
// its step limit only.
type Evaluation struct {
	env           environment.Environment
	predictor     Predictor
	deterministic bool
	maxSteps      int
	currentSteps  int
	trackers      []tracker.StepTracker
}

// NewEvaluation creates and returns a new evaluation of a Predictor on
// a given environment. The steps parameter determines how many
// environment steps, summed over sub-environments, the experiment is
// run for. If deterministic is true, the mode of the policy is used.
// The t parameter is a slice of tracker.StepTrackers which determine
// what data is tracked.
func NewEvaluation(e environment.Environment, p Predictor, steps int,
	deterministic bool, t ...tracker.StepTracker) *Evaluation {
	return &Evaluation{
		env:           e,
		predictor:     p,
		deterministic: deterministic,
		maxSteps:      steps,
		trackers:      t,
	}
}

// Register registers a tracker.StepTracker with an Evaluation so that
// data generated during the experiment can be tracked and saved
func (o *Evaluation) Register(t tracker.StepTracker) {
	o.trackers = append(o.trackers, t)
}

// Steps returns the number of environment steps taken so far
func (o *Evaluation) Steps() int {
	return o.currentSteps
}

// Run runs the entire experiment for all steps
func (o *Evaluation) Run(ctx context.Context) error {
	obs, err := o.env.Reset()
	if err != nil {
		return fmt.Errorf("run: could not reset environment: %w", err)
	}

	numEnvs := o.env.NumEnvs()
	episodeStart := mat.NewVecDense(numEnvs, nil)
	for i := 0; i < numEnvs; i++ {
		episodeStart.SetVec(i, 1)
	}

	var state []*mat.Dense
	for o.currentSteps < o.maxSteps {
		if err := ctx.Err(); err != nil {
			return err
		}

		var action *mat.Dense
		action, state, err = o.predictor.Predict(obs, o.deterministic, state,
			episodeStart)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		var reward, done *mat.VecDense
		obs, reward, done, err = o.env.Step(action)
		if err != nil {
			return fmt.Errorf("run: could not step environment: %w", err)
		}
		o.currentSteps += numEnvs

		o.track(reward, done)
		episodeStart = done
	}
	return nil
}

// Save saves all the data cached by the trackers to disk
func (o *Evaluation) Save() error {
	for _, t := range o.trackers {
		if s, ok := t.(Saver); ok {
			if err := s.Save(); err != nil {
				return fmt.Errorf("save: %w", err)
			}
		}
	}
	return nil
}

// track sends the data of the current step to each tracker
func (o *Evaluation) track(reward, done *mat.VecDense) {
	for _, t := range o.trackers {
		t.TrackStep(reward, done)
	}
}
