package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a batch of (s, a, s', r, done) tuples. Row i of each
// matrix and element i of each vector belong to the same
// sub-environment.
type Transition struct {
	Observation     *mat.Dense
	Action          *mat.Dense
	NextObservation *mat.Dense
	Reward          *mat.VecDense
	Done            *mat.VecDense
}

// NewTransition returns a new Transition after checking that all
// components share the same leading dimension, that observations and
// next observations have the same width, and that every done flag is
// either 0 or 1.
func NewTransition(obs, action, nextObs *mat.Dense, reward,
	done *mat.VecDense) (Transition, error) {
	if obs == nil || action == nil || nextObs == nil || reward == nil ||
		done == nil {
		return Transition{}, fmt.Errorf("newTransition: nil component")
	}

	rows, features := obs.Dims()
	if r, c := nextObs.Dims(); r != rows || c != features {
		return Transition{}, fmt.Errorf("newTransition: next observation "+
			"shape (%v, %v) does not match observation shape (%v, %v)",
			r, c, rows, features)
	}
	if r, _ := action.Dims(); r != rows {
		return Transition{}, fmt.Errorf("newTransition: action batch "+
			"size %v != observation batch size %v", r, rows)
	}
	if reward.Len() != rows {
		return Transition{}, fmt.Errorf("newTransition: reward batch "+
			"size %v != observation batch size %v", reward.Len(), rows)
	}
	if done.Len() != rows {
		return Transition{}, fmt.Errorf("newTransition: done batch "+
			"size %v != observation batch size %v", done.Len(), rows)
	}
	for i := 0; i < rows; i++ {
		if d := done.AtVec(i); d != 0 && d != 1 {
			return Transition{}, fmt.Errorf("newTransition: done flag "+
				"%v at row %v must be 0 or 1", d, i)
		}
	}

	return Transition{
		Observation:     obs,
		Action:          action,
		NextObservation: nextObs,
		Reward:          reward,
		Done:            done,
	}, nil
}

// BatchSize returns the number of rows in the Transition
func (t Transition) BatchSize() int {
	return t.Reward.Len()
}
