// Package environment outlines the interfaces and sturcts needed to implement
// concrete vectorized environments
package environment

import (
	"github.com/samuelfneumann/gosac/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when an episode ends. If the episode should end,
// End modifies the TimeStep so that its StepType is timestep.Last.
type Ender interface {
	End(t *timestep.TimeStep) bool
}

// Environment implements a vectorized simulated environment consisting
// of NumEnvs() independent sub-environments which are stepped in
// lockstep. Observations and actions are batched with one row per
// sub-environment.
//
// Sub-environments whose episode ends on a step are automatically
// reset. The next observation returned for such a sub-environment is
// the first observation of its new episode, and its done flag is 1.
type Environment interface {
	// NumEnvs returns the number of sub-environments
	NumEnvs() int

	// Reset resets all sub-environments and returns their first
	// observations
	Reset() (*mat.Dense, error)

	// Step steps each sub-environment with the corresponding row of
	// actions and returns the next observations, rewards, and done
	// flags (0 or 1)
	Step(actions *mat.Dense) (*mat.Dense, *mat.VecDense, *mat.VecDense,
		error)

	ObservationSpec() Spec
	ActionSpec() Spec
}
