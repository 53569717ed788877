// Package timestep implements timesteps of the agent-environment
// interaction and the batched transitions stored by a replay buffer
package timestep

import (
	"fmt"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep tracks the position of a single sub-environment of a
// vectorized environment within its current episode.
type TimeStep struct {
	StepType
	Reward float64
	Number int
}

// New returns a new TimeStep
func New(t StepType, r float64, n int) TimeStep {
	return TimeStep{t, r, n}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}

// Next returns the TimeStep following t with reward r. If t is the
// last step of an episode, the returned step is the first step of the
// next episode.
func (t TimeStep) Next(r float64) TimeStep {
	if t.Last() {
		return New(First, 0, 0)
	}
	return New(Mid, r, t.Number+1)
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Number)
}
