package environment

import "github.com/samuelfneumann/gosac/timestep"

// StepLimit is an Ender which cuts episodes off after a fixed number
// of steps. A limit < 1 never ends an episode.
type StepLimit struct {
	limit int
}

// NewStepLimit returns an Ender ending episodes after limit steps
func NewStepLimit(limit int) StepLimit {
	return StepLimit{limit}
}

// Limit returns the maximum number of steps in an episode
func (s StepLimit) Limit() int {
	return s.limit
}

// End marks t as the Last step of its episode if the step limit has
// been reached and reports whether it did so
func (s StepLimit) End(t *timestep.TimeStep) bool {
	if s.limit < 1 || t.Number < s.limit {
		return false
	}
	t.StepType = timestep.Last
	return true
}
