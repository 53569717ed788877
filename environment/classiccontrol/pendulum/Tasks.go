package pendulum

import (
	"math"

	"github.com/samuelfneumann/gosac/environment"
	"gonum.org/v1/gonum/mat"
)

// Task determines the rewards and episode ends of a Pendulum
type Task interface {
	environment.Ender
	GetReward(state mat.Vector, torque float64, nextState mat.Vector) float64
	Min() float64
	Max() float64
}

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. Rewards are the cosine of the
// pendulum angle measured from the positive y-axis. The goal state
// is the pendulum sticking straight up, at which point the agent gets
// a reward of 1.0 on each timestep
type SwingUp struct {
	environment.Ender
}

// NewSwingUp creates and returns a new SwingUp task with episodes
// cut off after maxSteps steps
func NewSwingUp(maxSteps int) *SwingUp {
	ender := environment.NewStepLimit(maxSteps)
	return &SwingUp{ender}
}

// GetReward gets the reward for transitioning into nextState
func (s *SwingUp) GetReward(_ mat.Vector, _ float64,
	nextState mat.Vector) float64 {
	th := nextState.AtVec(0)
	return math.Cos(th)
}

// Min returns the minimum possible reward
func (s *SwingUp) Min() float64 {
	return -1.0
}

// Max returns the maximum possible reward
func (s *SwingUp) Max() float64 {
	return 1.0
}
