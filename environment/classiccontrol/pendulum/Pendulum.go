// Package pendulum implements a vectorized pendulum classic control
// environment with continuous actions
package pendulum

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/timestep"
	"github.com/samuelfneumann/gosac/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	MaxContinuousAction float64 = TorqueBound
	MinContinuousAction float64 = -MaxContinuousAction

	dt              float64 = 0.05
	Gravity         float64 = 9.8
	Mass            float64 = 1.0
	Length          float64 = 1.0
	ActionDims      int     = 1
	ObservationDims int     = 2
)

// Pendulum implements a vectorized version of the classic control
// environment Pendulum. In this environment, a pendulum is attached to
// a fixed base. An agent can swing the pendulum back and forth, but the
// swinging force/torque is underpowered. In order to be able to swing
// the pendulum straight up, it must first be rocked back and forth,
// using the momentum to gradually climb higher until the pendulum can
// point straight up or rotate fully around its fixed base.
//
// State features consist of the angle of the pendulum from the positive
// y-axis and the angular velocity of the pendulum. Both state features
// are bounded by the AngleBound and SpeedBound constants in this
// package. The sign of the angular velocity or speed indicates
// direction, with negative sign indicating counter clockwise rotation
// and positive sign indicating clockwise direction. The angular
// velocity is clipped betwee [-SpeedBound, SpeedBound]. Angles are
// normalized to stay within [-AngleBound, AngleBound] = [-π, π].
//
// Actions are continuous and 1-dimensional. Actions determine the
// torque to apply to the pendulum at its fixed base. Actions are
// bounded by [-2, 2] = [MinContinuousAction, MaxContinuousAction].
// Actions outside of this region are clipped to stay within these
// bounds.
//
// Pendulum runs numEnvs independent pendulums in lockstep. A pendulum
// whose episode ends is reset immediately, so that the observation
// returned for it is the first observation of its next episode.
//
// The pendulum has no terminal states. Episodes only end when the
// Task's Ender cuts them off, and this cut off is reported as done = 1
// by Step. A learner which bootstraps with (1 - done) therefore treats
// the end of each episode as a true termination rather than as a
// truncation.
//
// Pendulum implements the environment.Environment interface
type Pendulum struct {
	Task
	starter environment.Starter

	numEnvs      int
	states       *mat.Dense
	steps        []timestep.TimeStep
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	torqueBounds r1.Interval
}

// New creates and returns a new vectorized Pendulum with numEnvs
// sub-environments. Starting states are drawn from s.
func New(numEnvs int, t Task, s environment.Starter) (*Pendulum, error) {
	if numEnvs < 1 {
		return nil, fmt.Errorf("new: numEnvs must be >= 1")
	}

	return &Pendulum{
		Task:         t,
		starter:      s,
		numEnvs:      numEnvs,
		states:       mat.NewDense(numEnvs, ObservationDims, nil),
		steps:        make([]timestep.TimeStep, numEnvs),
		angleBounds:  r1.Interval{Min: -AngleBound, Max: AngleBound},
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		torqueBounds: r1.Interval{Min: -TorqueBound, Max: TorqueBound},
	}, nil
}

// NumEnvs returns the number of sub-environments
func (p *Pendulum) NumEnvs() int {
	return p.numEnvs
}

// Reset resets all sub-environments and returns their starting
// observations
func (p *Pendulum) Reset() (*mat.Dense, error) {
	for i := 0; i < p.numEnvs; i++ {
		if err := p.resetEnv(i); err != nil {
			return nil, fmt.Errorf("reset: %v", err)
		}
	}
	return mat.DenseCopyOf(p.states), nil
}

// resetEnv resets sub-environment i
func (p *Pendulum) resetEnv(i int) error {
	state := p.starter.Start()
	if err := validateState(state, p.angleBounds, p.speedBounds); err != nil {
		return err
	}
	p.states.SetRow(i, state.RawVector().Data)
	p.steps[i] = timestep.New(timestep.First, 0, 0)
	return nil
}

// Step takes one environmental step in each sub-environment given a
// batch of actions, one row per sub-environment.
func (p *Pendulum) Step(actions *mat.Dense) (*mat.Dense, *mat.VecDense,
	*mat.VecDense, error) {
	if r, c := actions.Dims(); r != p.numEnvs || c != ActionDims {
		return nil, nil, nil, fmt.Errorf("step: actions have shape (%v, %v), "+
			"expected (%v, %v)", r, c, p.numEnvs, ActionDims)
	}

	rewards := mat.NewVecDense(p.numEnvs, nil)
	dones := mat.NewVecDense(p.numEnvs, nil)
	for i := 0; i < p.numEnvs; i++ {
		// Clip action to ensure that it is in the legal range of
		// continuous actions
		torque := floatutils.ClipInterval(actions.At(i, 0), p.torqueBounds)

		state := p.states.RowView(i)
		next := p.nextState(state, torque)

		reward := p.GetReward(state, torque, next)
		step := p.steps[i].Next(reward)
		p.End(&step)

		rewards.SetVec(i, reward)
		p.states.SetRow(i, next.RawVector().Data)
		p.steps[i] = step

		if step.Last() {
			dones.SetVec(i, 1)
			if err := p.resetEnv(i); err != nil {
				return nil, nil, nil, fmt.Errorf("step: %v", err)
			}
		}
	}

	return mat.DenseCopyOf(p.states), rewards, dones, nil
}

// nextState computes the next state of the environment given a state
// and an amount of torque to apply to the fixed base of the pendulum.
func (p *Pendulum) nextState(obs mat.Vector, torque float64) *mat.VecDense {
	th, thdot := obs.AtVec(0), obs.AtVec(1)

	newthdot := thdot + (-3*Gravity/(2*Length)*math.Sin(th+math.Pi)+
		3.0/(Mass*math.Pow(Length, 2))*torque)*dt

	newth := th + (newthdot * dt)

	// Clip the angular velocity
	newthdot = floatutils.ClipInterval(newthdot, p.speedBounds)

	// Normalize the angle
	newth = normalizeAngle(newth, p.angleBounds)

	return mat.NewVecDense(2, []float64{newth, newthdot})
}

// ObservationSpec returns the observation specification of the
// environment
func (p *Pendulum) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	minObs := []float64{p.angleBounds.Min, p.speedBounds.Min}
	lowerBound := mat.NewVecDense(ObservationDims, minObs)

	maxObs := []float64{p.angleBounds.Max, p.speedBounds.Max}
	upperBound := mat.NewVecDense(ObservationDims, maxObs)

	return environment.NewSpec(shape, environment.Observation, lowerBound,
		upperBound, environment.Continuous)
}

// ActionSpec returns the action specification of the environment
func (p *Pendulum) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)

	minAction, maxAction := p.torqueBounds.Min, p.torqueBounds.Max
	lowerBound := mat.NewVecDense(ActionDims, []float64{minAction})
	upperBound := mat.NewVecDense(ActionDims, []float64{maxAction})

	return environment.NewSpec(shape, environment.Action, lowerBound,
		upperBound, environment.Continuous)
}

// String converts the environment to a string representation
func (p *Pendulum) String() string {
	return fmt.Sprintf("Pendulum  |  envs: %v  |  states: %v", p.numEnvs,
		mat.Formatted(p.states, mat.Squeeze()))
}

// normalizeAngle normalizes the pendulum angle to the appropriate limits
func normalizeAngle(th float64, angleBounds r1.Interval) float64 {
	width := angleBounds.Max - angleBounds.Min
	th = math.Mod(th-angleBounds.Min, width)
	if th < 0 {
		th += width
	}
	return th + angleBounds.Min
}

// validateState validates the state to ensure that the angle and angular
// velocity are within the environmental limits
func validateState(obs mat.Vector, angleBounds, speedBounds r1.Interval) error {
	if obs.Len() != ObservationDims {
		return fmt.Errorf("starting state has %v features, expected %v",
			obs.Len(), ObservationDims)
	}
	if obs.AtVec(0) > angleBounds.Max || obs.AtVec(0) < angleBounds.Min {
		return fmt.Errorf("theta %v is not within bounds %v", obs.AtVec(0),
			angleBounds)
	}
	if obs.AtVec(1) > speedBounds.Max || obs.AtVec(1) < speedBounds.Min {
		return fmt.Errorf("theta dot %v is not within bounds %v",
			obs.AtVec(1), speedBounds)
	}
	return nil
}
