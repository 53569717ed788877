package sac

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/gosac/network"
	"github.com/samuelfneumann/gosac/solver"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"
)

// EntropyCoefficient controls the entropy regularization of SAC. An
// EntropyCoefficient is either fixed, in which case it is a constant,
// or learned, in which case its logarithm is adjusted by its own
// solver so that the policy entropy tracks a target entropy.
type EntropyCoefficient struct {
	auto bool

	// Fixed mode
	value float64

	// Learned mode
	logEntCoef    *network.Param
	solver        *solver.Solver
	targetEntropy float64
}

// NewFixedEntropyCoefficient returns a constant EntropyCoefficient
func NewFixedEntropyCoefficient(value float64) (*EntropyCoefficient, error) {
	if !(value > 0) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("newFixedEntropyCoefficient: coefficient "+
			"must be a positive number but got %v", value)
	}
	return &EntropyCoefficient{value: value}, nil
}

// NewAutoEntropyCoefficient returns a learned EntropyCoefficient
// starting at init. Its logarithm is adjusted with an Adam solver with
// step size lr.
func NewAutoEntropyCoefficient(init, targetEntropy,
	lr float64) (*EntropyCoefficient, error) {
	if !(init > 0) || math.IsInf(init, 0) {
		return nil, fmt.Errorf("newAutoEntropyCoefficient: initial "+
			"coefficient must be a positive number but got %v", init)
	}
	if math.IsNaN(targetEntropy) || math.IsInf(targetEntropy, 0) {
		return nil, fmt.Errorf("newAutoEntropyCoefficient: target "+
			"entropy must be finite but got %v", targetEntropy)
	}

	logEntCoef, err := network.NewParam("log_ent_coef",
		[]float64{math.Log(init)}, 1)
	if err != nil {
		return nil, fmt.Errorf("newAutoEntropyCoefficient: %v", err)
	}
	s, err := solver.NewDefaultAdam(lr, 1)
	if err != nil {
		return nil, fmt.Errorf("newAutoEntropyCoefficient: %v", err)
	}

	return &EntropyCoefficient{
		auto:          true,
		logEntCoef:    logEntCoef,
		solver:        s,
		targetEntropy: targetEntropy,
	}, nil
}

// Auto returns whether the coefficient is learned
func (e *EntropyCoefficient) Auto() bool {
	return e.auto
}

// Value returns the current value of the coefficient
func (e *EntropyCoefficient) Value() float64 {
	if !e.auto {
		return e.value
	}
	return math.Exp(e.logEntCoef.Data()[0])
}

// LogValue returns the logarithm of the learned coefficient. The
// second return value is false if the coefficient is fixed.
func (e *EntropyCoefficient) LogValue() (float64, bool) {
	if !e.auto {
		return 0, false
	}
	return e.logEntCoef.Data()[0], true
}

// setLogValue sets the logarithm of a learned coefficient
func (e *EntropyCoefficient) setLogValue(v float64) {
	e.logEntCoef.Data()[0] = v
}

// TargetEntropy returns the target entropy of a learned coefficient
func (e *EntropyCoefficient) TargetEntropy() float64 {
	return e.targetEntropy
}

// Solver returns the solver of a learned coefficient, or nil if the
// coefficient is fixed
func (e *EntropyCoefficient) Solver() *solver.Solver {
	return e.solver
}

// setSolver replaces the solver of a learned coefficient
func (e *EntropyCoefficient) setSolver(s *solver.Solver) {
	e.solver = s
}

// Step returns the coefficient to use for the current gradient step
// given the log probabilities of actions sampled from the current
// policy.
//
// If the coefficient is learned, Step also computes the entropy loss
//
//	-mean(log α * (logProb + target entropy))
//
// with logProb treated as a constant, and takes one solver step on
// log α. The returned coefficient is the value before this solver step.
// For a fixed coefficient the returned loss is 0.
func (e *EntropyCoefficient) Step(logProb *mat.VecDense) (coef, loss float64,
	err error) {
	if !e.auto {
		return e.value, 0, nil
	}

	logAlpha := e.logEntCoef.Data()[0]
	coef = math.Exp(logAlpha)

	// Mean of logProb + target entropy
	m := stat.Mean(logProb.RawVector().Data, nil) + e.targetEntropy
	loss = -logAlpha * m

	e.logEntCoef.ZeroGrad()
	e.logEntCoef.GradData()[0] = -m
	if err := e.solver.Step([]G.ValueGrad{e.logEntCoef}); err != nil {
		return 0, 0, fmt.Errorf("step: could not update entropy "+
			"coefficient: %v", err)
	}

	return coef, loss, nil
}
