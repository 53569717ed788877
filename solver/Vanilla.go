package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// VanillaConfig describes a configuration of stochastic gradient
// descent
type VanillaConfig struct {
	StepSize float64
	Batch    int
	Clip     float64 // <= 0 if no clipping
}

// NewVanilla returns a new stochastic gradient descent Solver
func NewVanilla(stepSize float64, batchSize int,
	clip float64) (*Solver, error) {
	if stepSize <= 0 {
		return nil, fmt.Errorf("newVanilla: step size must be > 0")
	}
	return newSolver(Vanilla, VanillaConfig{stepSize, batchSize, clip})
}

// Create returns a Gorgonia Vanilla Solver as described by the
// VanillaConfig
func (v VanillaConfig) Create() G.Solver {
	return G.NewVanillaSolver(commonOpts(v.StepSize, v.Batch, v.Clip)...)
}

// ValidType returns whether t is Vanilla
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}

// commonOpts returns the options shared by all Gorgonia solvers
func commonOpts(stepSize float64, batch int, clip float64) []G.SolverOpt {
	opts := []G.SolverOpt{
		G.WithLearnRate(stepSize),
		G.WithBatchSize(float64(batch)),
	}
	if clip > 0 {
		opts = append(opts, G.WithClip(clip))
	}
	return opts
}
