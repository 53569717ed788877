package environment

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformSampler samples exploratory actions uniformly from the bounds
// of a continuous action Spec. It is used during warmup, before the
// policy has been trained.
type UniformSampler struct {
	actionDims int
	rand       *distmv.Uniform
}

// NewUniformSampler returns a new UniformSampler over the bounds of
// actionSpec, which must be continuous and finite.
func NewUniformSampler(actionSpec Spec, seed uint64) (*UniformSampler,
	error) {
	if actionSpec.Cardinality != Continuous {
		return nil, fmt.Errorf("newUniformSampler: actions should be " +
			"continuous")
	}

	bounds := actionSpec.Intervals()
	for i, b := range bounds {
		if math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) || b.Max < b.Min {
			return nil, fmt.Errorf("newUniformSampler: dimension %v has "+
				"invalid bounds [%v, %v]", i, b.Min, b.Max)
		}
	}

	source := rand.NewSource(seed)
	return &UniformSampler{
		actionDims: len(bounds),
		rand:       distmv.NewUniform(bounds, source),
	}, nil
}

// Sample returns one uniformly sampled action per row for numEnvs
// sub-environments
func (u *UniformSampler) Sample(numEnvs int) *mat.Dense {
	actions := mat.NewDense(numEnvs, u.actionDims, nil)
	for i := 0; i < numEnvs; i++ {
		u.rand.Rand(actions.RawRowView(i))
	}
	return actions
}
