// Package expreplay implements a fixed-capacity experience replay
// buffer of batched transitions collected from vectorized environments
package expreplay

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Batch is a batch of transitions sampled from a replay buffer. Row i
// of each component belongs to the same transition.
type Batch struct {
	Observation     *mat.Dense
	Action          *mat.Dense
	NextObservation *mat.Dense
	Reward          *mat.VecDense
	Done            *mat.VecDense
}

// Size returns the number of transitions in the Batch
func (b Batch) Size() int {
	return b.Reward.Len()
}

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a batched transition to the buffer, one row per
	// environment. When the buffer is full, the oldest batched
	// transition is overwritten.
	Add(obs, action, nextObs *mat.Dense, reward, done *mat.VecDense) error

	// Sample samples a batch of batchSize single-environment
	// transitions uniformly with replacement
	Sample(batchSize int) (Batch, error)

	// Len returns the number of batched transitions in the buffer
	Len() int

	// Capacity returns the maximum number of batched transitions in
	// the buffer
	Capacity() int

	// NumEnvs returns the number of rows in each batched transition
	NumEnvs() int

	// ObservationSize returns the number of observation features
	ObservationSize() int

	// ActionShape returns the shape of a single action
	ActionShape() []int
}

// Config implements a specific configuration of an ExperienceReplayer
type Config struct {
	Capacity int
	Seed     uint64
}

// Create creates and returns the ExperienceReplayer with the specified
// Config.
func (c Config) Create(numEnvs, featureSize int,
	actionShape []int) (ExperienceReplayer, error) {
	return New(NewUniformSelector(c.Seed), c.Capacity, numEnvs, featureSize,
		actionShape)
}

// New creates and returns a new ExperienceReplayer. The sampler
// determines how data is sampled from the replay buffer. The capacity
// is counted in batched transitions, each holding numEnvs rows. The
// featureSize and actionShape parameters define the shape of a single
// observation and action.
//
// Pixel observations should be flattened before adding to the buffer.
func New(sampler Selector, capacity, numEnvs, featureSize int,
	actionShape []int) (ExperienceReplayer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1")
	}
	if numEnvs < 1 {
		return nil, fmt.Errorf("new: numEnvs must be >= 1")
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: featureSize must be >= 1")
	}
	actionSize := 1
	for _, dim := range actionShape {
		actionSize *= dim
	}
	if len(actionShape) == 0 || actionSize < 1 {
		return nil, fmt.Errorf("new: invalid action shape %v", actionShape)
	}

	return newDefaultCache(sampler, capacity, numEnvs, featureSize,
		actionShape), nil
}
