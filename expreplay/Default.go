package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/gosac/timestep"
	"gonum.org/v1/gonum/mat"
)

// defaultCache implements a concrete ExperienceReplayer as a ring of
// batched transitions. Each entry of the ring stores one row per
// environment, and once the ring is full the oldest entry is
// overwritten.
//
// All data is kept in flat caches of float64 so that adding and
// sampling only copy rows.
type defaultCache struct {
	stateCache     []float64
	actionCache    []float64
	rewardCache    []float64
	doneCache      []float64
	nextStateCache []float64

	currentInUsePos int
	isFull          bool

	// Outlines how data is sampled
	sampler Selector

	capacity    int
	numEnvs     int
	featureSize int
	actionSize  int
	actionShape []int
}

// newDefaultCache returns a new defaultCache
func newDefaultCache(sampler Selector, capacity, numEnvs, featureSize int,
	actionShape []int) *defaultCache {
	actionSize := 1
	for _, dim := range actionShape {
		actionSize *= dim
	}
	rows := capacity * numEnvs

	return &defaultCache{
		stateCache:     make([]float64, rows*featureSize),
		actionCache:    make([]float64, rows*actionSize),
		rewardCache:    make([]float64, rows),
		doneCache:      make([]float64, rows),
		nextStateCache: make([]float64, rows*featureSize),

		currentInUsePos: 0,
		isFull:          false,

		sampler: sampler,

		capacity:    capacity,
		numEnvs:     numEnvs,
		featureSize: featureSize,
		actionSize:  actionSize,
		actionShape: append([]int(nil), actionShape...),
	}
}

// String returns the string representation of the defaultCache
func (d *defaultCache) String() string {
	return fmt.Sprintf("defaultCache{len: %v, capacity: %v, envs: %v, "+
		"features: %v, action shape: %v}", d.Len(), d.capacity, d.numEnvs,
		d.featureSize, d.actionShape)
}

// Len returns the current number of batched transitions in the
// defaultCache
func (d *defaultCache) Len() int {
	if d.isFull {
		return d.capacity
	}
	return d.currentInUsePos
}

// Capacity returns the maximum number of batched transitions that are
// allowed in the defaultCache
func (d *defaultCache) Capacity() int {
	return d.capacity
}

// NumEnvs returns the number of environments per batched transition
func (d *defaultCache) NumEnvs() int {
	return d.numEnvs
}

// ObservationSize returns the number of observation features
func (d *defaultCache) ObservationSize() int {
	return d.featureSize
}

// ActionShape returns the shape of a single action
func (d *defaultCache) ActionShape() []int {
	return append([]int(nil), d.actionShape...)
}

// Add adds a batched transition to the defaultCache
func (d *defaultCache) Add(obs, action, nextObs *mat.Dense, reward,
	done *mat.VecDense) error {
	t, err := timestep.NewTransition(obs, action, nextObs, reward, done)
	if err != nil {
		return &ExpReplayError{
			Op:  "add",
			Err: fmt.Errorf("%w: %v", errInvalidShape, err),
		}
	}

	if r, c := t.Observation.Dims(); r != d.numEnvs || c != d.featureSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("%w: observation shape (%v, %v), expected "+
				"(%v, %v)", errInvalidShape, r, c, d.numEnvs, d.featureSize),
		}
	}
	if _, c := t.Action.Dims(); c != d.actionSize {
		return &ExpReplayError{
			Op: "add",
			Err: fmt.Errorf("%w: action size %v, expected %v",
				errInvalidShape, c, d.actionSize),
		}
	}

	base := d.currentInUsePos * d.numEnvs
	for env := 0; env < d.numEnvs; env++ {
		row := base + env

		stateInd := row * d.featureSize
		mat.Row(d.stateCache[stateInd:stateInd+d.featureSize], env,
			t.Observation)
		mat.Row(d.nextStateCache[stateInd:stateInd+d.featureSize], env,
			t.NextObservation)

		actionInd := row * d.actionSize
		mat.Row(d.actionCache[actionInd:actionInd+d.actionSize], env,
			t.Action)

		d.rewardCache[row] = t.Reward.AtVec(env)
		d.doneCache[row] = t.Done.AtVec(env)
	}

	d.currentInUsePos++
	if d.currentInUsePos == d.capacity {
		d.isFull = true
		d.currentInUsePos = 0
	}
	return nil
}

// Sample samples and returns a batch of transitions from the replay
// buffer
func (d *defaultCache) Sample(batchSize int) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errInvalidBatchSize}
	}
	if d.Len() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}

	entries, envs := d.sampler.choose(batchSize, d.Len(), d.numEnvs)

	stateBatch := make([]float64, batchSize*d.featureSize)
	nextStateBatch := make([]float64, batchSize*d.featureSize)
	actionBatch := make([]float64, batchSize*d.actionSize)
	rewardBatch := make([]float64, batchSize)
	doneBatch := make([]float64, batchSize)

	for i := range entries {
		row := entries[i]*d.numEnvs + envs[i]

		batchStartInd := i * d.featureSize
		expStartInd := row * d.featureSize
		copy(stateBatch[batchStartInd:batchStartInd+d.featureSize],
			d.stateCache[expStartInd:expStartInd+d.featureSize])
		copy(nextStateBatch[batchStartInd:batchStartInd+d.featureSize],
			d.nextStateCache[expStartInd:expStartInd+d.featureSize])

		batchStartInd = i * d.actionSize
		expStartInd = row * d.actionSize
		copy(actionBatch[batchStartInd:batchStartInd+d.actionSize],
			d.actionCache[expStartInd:expStartInd+d.actionSize])

		rewardBatch[i] = d.rewardCache[row]
		doneBatch[i] = d.doneCache[row]
	}

	return Batch{
		Observation:     mat.NewDense(batchSize, d.featureSize, stateBatch),
		Action:          mat.NewDense(batchSize, d.actionSize, actionBatch),
		NextObservation: mat.NewDense(batchSize, d.featureSize, nextStateBatch),
		Reward:          mat.NewVecDense(batchSize, rewardBatch),
		Done:            mat.NewVecDense(batchSize, doneBatch),
	}, nil
}
