package expreplay

import (
	"golang.org/x/exp/rand"
)

// Selector implements functionality for choosing how data should be
// sampled from an experience replay buffer
type Selector interface {
	// choose selects n (entry, environment) index pairs to sample from
	// a buffer holding entries batched transitions of numEnvs rows
	// each
	choose(n, entries, numEnvs int) (entryIndices, envIndices []int)
}

// uniformSelector is a Selector which selects data from an experience
// replay buffer uniformly randomly with replacement
type uniformSelector struct {
	rng *rand.Rand
}

// NewUniformSelector returns a new Selector which selects data uniformly
// randomly from an experience replay buffer
func NewUniformSelector(seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{rng: rng}
}

// choose selects a number of indices at which to draw data from the
// buffer
func (u *uniformSelector) choose(n, entries, numEnvs int) ([]int, []int) {
	entryIndices := make([]int, n)
	envIndices := make([]int, n)

	for i := 0; i < n; i++ {
		entryIndices[i] = u.rng.Intn(entries)
		envIndices[i] = u.rng.Intn(numEnvs)
	}

	return entryIndices, envIndices
}
