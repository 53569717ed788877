package sac

import "golang.org/x/exp/rand"

// Seeds holds the seeds of the independent random streams used with a
// SAC agent. Each stream gets its own seed so that, for example, the
// replay buffer's sampling is not a function of the exploratory
// actions stored in it.
type Seeds struct {
	Buffer      uint64 // Replay buffer sampling
	Sampler     uint64 // Exploratory actions
	Actor       uint64 // Policy noise
	Environment uint64 // Starting states of the environment
}

// NewSeeds derives the seeds of all random streams from seed
func NewSeeds(seed uint64) Seeds {
	rng := rand.New(rand.NewSource(seed))
	return Seeds{
		Buffer:      rng.Uint64(),
		Sampler:     rng.Uint64(),
		Actor:       rng.Uint64(),
		Environment: rng.Uint64(),
	}
}
