// Package agent defines the contracts between an off-policy
// actor-critic trainer and its collaborators: the actor, the critic,
// the replay buffer, and the exploratory action sampler.
package agent

import (
	"github.com/samuelfneumann/gosac/expreplay"
	"github.com/samuelfneumann/gosac/network"
	"gonum.org/v1/gonum/mat"
)

// Moder is a module with a training and an evaluation mode. Modules
// with mode-dependent layers (e.g. running normalization) only update
// those layers in training mode.
type Moder interface {
	Eval()        // Set to evaluation mode
	Train()       // Set to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// Module is a Moder and a network.NeuralNet with learnable Params
// which can be stepped by a solver, and non-learnable buffers which are
// only synchronized.
type Module interface {
	Moder
	network.NeuralNet
	Buffers() []*network.Param
}

// ActorBackward accumulates the gradients of an actor's Params for a
// single call to PredictActionLogProb, given the gradient of a loss with
// respect to the sampled actions and their log probabilities. Either
// argument may be nil, in which case it is treated as zero.
type ActorBackward func(dAction *mat.Dense, dLogProb *mat.VecDense) error

// Actor is a stochastic policy over continuous actions.
//
// Observations and actions are batched with one sample per row.
type Actor interface {
	Module

	// PredictAction samples actions for a batch of observations
	PredictAction(obs *mat.Dense) (*mat.Dense, error)

	// PredictActionLogProb samples actions for a batch of observations
	// using the reparameterization trick, and returns the log
	// probability of each sampled action together with the backward
	// pass of the sampling computation.
	PredictActionLogProb(obs *mat.Dense) (*mat.Dense, *mat.VecDense,
		ActorBackward, error)

	// Predict returns actions for a batch of observations. If
	// deterministic is true, the mode of the policy is returned. The
	// recurrent state is passed through unchanged by memoryless
	// policies.
	Predict(obs *mat.Dense, deterministic bool, state []*mat.Dense,
		episodeStart *mat.VecDense) (*mat.Dense, []*mat.Dense, error)
}

// CriticBackward accumulates the gradients of a critic's Params for a
// single call to Forward, given the gradient of a loss with respect to
// each ensemble member's Q-values, and returns the gradient of the loss
// with respect to the input actions. A nil member gradient is treated
// as zero.
type CriticBackward func(dQ []*mat.VecDense) (*mat.Dense, error)

// Critic is an ensemble of state-action value functions.
type Critic interface {
	Module

	// Forward returns one vector of Q-values per ensemble member
	// together with the backward pass of this computation
	Forward(obs, action *mat.Dense) ([]*mat.VecDense, CriticBackward, error)

	// NumCritics returns the number of ensemble members
	NumCritics() int
}

// ReplayBuffer stores batched transitions for off-policy learning
type ReplayBuffer = expreplay.ExperienceReplayer

// ActionSampler samples exploratory actions for a vectorized
// environment with numEnvs sub-environments, one action per row.
type ActionSampler interface {
	Sample(numEnvs int) *mat.Dense
}
