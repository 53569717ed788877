package sac

import (
	"fmt"

	"github.com/samuelfneumann/gosac/agent"
	"github.com/samuelfneumann/gosac/agent/nonlinear/continuous/critic"
	"github.com/samuelfneumann/gosac/agent/nonlinear/continuous/policy"
	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/network"
)

// Factory creates the actor and critics of a SAC agent. The critic
// and target critic are both created by NewCritic and must be
// structurally identical.
type Factory interface {
	NewActor(obsSpec, actionSpec environment.Spec, c Config) (agent.Actor,
		error)
	NewCritic(obsSpec, actionSpec environment.Spec, c Config) (agent.Critic,
		error)
}

// MLPFactory creates a SquashedGaussianMLP actor and an EnsembleMLP
// critic whose hidden layers are given by Config.HiddenSizes. Weights
// are initialized by Init, or by Config.WeightInit if Init is nil.
type MLPFactory struct {
	Init       *initwfn.InitWFn
	Activation func() *network.Activation
}

// NewMLPFactory returns an MLPFactory with ReLU hidden activations
// whose weights are initialized as given by the Config
func NewMLPFactory() (*MLPFactory, error) {
	return &MLPFactory{Activation: network.ReLU}, nil
}

// layers returns the biases and activations of the hidden layers and
// the weight initializer
func (m *MLPFactory) layers(c Config) ([]bool, []*network.Activation,
	*initwfn.InitWFn, error) {
	biases := make([]bool, len(c.HiddenSizes))
	activations := make([]*network.Activation, len(c.HiddenSizes))
	for i := range biases {
		biases[i] = true
		activations[i] = m.Activation()
	}

	if m.Init != nil {
		return biases, activations, m.Init, nil
	}
	init, err := initwfn.Named(c.WeightInit)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("layers: %w", err)
	}
	return biases, activations, init, nil
}

// NewActor returns a new SquashedGaussianMLP whose sampler is seeded
// with the actor seed derived from c.Seed
func (m *MLPFactory) NewActor(obsSpec, actionSpec environment.Spec,
	c Config) (agent.Actor, error) {
	biases, activations, init, err := m.layers(c)
	if err != nil {
		return nil, fmt.Errorf("newActor: %w", err)
	}
	return policy.NewSquashedGaussianMLP(obsSpec.Shape.Len(), actionSpec,
		c.HiddenSizes, biases, activations, init, NewSeeds(c.Seed).Actor)
}

// NewCritic returns a new EnsembleMLP of c.NumCritics members
func (m *MLPFactory) NewCritic(obsSpec, actionSpec environment.Spec,
	c Config) (agent.Critic, error) {
	biases, activations, init, err := m.layers(c)
	if err != nil {
		return nil, fmt.Errorf("newCritic: %w", err)
	}
	return critic.NewEnsembleMLP(obsSpec.Shape.Len(), actionSpec.Shape.Len(),
		c.NumCritics, c.HiddenSizes, biases, activations, init,
		c.NormalizeObservations)
}
