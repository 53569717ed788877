// Package critic implements action-value function ensembles over
// continuous actions
package critic

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/samuelfneumann/gosac/agent"
	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/network"
	"gonum.org/v1/gonum/mat"
)

// Default settings for the running observation normalizer
const (
	NormMomentum float64 = 0.01
	NormEpsilon  float64 = 1e-5
)

// EnsembleMLP implements an ensemble of independent action-value
// functions Q_k(s, a), each parameterized by its own MLP with a single
// linear output. Each member takes as input the concatenation of the
// (optionally normalized) observation and the action.
//
// If normalization is enabled, all members share one RunningNorm over
// observations. Its running statistics are exposed through Buffers()
// and are only updated while the ensemble is in training mode.
//
// EnsembleMLP implements the agent.Critic interface.
type EnsembleMLP struct {
	members    []*network.MultiHeadMLP
	norm       *network.RunningNorm
	features   int
	actionDims int
	train      bool
}

// NewEnsembleMLP returns a new ensemble of numCritics action-value
// functions over observations of size features and actions of size
// actionDims. The hidden layers of each member are defined by
// hiddenSizes, biases, and activations, see network.NewMultiHeadMLP.
// If normalize is true, observations are normalized by a shared
// RunningNorm before being passed to each member.
func NewEnsembleMLP(features, actionDims, numCritics int, hiddenSizes []int,
	biases []bool, activations []*network.Activation, init *initwfn.InitWFn,
	normalize bool) (*EnsembleMLP, error) {
	if numCritics < 2 {
		return nil, fmt.Errorf("newEnsembleMLP: at least 2 critics are "+
			"required but got %v", numCritics)
	}
	if actionDims < 1 {
		return nil, fmt.Errorf("newEnsembleMLP: actionDims must be > 0")
	}

	members := make([]*network.MultiHeadMLP, numCritics)
	for i := range members {
		net, err := network.NewMultiHeadMLP(features+actionDims, []int{1},
			hiddenSizes, biases, init, activations)
		if err != nil {
			return nil, fmt.Errorf("newEnsembleMLP: critic %v: %v", i, err)
		}
		members[i] = net
	}

	var norm *network.RunningNorm
	if normalize {
		var err error
		norm, err = network.NewRunningNorm(features, NormMomentum, NormEpsilon)
		if err != nil {
			return nil, fmt.Errorf("newEnsembleMLP: %v", err)
		}
	}

	return &EnsembleMLP{
		members:    members,
		norm:       norm,
		features:   features,
		actionDims: actionDims,
		train:      true,
	}, nil
}

// NumCritics returns the number of members in the ensemble
func (e *EnsembleMLP) NumCritics() int {
	return len(e.members)
}

// Members returns the networks of the ensemble
func (e *EnsembleMLP) Members() []*network.MultiHeadMLP {
	return e.members
}

// Train sets the ensemble to training mode
func (e *EnsembleMLP) Train() {
	e.train = true
	if e.norm != nil {
		e.norm.Train()
	}
}

// Eval sets the ensemble to evaluation mode
func (e *EnsembleMLP) Eval() {
	e.train = false
	if e.norm != nil {
		e.norm.Eval()
	}
}

// IsEval returns whether the ensemble is in evaluation mode
func (e *EnsembleMLP) IsEval() bool {
	return !e.train
}

// Parameters returns the learnable Params of all members in order
func (e *EnsembleMLP) Parameters() []*network.Param {
	var params []*network.Param
	for _, m := range e.members {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Buffers returns the running statistics of the observation
// normalizer, or nil if observations are not normalized
func (e *EnsembleMLP) Buffers() []*network.Param {
	if e.norm == nil {
		return nil
	}
	return e.norm.Buffers()
}

// ZeroGrad sets the gradients of all Params to zero
func (e *EnsembleMLP) ZeroGrad() {
	network.ZeroGrad(e.Parameters())
}

// Forward computes the action values of each member for a batch of
// observation-action pairs. The returned backward function accumulates
// the gradients of each member's Params given the gradient of a loss
// with respect to that member's action values and returns the gradient
// with respect to the actions. A nil member gradient is treated as
// zero.
func (e *EnsembleMLP) Forward(obs, action *mat.Dense) ([]*mat.VecDense,
	agent.CriticBackward, error) {
	rows, obsCols := obs.Dims()
	if obsCols != e.features {
		return nil, nil, fmt.Errorf("forward: expected %v observation "+
			"features but got %v", e.features, obsCols)
	}
	if r, c := action.Dims(); r != rows || c != e.actionDims {
		return nil, nil, fmt.Errorf("forward: actions have shape (%v, %v), "+
			"expected (%v, %v)", r, c, rows, e.actionDims)
	}

	input := obs
	if e.norm != nil {
		var err error
		input, err = e.norm.Forward(obs)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: %v", err)
		}
	}
	var stateAction mat.Dense
	stateAction.Augment(input, action)

	values := make([]*mat.VecDense, len(e.members))
	backwards := make([]network.Backward, len(e.members))
	for i, m := range e.members {
		out, backward, err := m.Forward(&stateAction)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: critic %v: %v", i, err)
		}
		values[i] = mat.VecDenseCopyOf(out[0].ColView(0))
		backwards[i] = backward
	}

	backward := func(dQ []*mat.VecDense) (*mat.Dense, error) {
		if len(dQ) != len(e.members) {
			return nil, fmt.Errorf("backward: expected %v gradients but "+
				"got %v", len(e.members), len(dQ))
		}

		dAction := mat.NewDense(rows, e.actionDims, nil)
		for i, grad := range dQ {
			if grad == nil {
				continue
			}
			if grad.Len() != rows {
				return nil, fmt.Errorf("backward: critic %v gradient has "+
					"length %v, expected %v", i, grad.Len(), rows)
			}

			dOut := mat.NewDense(rows, 1, nil)
			dOut.SetCol(0, grad.RawVector().Data)
			dIn, err := backwards[i]([]*mat.Dense{dOut})
			if err != nil {
				return nil, fmt.Errorf("backward: critic %v: %v", i, err)
			}
			dA := dIn.Slice(0, rows, e.features, e.features+e.actionDims)
			dAction.Add(dAction, dA)
		}
		return dAction, nil
	}

	return values, backward, nil
}

// ensembleGob is the serialized form of an EnsembleMLP
type ensembleGob struct {
	Members    []*network.MultiHeadMLP
	Norm       *network.RunningNorm
	Features   int
	ActionDims int
}

// GobEncode implements the gob.GobEncoder interface
func (e *EnsembleMLP) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(ensembleGob{
		Members:    e.members,
		Norm:       e.norm,
		Features:   e.features,
		ActionDims: e.actionDims,
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode critic: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The mode of the
// receiver is kept.
func (e *EnsembleMLP) GobDecode(in []byte) error {
	var decoded ensembleGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode critic: %v", err)
	}
	if len(decoded.Members) < 2 {
		return fmt.Errorf("gobdecode: critic has %v members, expected at "+
			"least 2", len(decoded.Members))
	}
	for i, m := range decoded.Members {
		if m.Features() != decoded.Features+decoded.ActionDims {
			return fmt.Errorf("gobdecode: critic %v has %v input features, "+
				"expected %v", i, m.Features(),
				decoded.Features+decoded.ActionDims)
		}
	}

	train := e.train || e.members == nil
	*e = EnsembleMLP{
		members:    decoded.Members,
		norm:       decoded.Norm,
		features:   decoded.Features,
		actionDims: decoded.ActionDims,
	}
	if train {
		e.Train()
	} else {
		e.Eval()
	}
	return nil
}
