package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/samuelfneumann/gosac/initwfn"
	"gonum.org/v1/gonum/mat"
)

// Backward computes the backward pass of a single forward pass of a
// network. Given the gradient of a loss with respect to each output
// head, it accumulates the gradients of the network's Params and
// returns the gradient of the loss with respect to the network input.
// A nil gradient for a head is treated as zero.
type Backward func(dOutputs []*mat.Dense) (*mat.Dense, error)

// MultiHeadMLP implements a multi-layered perceptron with a shared
// trunk of hidden layers followed by multiple linear output heads.
// For example, a Gaussian policy uses one head for the mean and another
// for the log standard deviation of its action distribution.
//
// MultiHeadMLP does not build a computational graph. Instead, each call
// to Forward returns a Backward closure which holds the intermediate
// values of that forward pass. This allows gradients to flow from one
// network into another (e.g. from a critic into an actor) even though
// the networks are owned by different objects.
type MultiHeadMLP struct {
	features int
	trunk    []*fcLayer
	heads    []*fcLayer

	// Data needed for gobbing
	hiddenSizes []int
	biases      []bool
	activations []*Activation
	outputs     []int
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that takes features inputs and has one linear output head of size
// outputs[i] for each i.
//
// The function works such that for index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i.
// Output heads always contain a bias unit and no activation. The
// parameter init determines the weight initialization scheme; biases
// are initialized to zero.
func NewMultiHeadMLP(features int, outputs []int, hiddenSizes []int,
	biases []bool, init *initwfn.InitWFn,
	activations []*Activation) (*MultiHeadMLP, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newMultiHeadMLP: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newMultiHeadMLP: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if features < 1 {
		return nil, fmt.Errorf("newMultiHeadMLP: features must be > 0")
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("newMultiHeadMLP: at least one output head " +
			"is required")
	}

	net := &MultiHeadMLP{
		features:    features,
		hiddenSizes: append([]int(nil), hiddenSizes...),
		biases:      append([]bool(nil), biases...),
		activations: append([]*Activation(nil), activations...),
		outputs:     append([]int(nil), outputs...),
	}

	in := features
	for i, size := range hiddenSizes {
		weights, err := init.Weights(in, size)
		if err != nil {
			return nil, fmt.Errorf("newMultiHeadMLP: hidden layer %v: %v",
				i, err)
		}
		layer, err := newFCLayer(fmt.Sprintf("hidden%d", i), in, size,
			weights, biases[i], activations[i])
		if err != nil {
			return nil, fmt.Errorf("newMultiHeadMLP: %v", err)
		}
		net.trunk = append(net.trunk, layer)
		in = size
	}

	for i, size := range outputs {
		weights, err := init.Weights(in, size)
		if err != nil {
			return nil, fmt.Errorf("newMultiHeadMLP: head %v: %v", i, err)
		}
		layer, err := newFCLayer(fmt.Sprintf("head%d", i), in, size,
			weights, true, Identity())
		if err != nil {
			return nil, fmt.Errorf("newMultiHeadMLP: %v", err)
		}
		net.heads = append(net.heads, layer)
	}

	return net, nil
}

// Features returns the number of input features of the network
func (m *MultiHeadMLP) Features() int {
	return m.features
}

// Outputs returns the size of each output head
func (m *MultiHeadMLP) Outputs() []int {
	return append([]int(nil), m.outputs...)
}

// Forward computes the output of each head for a batch of inputs,
// one sample per row, and returns a Backward closure for this pass.
func (m *MultiHeadMLP) Forward(x *mat.Dense) ([]*mat.Dense, Backward,
	error) {
	if _, cols := x.Dims(); cols != m.features {
		return nil, nil, fmt.Errorf("forward: expected %v features but "+
			"got %v", m.features, cols)
	}

	trunkCaches := make([]fcCache, len(m.trunk))
	hidden := x
	for i, layer := range m.trunk {
		var err error
		hidden, trunkCaches[i], err = layer.fwd(hidden)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: hidden layer %v: %v", i, err)
		}
	}

	outputs := make([]*mat.Dense, len(m.heads))
	headCaches := make([]fcCache, len(m.heads))
	for i, head := range m.heads {
		var err error
		outputs[i], headCaches[i], err = head.fwd(hidden)
		if err != nil {
			return nil, nil, fmt.Errorf("forward: head %v: %v", i, err)
		}
	}

	rows, _ := x.Dims()
	backward := func(dOutputs []*mat.Dense) (*mat.Dense, error) {
		if len(dOutputs) != len(m.heads) {
			return nil, fmt.Errorf("backward: expected %v output gradients "+
				"but got %v", len(m.heads), len(dOutputs))
		}

		var dHidden *mat.Dense
		for i, head := range m.heads {
			if dOutputs[i] == nil {
				continue
			}
			if r, c := dOutputs[i].Dims(); r != rows || c != head.out() {
				return nil, fmt.Errorf("backward: head %v gradient has shape "+
					"(%v, %v), expected (%v, %v)", i, r, c, rows, head.out())
			}

			dIn := head.bwd(headCaches[i], dOutputs[i])
			if dHidden == nil {
				dHidden = dIn
			} else {
				dHidden.Add(dHidden, dIn)
			}
		}

		if dHidden == nil {
			return mat.NewDense(rows, m.features, nil), nil
		}
		for i := len(m.trunk) - 1; i >= 0; i-- {
			dHidden = m.trunk[i].bwd(trunkCaches[i], dHidden)
		}
		return dHidden, nil
	}

	return outputs, backward, nil
}

// Parameters returns the learnable Params of the network in a fixed
// order: trunk layers first, then heads.
func (m *MultiHeadMLP) Parameters() []*Param {
	var params []*Param
	for _, layer := range m.trunk {
		params = append(params, layer.params()...)
	}
	for _, head := range m.heads {
		params = append(params, head.params()...)
	}
	return params
}

// ZeroGrad sets the gradients of all Params to zero
func (m *MultiHeadMLP) ZeroGrad() {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// mlpGob is the serialized form of a MultiHeadMLP
type mlpGob struct {
	Features    int
	Outputs     []int
	HiddenSizes []int
	Biases      []bool
	Activations []string
	Params      []*Param
}

// GobEncode implements the gob.GobEncoder interface
func (m *MultiHeadMLP) GobEncode() ([]byte, error) {
	activations := make([]string, len(m.activations))
	for i, act := range m.activations {
		activations[i] = act.String()
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	err := enc.Encode(mlpGob{
		Features:    m.features,
		Outputs:     m.outputs,
		HiddenSizes: m.hiddenSizes,
		Biases:      m.biases,
		Activations: activations,
		Params:      m.Parameters(),
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode MLP: %v", err)
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (m *MultiHeadMLP) GobDecode(in []byte) error {
	var decoded mlpGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode MLP: %v", err)
	}

	activations := make([]*Activation, len(decoded.Activations))
	for i, name := range decoded.Activations {
		act, err := ActivationFromString(name)
		if err != nil {
			return fmt.Errorf("gobdecode: %v", err)
		}
		activations[i] = act
	}
	biases := decoded.Biases
	if biases == nil {
		biases = make([]bool, len(decoded.HiddenSizes))
	}

	init, err := initwfn.NewZeroes()
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	net, err := NewMultiHeadMLP(decoded.Features, decoded.Outputs,
		decoded.HiddenSizes, biases, init, activations)
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct new MLP: %v", err)
	}
	if err := Set(net.Parameters(), decoded.Params); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	*m = *net
	return nil
}
