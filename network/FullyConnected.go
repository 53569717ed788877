package network

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// fcLayer implements a fully connected layer of a feed forward neural
// network, computing act(x·W + b) for a batch x with one sample per
// row.
type fcLayer struct {
	weights *Param // (in, out)
	bias    *Param // (out), nil if the layer has no bias
	act     *Activation

	w *mat.Dense // view over weights.Data()
}

// fcCache stores the values of a forward pass needed to compute its
// backward pass
type fcCache struct {
	input *mat.Dense
	pre   *mat.Dense // x·W + b
	out   *mat.Dense // act(pre)
}

// newFCLayer returns a new fcLayer with weights initialized from data
func newFCLayer(name string, in, out int, weights []float64, bias bool,
	act *Activation) (*fcLayer, error) {
	w, err := NewParam(name+"/weights", weights, in, out)
	if err != nil {
		return nil, fmt.Errorf("newFCLayer: %v", err)
	}

	var b *Param
	if bias {
		b, err = NewParam(name+"/bias", nil, out)
		if err != nil {
			return nil, fmt.Errorf("newFCLayer: %v", err)
		}
	}

	return newFCLayerFromParams(w, b, act)
}

// newFCLayerFromParams returns a new fcLayer which uses the argument
// Params as its weights and bias
func newFCLayerFromParams(weights, bias *Param, act *Activation) (*fcLayer,
	error) {
	shape := weights.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("newFCLayer: weights must be a matrix but "+
			"got shape %v", shape)
	}
	if bias != nil && (len(bias.shape) != 1 || bias.shape[0] != shape[1]) {
		return nil, fmt.Errorf("newFCLayer: bias shape %v does not match "+
			"weights shape %v", bias.shape, shape)
	}

	return &fcLayer{
		weights: weights,
		bias:    bias,
		act:     act,
		w:       mat.NewDense(shape[0], shape[1], weights.Data()),
	}, nil
}

// in returns the number of input features of the layer
func (f *fcLayer) in() int {
	return f.weights.shape[0]
}

// out returns the number of output features of the layer
func (f *fcLayer) out() int {
	return f.weights.shape[1]
}

// fwd computes the forward pass of the layer
func (f *fcLayer) fwd(x *mat.Dense) (*mat.Dense, fcCache, error) {
	rows, cols := x.Dims()
	if cols != f.in() {
		return nil, fcCache{}, fmt.Errorf("fwd: expected %v input features "+
			"but got %v", f.in(), cols)
	}

	pre := mat.NewDense(rows, f.out(), nil)
	pre.Mul(x, f.w)
	if f.bias != nil {
		for i := 0; i < rows; i++ {
			floats.Add(pre.RawRowView(i), f.bias.Data())
		}
	}

	out := pre
	if !f.act.IsIdentity() {
		out = mat.NewDense(rows, f.out(), nil)
		out.Apply(func(_, _ int, v float64) float64 {
			return f.act.fwd(v)
		}, pre)
	}

	return out, fcCache{input: x, pre: pre, out: out}, nil
}

// bwd accumulates the gradients of the layer's Params given the
// gradient of the loss with respect to the layer's output, and returns
// the gradient of the loss with respect to the layer's input.
func (f *fcLayer) bwd(cache fcCache, dOut *mat.Dense) *mat.Dense {
	rows, _ := dOut.Dims()

	dPre := dOut
	if !f.act.IsIdentity() {
		dPre = mat.NewDense(rows, f.out(), nil)
		dPre.Apply(func(i, j int, v float64) float64 {
			return v * f.act.bwd(cache.pre.At(i, j), cache.out.At(i, j))
		}, dOut)
	}

	var dW mat.Dense
	dW.Mul(cache.input.T(), dPre)
	gradW := mat.NewDense(f.in(), f.out(), f.weights.GradData())
	gradW.Add(gradW, &dW)

	if f.bias != nil {
		for i := 0; i < rows; i++ {
			floats.Add(f.bias.GradData(), dPre.RawRowView(i))
		}
	}

	dIn := mat.NewDense(rows, f.in(), nil)
	dIn.Mul(dPre, f.w.T())
	return dIn
}

// params returns the Params of the layer
func (f *fcLayer) params() []*Param {
	if f.bias == nil {
		return []*Param{f.weights}
	}
	return []*Param{f.weights, f.bias}
}
