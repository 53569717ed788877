// Package network implements feed forward neural networks with
// explicit backward passes, target network synchronization, and
// non-learnable running statistics layers.
package network

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// NeuralNet is a network whose learnable Params can be stepped by a
// solver and synchronized with another network of the same
// architecture.
type NeuralNet interface {
	Parameters() []*Param
	ZeroGrad()
}

// Set copies the values of source into dest. Both slices must contain
// Params of identical shapes in identical order.
func Set(dest, source []*Param) error {
	if err := Compatible(dest, source); err != nil {
		return fmt.Errorf("set: %v", err)
	}
	for i := range dest {
		copy(dest[i].data, source[i].data)
	}
	return nil
}

// Polyak sets each Param in dest to the polyak average
// (1 - tau) * dest + tau * source. A tau of 1 copies source exactly and
// a tau of 0 leaves dest unchanged.
func Polyak(dest, source []*Param, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: tau must be in [0, 1] but got %v", tau)
	}
	if err := Compatible(dest, source); err != nil {
		return fmt.Errorf("polyak: %v", err)
	}

	switch tau {
	case 0:
		return nil
	case 1:
		return Set(dest, source)
	}

	for i := range dest {
		floats.Scale(1-tau, dest[i].data)
		floats.AddScaled(dest[i].data, tau, source[i].data)
	}
	return nil
}

// ZeroGrad sets the gradients of all Params to zero
func ZeroGrad(params []*Param) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// Compatible returns an error if two slices of Params cannot be
// synchronized
func Compatible(dest, source []*Param) error {
	if len(dest) != len(source) {
		return fmt.Errorf("cannot synchronize %v params with %v params",
			len(dest), len(source))
	}
	for i := range dest {
		if !dest[i].sameShape(source[i]) {
			return fmt.Errorf("param %v (%v) has shape %v but source "+
				"param %v has shape %v", i, dest[i].name, dest[i].shape,
				source[i].name, source[i].shape)
		}
	}
	return nil
}
