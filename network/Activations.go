package network

import (
	"fmt"
	"math"
)

type activationType string

const (
	relu     activationType = "relu"
	identity activationType = "identity"
	tanh     activationType = "tanh"
)

// Activation represents an element-wise activation function together
// with its derivative
type Activation struct {
	activationType
	f func(x float64) float64

	// df computes the derivative of the activation given both its input
	// x and its output y = f(x)
	df func(x, y float64) float64
}

// fwd performs the forward pass of an Activation
func (a *Activation) fwd(x float64) float64 {
	return a.f(x)
}

// bwd returns the derivative of the Activation at input x with
// output y
func (a *Activation) bwd(x, y float64) float64 {
	return a.df(x, y)
}

// String implements the Stringer interface
func (a *Activation) String() string {
	return string(a.activationType)
}

// IsIdentity returns whether or not the Activation is the identity
// function.
func (a *Activation) IsIdentity() bool {
	return a.activationType == identity
}

// GobEncode implements the GobEncoder interface
func (a *Activation) GobEncode() ([]byte, error) {
	return []byte(a.activationType), nil
}

// GobDecode implements the GobDecoder interface
func (a *Activation) GobDecode(encoded []byte) error {
	decoded, err := ActivationFromString(string(encoded))
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	*a = *decoded
	return nil
}

// ActivationFromString returns the Activation with the given name
func ActivationFromString(name string) (*Activation, error) {
	switch activationType(name) {
	case relu:
		return ReLU(), nil
	case identity:
		return Identity(), nil
	case tanh:
		return TanH(), nil
	default:
		return nil, fmt.Errorf("illegal Activation type %q", name)
	}
}

// Identity returns an identity *Activation
func Identity() *Activation {
	return &Activation{
		activationType: identity,
		f:              func(x float64) float64 { return x },
		df:             func(_, _ float64) float64 { return 1.0 },
	}
}

// ReLU returns a ReLU *Activation
func ReLU() *Activation {
	return &Activation{
		activationType: relu,
		f: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		df: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
}

// TanH returns a tanh *Activation
func TanH() *Activation {
	return &Activation{
		activationType: tanh,
		f:              math.Tanh,
		df:             func(_, y float64) float64 { return 1 - y*y },
	}
}
