package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Param is a named, learnable weight tensor together with its
// accumulated gradient. Param implements G.ValueGrad so that slices of
// Params can be stepped directly by Gorgonia Solvers.
//
// The value and gradient tensors share their backing slices with the
// flat views returned by Data() and GradData(). Solvers update the
// value tensor in place, so any matrix views created over Data()
// remain valid across solver steps.
type Param struct {
	name  string
	shape []int

	data     []float64
	gradData []float64

	value *tensor.Dense
	grad  *tensor.Dense
}

// NewParam returns a new Param with the given name and shape. If data
// is nil, the Param is zero-initialized. The Param takes ownership of
// data.
func NewParam(name string, data []float64, shape ...int) (*Param, error) {
	size := 1
	for _, dim := range shape {
		if dim < 1 {
			return nil, fmt.Errorf("newParam: invalid shape %v for %v",
				shape, name)
		}
		size *= dim
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("newParam: %v must have at least one "+
			"dimension", name)
	}

	if data == nil {
		data = make([]float64, size)
	} else if len(data) != size {
		return nil, fmt.Errorf("newParam: %v has %v values, shape %v "+
			"requires %v", name, len(data), shape, size)
	}
	gradData := make([]float64, size)

	s := append([]int(nil), shape...)
	return &Param{
		name:     name,
		shape:    s,
		data:     data,
		gradData: gradData,
		value:    tensor.New(tensor.WithShape(s...), tensor.WithBacking(data)),
		grad: tensor.New(tensor.WithShape(s...),
			tensor.WithBacking(gradData)),
	}, nil
}

// Value implements the G.Valuer interface
func (p *Param) Value() G.Value {
	return p.value
}

// Grad implements the G.ValueGrad interface
func (p *Param) Grad() (G.Value, error) {
	return p.grad, nil
}

// Name returns the name of the Param
func (p *Param) Name() string {
	return p.name
}

// Shape returns a copy of the shape of the Param
func (p *Param) Shape() []int {
	return append([]int(nil), p.shape...)
}

// Len returns the number of scalars in the Param
func (p *Param) Len() int {
	return len(p.data)
}

// Data returns the flat, row-major backing slice of the Param's value
func (p *Param) Data() []float64 {
	return p.data
}

// GradData returns the flat, row-major backing slice of the Param's
// gradient
func (p *Param) GradData() []float64 {
	return p.gradData
}

// ZeroGrad sets the accumulated gradient to zero
func (p *Param) ZeroGrad() {
	for i := range p.gradData {
		p.gradData[i] = 0
	}
}

// sameShape returns whether two Params have identical shapes
func (p *Param) sameShape(other *Param) bool {
	if len(p.shape) != len(other.shape) {
		return false
	}
	for i := range p.shape {
		if p.shape[i] != other.shape[i] {
			return false
		}
	}
	return true
}

// GobEncode implements the gob.GobEncoder interface. Gradients are not
// encoded.
func (p *Param) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(p.name); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode name: %v", err)
	}
	if err := enc.Encode(p.shape); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode shape: %v", err)
	}
	if err := enc.Encode(p.data); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode data: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (p *Param) GobDecode(in []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(in))

	var name string
	if err := dec.Decode(&name); err != nil {
		return fmt.Errorf("gobdecode: could not decode name: %v", err)
	}
	var shape []int
	if err := dec.Decode(&shape); err != nil {
		return fmt.Errorf("gobdecode: could not decode shape: %v", err)
	}
	var data []float64
	if err := dec.Decode(&data); err != nil {
		return fmt.Errorf("gobdecode: could not decode data: %v", err)
	}

	decoded, err := NewParam(name, data, shape...)
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}
	*p = *decoded
	return nil
}
