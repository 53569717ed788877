package network

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RunningNorm normalizes inputs feature-wise using a running estimate
// of their mean and variance. The running statistics are buffers: they
// are never stepped by a solver and are only updated when the layer is
// in training mode.
type RunningNorm struct {
	mean     *Param
	variance *Param
	momentum float64
	epsilon  float64
	train    bool
}

// NewRunningNorm returns a new RunningNorm over features inputs. The
// running estimates move towards each batch's statistics at rate
// momentum.
func NewRunningNorm(features int, momentum, epsilon float64) (*RunningNorm,
	error) {
	if momentum <= 0 || momentum > 1 {
		return nil, fmt.Errorf("newRunningNorm: momentum must be in (0, 1]")
	}
	if epsilon <= 0 {
		return nil, fmt.Errorf("newRunningNorm: epsilon must be > 0")
	}

	mean, err := NewParam("running_mean", nil, features)
	if err != nil {
		return nil, fmt.Errorf("newRunningNorm: %v", err)
	}
	variance, err := NewParam("running_var", nil, features)
	if err != nil {
		return nil, fmt.Errorf("newRunningNorm: %v", err)
	}
	for i := range variance.data {
		variance.data[i] = 1.0
	}

	return &RunningNorm{
		mean:     mean,
		variance: variance,
		momentum: momentum,
		epsilon:  epsilon,
		train:    true,
	}, nil
}

// Train sets the layer to training mode
func (r *RunningNorm) Train() { r.train = true }

// Eval sets the layer to evaluation mode
func (r *RunningNorm) Eval() { r.train = false }

// IsEval returns whether the layer is in evaluation mode
func (r *RunningNorm) IsEval() bool { return !r.train }

// Buffers returns the running mean and variance
func (r *RunningNorm) Buffers() []*Param {
	return []*Param{r.mean, r.variance}
}

// Forward normalizes a batch of inputs. In training mode the running
// statistics are first moved towards the statistics of x.
func (r *RunningNorm) Forward(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != r.mean.Len() {
		return nil, fmt.Errorf("forward: expected %v features but got %v",
			r.mean.Len(), cols)
	}

	if r.train {
		col := make([]float64, rows)
		for j := 0; j < cols; j++ {
			mat.Col(col, j, x)
			m, v := stat.PopMeanVariance(col, nil)
			r.mean.data[j] += r.momentum * (m - r.mean.data[j])
			r.variance.data[j] += r.momentum * (v - r.variance.data[j])
		}
	}

	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - r.mean.data[j]) / math.Sqrt(r.variance.data[j]+r.epsilon)
	}, x)
	return out, nil
}

// runningNormGob is the serialized form of a RunningNorm
type runningNormGob struct {
	Mean, Variance    *Param
	Momentum, Epsilon float64
}

// GobEncode implements the gob.GobEncoder interface
func (r *RunningNorm) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(runningNormGob{
		Mean:     r.mean,
		Variance: r.variance,
		Momentum: r.momentum,
		Epsilon:  r.epsilon,
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode running norm: %v",
			err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded layer
// is in training mode.
func (r *RunningNorm) GobDecode(in []byte) error {
	var decoded runningNormGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode running norm: %v", err)
	}
	if decoded.Mean == nil || decoded.Variance == nil {
		return fmt.Errorf("gobdecode: running norm is missing statistics")
	}

	*r = RunningNorm{
		mean:     decoded.Mean,
		variance: decoded.Variance,
		momentum: decoded.Momentum,
		epsilon:  decoded.Epsilon,
		train:    true,
	}
	return nil
}
