// Package policy implements stochastic policies over continuous
// actions parameterized by neural networks
package policy

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/samuelfneumann/gosac/agent"
	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/network"
	"github.com/samuelfneumann/gosac/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Bounds on the log standard deviation predicted by the network. The
// gradient of the log standard deviation is zero outside these bounds.
const (
	LogStdMin float64 = -20
	LogStdMax float64 = 2
)

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// SquashedGaussianMLP implements a tanh-squashed Gaussian policy
// parameterized by a multi-head MLP. The MLP has a shared trunk which
// breaks off into two linear heads. One predicts the mean μ, and the
// other the log standard deviation log σ of a Gaussian distribution.
//
// Given a network prediction of μ and σ, actions are selected by
// sampling from the standard normal ɛ ~ N(0, 1), computing
// u := μ + σ * ɛ using the reparameterization trick, and squashing u
// into the action bounds with
//
//	action := bias + scale * tanh(u)
//
// where scale and bias map [-1, 1] onto the environment's action
// bounds. The log probability of a sampled action is the exact log
// density of the squashed, rescaled distribution.
//
// SquashedGaussianMLP implements the agent.Actor interface.
type SquashedGaussianMLP struct {
	net *network.MultiHeadMLP

	normal     distmv.Rander
	actionDims int
	scale      []float64
	bias       []float64
	logScale   float64 // sum of log(scale)

	train bool
}

// NewSquashedGaussianMLP returns a new SquashedGaussianMLP policy
// over observations of size features and actions described by
// actionSpec, which must have finite bounds. The trunk of the neural
// network is defined by hiddenSizes, biases, and activations. See
// network.NewMultiHeadMLP for details on what each of these parameters
// defines.
//
// The init parameter determines the weight initialization scheme for
// the neural net and the seed parameter determines the seed of the
// policy's action sampler.
func NewSquashedGaussianMLP(features int, actionSpec environment.Spec,
	hiddenSizes []int, biases []bool, activations []*network.Activation,
	init *initwfn.InitWFn, seed uint64) (*SquashedGaussianMLP, error) {
	if actionSpec.Cardinality != environment.Continuous {
		return nil, fmt.Errorf("newSquashedGaussianMLP: actions should be " +
			"continuous")
	}
	actionDims := actionSpec.Shape.Len()

	net, err := network.NewMultiHeadMLP(features, []int{actionDims,
		actionDims}, hiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newSquashedGaussianMLP: %v", err)
	}

	return newSquashedGaussianMLP(net, actionSpec, seed)
}

// newSquashedGaussianMLP wraps an existing network in a
// SquashedGaussianMLP
func newSquashedGaussianMLP(net *network.MultiHeadMLP,
	actionSpec environment.Spec, seed uint64) (*SquashedGaussianMLP, error) {
	actionDims := actionSpec.Shape.Len()
	if heads := net.Outputs(); len(heads) != 2 || heads[0] != actionDims ||
		heads[1] != actionDims {
		return nil, fmt.Errorf("newSquashedGaussianMLP: network heads %v "+
			"do not match action dimensions %v", heads, actionDims)
	}

	scale := make([]float64, actionDims)
	bias := make([]float64, actionDims)
	logScale := 0.0
	for i := 0; i < actionDims; i++ {
		low := actionSpec.LowerBound.AtVec(i)
		high := actionSpec.UpperBound.AtVec(i)
		if math.IsInf(low, 0) || math.IsInf(high, 0) || high <= low {
			return nil, fmt.Errorf("newSquashedGaussianMLP: action "+
				"dimension %v has invalid bounds [%v, %v]", i, low, high)
		}
		scale[i] = (high - low) / 2
		bias[i] = (high + low) / 2
		logScale += math.Log(scale[i])
	}

	// Create standard normal for action selection
	means := make([]float64, actionDims)
	stds := mat.NewDiagDense(actionDims, floatutils.Ones(actionDims))
	source := rand.NewSource(seed)
	normal, ok := distmv.NewNormal(means, stds, source)
	if !ok {
		return nil, fmt.Errorf("newSquashedGaussianMLP: could not create " +
			"standard normal for action selection")
	}

	return &SquashedGaussianMLP{
		net:        net,
		normal:     normal,
		actionDims: actionDims,
		scale:      scale,
		bias:       bias,
		logScale:   logScale,
		train:      true,
	}, nil
}

// Network returns the network parameterizing the policy
func (s *SquashedGaussianMLP) Network() *network.MultiHeadMLP {
	return s.net
}

// Eval sets the policy to evaluation mode
func (s *SquashedGaussianMLP) Eval() { s.train = false }

// Train sets the policy to training mode
func (s *SquashedGaussianMLP) Train() { s.train = true }

// IsEval indicates if the policy is in evaluation mode
func (s *SquashedGaussianMLP) IsEval() bool { return !s.train }

// Parameters returns the learnable Params of the policy
func (s *SquashedGaussianMLP) Parameters() []*network.Param {
	return s.net.Parameters()
}

// Buffers returns the non-learnable state of the policy, of which
// there is none
func (s *SquashedGaussianMLP) Buffers() []*network.Param {
	return nil
}

// ZeroGrad sets the gradients of all Params to zero
func (s *SquashedGaussianMLP) ZeroGrad() {
	s.net.ZeroGrad()
}

// squash computes bias + scale * tanh(u) in place on the rows of u
func (s *SquashedGaussianMLP) squash(u *mat.Dense) *mat.Dense {
	u.Apply(func(_, j int, v float64) float64 {
		return s.bias[j] + s.scale[j]*math.Tanh(v)
	}, u)
	return u
}

// distribution returns the mean, clamped log standard deviation, and
// the backward pass of the network for a batch of observations
func (s *SquashedGaussianMLP) distribution(obs *mat.Dense) (mean,
	rawLogStd *mat.Dense, backward network.Backward, err error) {
	if _, cols := obs.Dims(); cols != s.net.Features() {
		return nil, nil, nil, fmt.Errorf("expected %v observation features "+
			"but got %v", s.net.Features(), cols)
	}

	outputs, backward, err := s.net.Forward(obs)
	if err != nil {
		return nil, nil, nil, err
	}
	return outputs[0], outputs[1], backward, nil
}

// PredictAction samples actions for a batch of observations
func (s *SquashedGaussianMLP) PredictAction(obs *mat.Dense) (*mat.Dense,
	error) {
	actions, _, _, err := s.PredictActionLogProb(obs)
	if err != nil {
		return nil, fmt.Errorf("predictAction: %v", err)
	}
	return actions, nil
}

// PredictActionLogProb samples actions for a batch of observations
// and returns the log probability of each action together with the
// backward pass of the sampling computation.
func (s *SquashedGaussianMLP) PredictActionLogProb(obs *mat.Dense) (
	*mat.Dense, *mat.VecDense, agent.ActorBackward, error) {
	mean, rawLogStd, netBackward, err := s.distribution(obs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("predictActionLogProb: %v", err)
	}
	rows, _ := obs.Dims()

	// Sample ɛ and compute u = μ + σɛ
	eps := mat.NewDense(rows, s.actionDims, nil)
	std := mat.NewDense(rows, s.actionDims, nil)
	u := mat.NewDense(rows, s.actionDims, nil)
	logProb := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		s.normal.Rand(eps.RawRowView(i))

		lp := -s.logScale
		for j := 0; j < s.actionDims; j++ {
			logStd := floatutils.Clip(rawLogStd.At(i, j), LogStdMin, LogStdMax)
			sigma := math.Exp(logStd)
			e := eps.At(i, j)
			uij := mean.At(i, j) + sigma*e

			std.Set(i, j, sigma)
			u.Set(i, j, uij)

			// Gaussian log density of u
			lp += -0.5*e*e - logStd - logSqrt2Pi

			// log(1 - tanh(u)²) computed stably
			lp -= 2 * (math.Ln2 - uij - floatutils.Softplus(-2*uij))
		}
		logProb.SetVec(i, lp)
	}

	tanhU := mat.NewDense(rows, s.actionDims, nil)
	tanhU.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, u)
	actions := s.squash(mat.DenseCopyOf(u))

	backward := func(dAction *mat.Dense, dLogProb *mat.VecDense) error {
		if dAction != nil {
			if r, c := dAction.Dims(); r != rows || c != s.actionDims {
				return fmt.Errorf("backward: action gradient has shape "+
					"(%v, %v), expected (%v, %v)", r, c, rows, s.actionDims)
			}
		}
		if dLogProb != nil && dLogProb.Len() != rows {
			return fmt.Errorf("backward: log probability gradient has "+
				"length %v, expected %v", dLogProb.Len(), rows)
		}

		dMean := mat.NewDense(rows, s.actionDims, nil)
		dLogStd := mat.NewDense(rows, s.actionDims, nil)
		for i := 0; i < rows; i++ {
			gL := 0.0
			if dLogProb != nil {
				gL = dLogProb.AtVec(i)
			}
			for j := 0; j < s.actionDims; j++ {
				gA := 0.0
				if dAction != nil {
					gA = dAction.At(i, j)
				}
				t := tanhU.At(i, j)

				// d action/du = scale * (1 - tanh²u)
				// d logProb/du = 2 tanh(u)
				gu := gA*s.scale[j]*(1-t*t) + gL*2*t
				dMean.Set(i, j, gu)

				raw := rawLogStd.At(i, j)
				if raw >= LogStdMin && raw <= LogStdMax {
					// du/dlogσ = σɛ and d logProb/dlogσ = -1 directly
					dLogStd.Set(i, j, gu*std.At(i, j)*eps.At(i, j)-gL)
				}
			}
		}

		_, err := netBackward([]*mat.Dense{dMean, dLogStd})
		if err != nil {
			return fmt.Errorf("backward: %v", err)
		}
		return nil
	}

	return actions, logProb, backward, nil
}

// Predict returns actions for a batch of observations. If
// deterministic is true, the squashed mean action is returned,
// otherwise actions are sampled. The state is returned unchanged since
// the policy is memoryless.
func (s *SquashedGaussianMLP) Predict(obs *mat.Dense, deterministic bool,
	state []*mat.Dense, _ *mat.VecDense) (*mat.Dense, []*mat.Dense, error) {
	if !deterministic {
		actions, err := s.PredictAction(obs)
		if err != nil {
			return nil, nil, fmt.Errorf("predict: %v", err)
		}
		return actions, state, nil
	}

	mean, _, _, err := s.distribution(obs)
	if err != nil {
		return nil, nil, fmt.Errorf("predict: %v", err)
	}
	return s.squash(mean), state, nil
}

// squashedGaussianGob is the serialized form of a SquashedGaussianMLP
type squashedGaussianGob struct {
	Net   *network.MultiHeadMLP
	Lower []float64
	Upper []float64
}

// GobEncode implements the gob.GobEncoder interface. The state of the
// action sampler is not encoded.
func (s *SquashedGaussianMLP) GobEncode() ([]byte, error) {
	lower := make([]float64, s.actionDims)
	upper := make([]float64, s.actionDims)
	for i := range lower {
		lower[i] = s.bias[i] - s.scale[i]
		upper[i] = s.bias[i] + s.scale[i]
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(squashedGaussianGob{
		Net:   s.net,
		Lower: lower,
		Upper: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("gobencode: could not encode policy: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. If the policy
// already has an action sampler, the sampler is kept, otherwise a new
// sampler seeded with 0 is created.
func (s *SquashedGaussianMLP) GobDecode(in []byte) error {
	var decoded squashedGaussianGob
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&decoded); err != nil {
		return fmt.Errorf("gobdecode: could not decode policy: %v", err)
	}
	if decoded.Net == nil {
		return fmt.Errorf("gobdecode: policy is missing its network")
	}

	n := len(decoded.Lower)
	if n == 0 || len(decoded.Upper) != n {
		return fmt.Errorf("gobdecode: policy has invalid action bounds")
	}
	actionSpec := environment.NewSpec(
		mat.NewVecDense(n, nil),
		environment.Action,
		mat.NewVecDense(n, decoded.Lower),
		mat.NewVecDense(n, decoded.Upper),
		environment.Continuous,
	)
	pol, err := newSquashedGaussianMLP(decoded.Net, actionSpec, 0)
	if err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	if s.normal != nil {
		pol.normal = s.normal
	}
	pol.train = s.train || s.net == nil
	*s = *pol
	return nil
}
