package critic

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newTestEnsemble(t *testing.T, normalize bool) *EnsembleMLP {
	init, err := initwfn.NewGlorotU(1.0)
	require.NoError(t, err)

	e, err := NewEnsembleMLP(3, 2, 2, []int{6}, []bool{true},
		[]*network.Activation{network.TanH()}, init, normalize)
	require.NoError(t, err)
	return e
}

func testBatch() (*mat.Dense, *mat.Dense) {
	obs := mat.NewDense(3, 3, []float64{
		0.2, -0.1, 0.5,
		1.0, 0.3, -0.8,
		-0.4, 0.6, 0.1,
	})
	action := mat.NewDense(3, 2, []float64{0.5, -1, 1.5, 0.2, -0.3, 0.9})
	return obs, action
}

// weightedSum computes sum_k c_k · Q_k(obs, action)
func weightedSum(t *testing.T, e *EnsembleMLP, obs, action *mat.Dense,
	c []*mat.VecDense) float64 {
	values, _, err := e.Forward(obs, action)
	require.NoError(t, err)

	total := 0.0
	for k := range values {
		if c[k] != nil {
			total += mat.Dot(values[k], c[k])
		}
	}
	return total
}

func TestEnsembleGradients(t *testing.T) {
	e := newTestEnsemble(t, false)
	obs, action := testBatch()
	c := []*mat.VecDense{
		mat.NewVecDense(3, []float64{1, -0.5, 2}),
		nil,
	}

	_, backward, err := e.Forward(obs, action)
	require.NoError(t, err)
	e.ZeroGrad()
	dAction, err := backward(c)
	require.NoError(t, err)

	const h = 1e-6
	for k, m := range e.Members() {
		for _, p := range m.Parameters() {
			for i := range p.Data() {
				orig := p.Data()[i]
				p.Data()[i] = orig + h
				up := weightedSum(t, e, obs, action, c)
				p.Data()[i] = orig - h
				down := weightedSum(t, e, obs, action, c)
				p.Data()[i] = orig

				assert.InDelta(t, (up-down)/(2*h), p.GradData()[i], 1e-5,
					"critic %v gradient of %v[%v]", k, p.Name(), i)
			}
		}
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			orig := action.At(i, j)
			action.Set(i, j, orig+h)
			up := weightedSum(t, e, obs, action, c)
			action.Set(i, j, orig-h)
			down := weightedSum(t, e, obs, action, c)
			action.Set(i, j, orig)

			assert.InDelta(t, (up-down)/(2*h), dAction.At(i, j), 1e-5,
				"action gradient (%v, %v)", i, j)
		}
	}

	// Members without a loss receive no gradient
	for _, p := range e.Members()[1].Parameters() {
		assert.Equal(t, 0.0, mat.Sum(mat.NewVecDense(p.Len(), p.GradData())))
	}
}

func TestEnsembleRequiresTwoCritics(t *testing.T) {
	init, err := initwfn.NewGlorotU(1.0)
	require.NoError(t, err)

	_, err = NewEnsembleMLP(3, 1, 1, []int{4}, []bool{true},
		[]*network.Activation{network.ReLU()}, init, false)
	assert.Error(t, err)
}

func TestEnsembleForwardShapes(t *testing.T) {
	e := newTestEnsemble(t, false)
	obs, action := testBatch()

	values, _, err := e.Forward(obs, action)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, 3, values[0].Len())

	_, _, err = e.Forward(obs, mat.NewDense(3, 1, nil))
	assert.Error(t, err)
	_, _, err = e.Forward(mat.NewDense(3, 2, nil), action)
	assert.Error(t, err)
}

func TestEnsembleNormalizerMode(t *testing.T) {
	e := newTestEnsemble(t, true)
	require.Len(t, e.Buffers(), 2)
	obs, action := testBatch()

	e.Eval()
	_, _, err := e.Forward(obs, action)
	require.NoError(t, err)
	assert.Equal(t, 0.0, floatsSum(e.Buffers()[0].Data()))

	e.Train()
	_, _, err = e.Forward(obs, action)
	require.NoError(t, err)
	assert.NotEqual(t, 0.0, floatsSum(e.Buffers()[0].Data()))

	assert.Nil(t, newTestEnsemble(t, false).Buffers())
}

func TestEnsembleGob(t *testing.T) {
	e := newTestEnsemble(t, true)
	obs, action := testBatch()
	_, _, err := e.Forward(obs, action)
	require.NoError(t, err)
	e.Eval()

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(e))

	var decoded EnsembleMLP
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))
	decoded.Eval()

	want, _, err := e.Forward(obs, action)
	require.NoError(t, err)
	got, _, err := decoded.Forward(obs, action)
	require.NoError(t, err)
	for k := range want {
		assert.True(t, mat.Equal(want[k], got[k]))
	}
}

func floatsSum(x []float64) float64 {
	total := 0.0
	for _, v := range x {
		total += v
	}
	return total
}
