package timestep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewTransition(t *testing.T) {
	obs := mat.NewDense(2, 3, nil)
	act := mat.NewDense(2, 1, nil)
	next := mat.NewDense(2, 3, nil)
	reward := mat.NewVecDense(2, []float64{1, 2})
	done := mat.NewVecDense(2, []float64{0, 1})

	tr, err := NewTransition(obs, act, next, reward, done)
	require.NoError(t, err)
	assert.Equal(t, 2, tr.BatchSize())

	_, err = NewTransition(obs, act, mat.NewDense(2, 2, nil), reward, done)
	assert.Error(t, err, "mismatched next observation width")

	_, err = NewTransition(obs, mat.NewDense(3, 1, nil), next, reward, done)
	assert.Error(t, err, "mismatched action batch")

	_, err = NewTransition(obs, act, next, reward,
		mat.NewVecDense(2, []float64{0, 0.5}))
	assert.Error(t, err, "non-binary done flag")

	_, err = NewTransition(obs, act, next, nil, done)
	assert.Error(t, err)
}

func TestTimeStepNext(t *testing.T) {
	step := New(First, 0, 0)
	step = step.Next(1.5)
	assert.True(t, step.Mid())
	assert.Equal(t, 1, step.Number)
	assert.Equal(t, 1.5, step.Reward)

	step.StepType = Last
	step = step.Next(3)
	assert.True(t, step.First())
	assert.Equal(t, 0, step.Number)
}
