package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgMinTies(t *testing.T) {
	min, index := ArgMin([]float64{3, 1, 1, 2})
	assert.Equal(t, 1.0, min)
	assert.Equal(t, 1, index, "ties should go to the lowest index")

	assert.Equal(t, -4.0, Min(0, -4, 2))
	assert.Equal(t, 2.0, Max(0, -4, 2))
}

func TestSoftplus(t *testing.T) {
	assert.InDelta(t, math.Log(2), Softplus(0), 1e-12)
	assert.Equal(t, 100.0, Softplus(100))
	assert.InDelta(t, 0, Softplus(-100), 1e-40)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 2.0, Clip(5, -2, 2))
	assert.Equal(t, -2.0, Clip(-5, -2, 2))
	assert.Equal(t, 0.5, Clip(0.5, -2, 2))
	assert.Equal(t, 6.0, Prod(2, 3))
	assert.Equal(t, []float64{1, 1}, Ones(2))
}
