package initwfn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsShape(t *testing.T) {
	init, err := NewGlorotU(1.0)
	require.NoError(t, err)

	w, err := init.Weights(3, 4)
	require.NoError(t, err)
	assert.Len(t, w, 12)

	_, err = init.Weights(0, 4)
	assert.Error(t, err)
}

func TestConstantWeights(t *testing.T) {
	zeroes, err := NewZeroes()
	require.NoError(t, err)
	w, err := zeroes.Weights(2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, w)

	ones, err := NewOnes()
	require.NoError(t, err)
	w, err = ones.Weights(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, w)
}

func TestJSONRoundTrip(t *testing.T) {
	init, err := NewUniform(-0.5, 0.5)
	require.NoError(t, err)

	data, err := json.Marshal(init)
	require.NoError(t, err)

	var decoded InitWFn
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Uniform, decoded.Type)
	assert.Equal(t, UniformConfig{Low: -0.5, High: 0.5}, decoded.Config)

	w, err := decoded.Weights(4, 4)
	require.NoError(t, err)
	for _, v := range w {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.LessOrEqual(t, v, 0.5)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	var decoded InitWFn
	err := json.Unmarshal([]byte(`{"Type": "Orthogonal", "Config": {}}`),
		&decoded)
	assert.Error(t, err)
}

func TestNamed(t *testing.T) {
	for name, want := range map[string]Type{
		"glorot_uniform": GlorotU,
		"Glorot_Normal":  GlorotN,
		"he_uniform":     HeU,
		"he_normal":      HeN,
		"zeroes":         Zeroes,
	} {
		init, err := Named(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, init.Type)

		w, err := init.Weights(2, 3)
		require.NoError(t, err)
		assert.Len(t, w, 6)
	}

	_, err := Named("orthogonal")
	assert.Error(t, err)
}

func TestInvalidConfigs(t *testing.T) {
	_, err := NewUniform(1, -1)
	assert.Error(t, err)
	_, err = NewGaussian(0, 0)
	assert.Error(t, err)
}
