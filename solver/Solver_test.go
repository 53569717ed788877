package solver

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"testing"

	"github.com/samuelfneumann/gosac/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
)

func TestSolverStepsParamsInPlace(t *testing.T) {
	p, err := network.NewParam("w", []float64{1, -1}, 2)
	require.NoError(t, err)
	view := p.Data()

	s, err := NewVanilla(0.5, 1, -1)
	require.NoError(t, err)

	p.GradData()[0] = 1
	p.GradData()[1] = -2
	require.NoError(t, s.Step([]G.ValueGrad{p}))

	assert.InDelta(t, 0.5, view[0], 1e-12)
	assert.InDelta(t, 0.0, view[1], 1e-12)
}

func TestAdamMovesAgainstGradient(t *testing.T) {
	p, err := network.NewParam("w", []float64{0}, 1)
	require.NoError(t, err)

	s, err := NewDefaultAdam(0.1, 1)
	require.NoError(t, err)

	p.GradData()[0] = 3
	require.NoError(t, s.Step([]G.ValueGrad{p}))
	assert.Less(t, p.Data()[0], 0.0)
}

func TestSolverJSONAndGob(t *testing.T) {
	s, err := NewAdam(3e-4, 1e-8, 0.9, 0.999, 1)
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var fromJSON Solver
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, Adam, fromJSON.Type)
	assert.Equal(t, s.Config, fromJSON.Config)
	assert.NotNil(t, fromJSON.Solver)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(s))
	var fromGob Solver
	require.NoError(t, gob.NewDecoder(&buf).Decode(&fromGob))
	assert.Equal(t, s.Config, fromGob.Config)
}

func TestInvalidSolvers(t *testing.T) {
	_, err := NewAdam(0, 1e-8, 0.9, 0.999, 1)
	assert.Error(t, err)

	_, err = NewRMSProp(0.1, 1e-8, 1.5, 1, -1)
	assert.Error(t, err)

	_, err = NewVanilla(-1, 1, -1)
	assert.Error(t, err)

	var s Solver
	assert.Error(t, json.Unmarshal([]byte(`{"Type": "LBFGS"}`), &s))
}

func TestNamed(t *testing.T) {
	for name, want := range map[string]Type{
		"adam":    Adam,
		"RMSProp": RMSProp,
		"sgd":     Vanilla,
	} {
		s, err := Named(name, 0.01)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Type)

		p, err := network.NewParam("w", []float64{0}, 1)
		require.NoError(t, err)
		p.GradData()[0] = 1
		require.NoError(t, s.Step([]G.ValueGrad{p}))
		assert.Less(t, p.Data()[0], 0.0, name)
	}

	_, err := Named("lbfgs", 0.01)
	assert.Error(t, err)
}
