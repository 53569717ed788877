package experiment

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/experiment/trackers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// countingEnv gives a reward equal to the action and ends every
// episode after episodeLength steps
type countingEnv struct {
	numEnvs       int
	episodeLength int
	steps         int
}

func (c *countingEnv) NumEnvs() int { return c.numEnvs }

func (c *countingEnv) Reset() (*mat.Dense, error) {
	c.steps = 0
	return mat.NewDense(c.numEnvs, 1, nil), nil
}

func (c *countingEnv) Step(actions *mat.Dense) (*mat.Dense, *mat.VecDense,
	*mat.VecDense, error) {
	c.steps++
	reward := mat.NewVecDense(c.numEnvs, nil)
	done := mat.NewVecDense(c.numEnvs, nil)
	for i := 0; i < c.numEnvs; i++ {
		reward.SetVec(i, actions.At(i, 0))
		if c.steps%c.episodeLength == 0 {
			done.SetVec(i, 1)
		}
	}
	return mat.NewDense(c.numEnvs, 1, nil), reward, done, nil
}

func (c *countingEnv) ObservationSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil),
		environment.Observation, mat.NewVecDense(1, []float64{0}),
		mat.NewVecDense(1, []float64{0}), environment.Continuous)
}

func (c *countingEnv) ActionSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Action,
		mat.NewVecDense(1, []float64{-1}), mat.NewVecDense(1, []float64{1}),
		environment.Continuous)
}

// constPredictor always predicts the same action and records the
// arguments it is called with
type constPredictor struct {
	action        float64
	deterministic []bool
	episodeStarts [][]float64
}

func (c *constPredictor) Predict(obs *mat.Dense, deterministic bool,
	state []*mat.Dense, episodeStart *mat.VecDense) (*mat.Dense, []*mat.Dense,
	error) {
	c.deterministic = append(c.deterministic, deterministic)
	c.episodeStarts = append(c.episodeStarts,
		append([]float64(nil), episodeStart.RawVector().Data...))

	r, _ := obs.Dims()
	actions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		actions.Set(i, 0, c.action)
	}
	return actions, state, nil
}

func TestEvaluation(t *testing.T) {
	env := &countingEnv{numEnvs: 2, episodeLength: 3}
	predictor := &constPredictor{action: 0.5}

	dir := t.TempDir()
	ret := trackers.NewReturn(2, filepath.Join(dir, "return.bin"))
	length := trackers.NewEpisodeLength(2, filepath.Join(dir, "length.bin"))

	e := NewEvaluation(env, predictor, 12, true, ret)
	e.Register(length)
	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 12, e.Steps())
	assert.Equal(t, []float64{1.5, 1.5, 1.5, 1.5}, ret.Data())
	assert.Equal(t, []int{3, 3, 3, 3}, length.Data())

	require.Len(t, predictor.deterministic, 6)
	for _, d := range predictor.deterministic {
		assert.True(t, d)
	}
	assert.Equal(t, []float64{1, 1}, predictor.episodeStarts[0])
	assert.Equal(t, []float64{0, 0}, predictor.episodeStarts[1])
	assert.Equal(t, []float64{1, 1}, predictor.episodeStarts[3])

	require.NoError(t, e.Save())
	var saved []float64
	require.NoError(t, trackers.Load(filepath.Join(dir, "return.bin"), &saved))
	assert.Equal(t, ret.Data(), saved)
}

func TestEvaluationCancelled(t *testing.T) {
	env := &countingEnv{numEnvs: 1, episodeLength: 3}
	e := NewEvaluation(env, &constPredictor{}, 10, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Run(ctx), context.Canceled)
	assert.Equal(t, 0, e.Steps())
}
