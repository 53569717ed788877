package sac

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samuelfneumann/gosac/agent"
	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/experiment/checkpointer"
	"github.com/samuelfneumann/gosac/experiment/tracker"
	"github.com/samuelfneumann/gosac/expreplay"
	"github.com/samuelfneumann/gosac/network"
	"github.com/samuelfneumann/gosac/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// constEnv is a vectorized environment with one-dimensional
// observations and actions in [-1, 1] whose reward is always 1. It
// never ends an episode.
type constEnv struct {
	numEnvs int
	steps   int
}

func (c *constEnv) NumEnvs() int { return c.numEnvs }

func (c *constEnv) Reset() (*mat.Dense, error) {
	return mat.NewDense(c.numEnvs, 1, nil), nil
}

func (c *constEnv) Step(actions *mat.Dense) (*mat.Dense, *mat.VecDense,
	*mat.VecDense, error) {
	c.steps++
	obs := mat.NewDense(c.numEnvs, 1, nil)
	reward := mat.NewVecDense(c.numEnvs, nil)
	for i := 0; i < c.numEnvs; i++ {
		obs.Set(i, 0, actions.At(i, 0))
		reward.SetVec(i, 1)
	}
	return obs, reward, mat.NewVecDense(c.numEnvs, nil), nil
}

func (c *constEnv) ObservationSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil),
		environment.Observation, mat.NewVecDense(1, []float64{-1}),
		mat.NewVecDense(1, []float64{1}), environment.Continuous)
}

func (c *constEnv) ActionSpec() environment.Spec {
	return environment.NewSpec(mat.NewVecDense(1, nil), environment.Action,
		mat.NewVecDense(1, []float64{-1}), mat.NewVecDense(1, []float64{1}),
		environment.Continuous)
}

// testConfig returns a small configuration
func testConfig() Config {
	c := DefaultConfig()
	c.LearningStarts = 10
	c.BatchSize = 4
	c.BufferSize = 100
	c.HiddenSizes = []int{8}
	c.Seed = 1
	return c
}

// newAgent returns a new, reset agent on a constEnv
func newAgent(t *testing.T, numEnvs int, c Config, opts ...Option) *SAC {
	t.Helper()
	s, err := New(&constEnv{numEnvs: numEnvs}, c, nil, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Reset())
	return s
}

// paramData returns copies of the data of params
func paramData(params []*network.Param) [][]float64 {
	data := make([][]float64, len(params))
	for i, p := range params {
		data[i] = append([]float64(nil), p.Data()...)
	}
	return data
}

func TestLearnSingleIteration(t *testing.T) {
	c := testConfig()
	c.Tau = 1

	s := newAgent(t, 1, c)
	require.NoError(t, s.Learn(1, 1, 0))

	assert.Equal(t, 11, s.Buffer().Len())
	assert.Equal(t, 1, s.NumUpdates())
	assert.Equal(t, 1, s.TimeSteps())
	assert.Equal(t, 1, s.NumIters())

	numUpdates, ok := s.Metrics().Get(NumUpdates)
	require.True(t, ok)
	assert.Equal(t, 1.0, numUpdates)

	assert.Equal(t, paramData(s.Critic().Parameters()),
		paramData(s.CriticTarget().Parameters()),
		"target critic should equal critic with tau = 1")
}

func TestTimeStepsLaw(t *testing.T) {
	c := testConfig()
	c.TrainFreq = 3
	c.GradientSteps = 2

	s := newAgent(t, 2, c)
	require.NoError(t, s.Learn(10, 0, 0))

	// Each iteration takes TrainFreq steps on each of the 2
	// environments, so 2 iterations are needed to take 10 steps
	assert.Equal(t, 2, s.NumIters())
	assert.Equal(t, 12, s.TimeSteps())
	assert.Equal(t, 4, s.NumUpdates())
	assert.Equal(t, c.LearningStarts+2*c.TrainFreq, s.Buffer().Len())

	// Learn counts environment steps from zero
	require.NoError(t, s.Learn(6, 0, 0))
	assert.Equal(t, 3, s.NumIters())
	assert.Equal(t, 6, s.TimeSteps())
	assert.Equal(t, 6, s.NumUpdates())
}

func TestTargetCritic(t *testing.T) {
	c := testConfig()
	c.Tau = 0
	s := newAgent(t, 1, c)

	initial := paramData(s.Critic().Parameters())
	assert.Equal(t, initial, paramData(s.CriticTarget().Parameters()),
		"target critic should equal critic after reset")
	assert.True(t, s.CriticTarget().IsEval())

	require.NoError(t, s.Learn(3, 0, 0))
	assert.Equal(t, initial, paramData(s.CriticTarget().Parameters()),
		"target critic should not move with tau = 0")
	assert.NotEqual(t, initial, paramData(s.Critic().Parameters()))
}

func TestTargetQDone(t *testing.T) {
	s := newAgent(t, 1, testConfig())

	batch := expreplay.Batch{
		Observation:     mat.NewDense(3, 1, []float64{0, 0.5, -0.5}),
		Action:          mat.NewDense(3, 1, []float64{0.1, 0.2, 0.3}),
		NextObservation: mat.NewDense(3, 1, []float64{0.3, 0.2, 0.1}),
		Reward:          mat.NewVecDense(3, []float64{1, -2, 0.5}),
		Done:            mat.NewVecDense(3, []float64{1, 1, 1}),
	}
	target, err := s.targetQ(batch, 0.7)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 0.5}, target.RawVector().Data)
}

func TestRegisteredStats(t *testing.T) {
	auto := newAgent(t, 1, testConfig())
	assert.Equal(t, []string{"num_updates", "ent_coef", "actor_loss",
		"critic_loss", "q_value", "reward", "ent_coef_loss"},
		auto.Metrics().Names())

	c := testConfig()
	c.AutoEntCoef = false
	c.EntCoef = 0.2
	fixed := newAgent(t, 1, c)
	assert.False(t, fixed.Metrics().Has(EntCoefLoss))
	assert.Len(t, fixed.Metrics().Names(), 6)

	require.NoError(t, fixed.Learn(1, 0, 0))
	entCoef, ok := fixed.Metrics().Get(EntCoef)
	require.True(t, ok)
	assert.Equal(t, 0.2, entCoef)
}

func TestTargetEntropyDefault(t *testing.T) {
	s := newAgent(t, 1, testConfig())
	assert.Equal(t, -1.0, s.TargetEntropy())
	assert.Equal(t, -1.0, s.EntropyCoefficient().TargetEntropy())

	c := testConfig()
	target := -3.5
	c.TargetEntropy = &target
	s = newAgent(t, 1, c)
	assert.Equal(t, -3.5, s.TargetEntropy())
}

func TestNotReset(t *testing.T) {
	s, err := New(&constEnv{numEnvs: 1}, testConfig(), nil)
	require.NoError(t, err)

	assert.Error(t, s.Learn(1, 0, 0))
	_, _, err = s.Predict(mat.NewDense(1, 1, nil), true, nil, nil)
	assert.Error(t, err)
}

func TestNewInvalid(t *testing.T) {
	c := testConfig()
	c.BatchSize = 0
	_, err := New(&constEnv{numEnvs: 1}, c, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(nil, testConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&constEnv{numEnvs: 0}, testConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLearnContextCancelled(t *testing.T) {
	s := newAgent(t, 1, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.LearnContext(ctx, 10, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.NumIters())
}

func TestPredict(t *testing.T) {
	s := newAgent(t, 3, testConfig())

	obs := mat.NewDense(3, 1, []float64{-0.5, 0, 0.5})
	actions, state, err := s.Predict(obs, true, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, state)

	r, c := actions.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 1, c)
	for i := 0; i < r; i++ {
		assert.LessOrEqual(t, actions.At(i, 0), 1.0)
		assert.GreaterOrEqual(t, actions.At(i, 0), -1.0)
	}

	again, _, err := s.Predict(obs, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, actions.RawMatrix().Data, again.RawMatrix().Data,
		"deterministic predictions should be repeatable")
}

// recorder records the log stream of an agent
type recorder struct {
	names []string
	rows  []tracker.Row
}

func (r *recorder) Header(names []string) error {
	r.names = names
	return nil
}

func (r *recorder) Track(row tracker.Row) error {
	r.rows = append(r.rows, row)
	return nil
}

func TestMonitor(t *testing.T) {
	rec := &recorder{}
	s := newAgent(t, 1, testConfig(), WithTrackers(rec))
	assert.Equal(t, s.Metrics().Names(), rec.names)

	require.NoError(t, s.Learn(5, 2, 0))
	require.Len(t, rec.rows, 3, "rows should be written on iterations 0, 2, "+
		"and 4")
	for i, row := range rec.rows {
		assert.Equal(t, 2*i+1, row.TimeSteps)
		n, ok := row.Value("num_updates")
		require.True(t, ok)
		assert.Equal(t, float64(2*i+1), n)

		reward, ok := row.Value("reward")
		require.True(t, ok)
		assert.Equal(t, 1.0, reward)
	}
}

func TestOutputFiles(t *testing.T) {
	c := testConfig()
	c.OutputPath = filepath.Join(t.TempDir(), "run")
	s := newAgent(t, 1, c)

	log, err := os.ReadFile(c.OutputPath + "_log.txt")
	require.NoError(t, err)
	assert.Equal(t, "time_steps\tnum_updates\tent_coef\tactor_loss\t"+
		"critic_loss\tq_value\treward\tent_coef_loss\n", string(log))

	require.NoError(t, s.Learn(3, 1, 2))

	log, err = os.ReadFile(c.OutputPath + "_log.txt")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(log)), "\n")
	require.Len(t, lines, 4)
	for i, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		assert.Len(t, fields, 8)
		assert.Equal(t, []string{"1", "2", "3"}[i], fields[0])
	}

	// Checkpoints on iterations 0 and 2
	matches, err := filepath.Glob(c.OutputPath + "_*.gob")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	var suffixes []string
	for _, m := range matches {
		suffixes = append(suffixes, m[strings.LastIndex(m, "_"):])
	}
	assert.ElementsMatch(t, []string{"_1.gob", "_3.gob"}, suffixes)

	loaded := newAgent(t, 1, testConfig())
	require.NoError(t, loaded.Load(matches[0]))

	// Resetting truncates the log file
	require.NoError(t, s.Reset())
	log, err = os.ReadFile(c.OutputPath + "_log.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(log), "\n"))
}

func TestCheckpointFilenames(t *testing.T) {
	c := testConfig()
	c.OutputPath = filepath.Join(t.TempDir(), "run")
	s := newAgent(t, 1, c, WithCheckpointFilenames(
		checkpointer.FilenameEnumerator(0, c.OutputPath+"_", ".gob")))

	require.NoError(t, s.Learn(5, 0, 2))
	for _, name := range []string{"_1.gob", "_2.gob", "_3.gob"} {
		assert.FileExists(t, c.OutputPath+name)
	}
	assert.NoFileExists(t, c.OutputPath+"_4.gob")
}

// sampler always samples the same action
type sampler struct {
	action float64
	calls  int
}

func (s *sampler) Sample(numEnvs int) *mat.Dense {
	s.calls++
	actions := mat.NewDense(numEnvs, 1, nil)
	for i := 0; i < numEnvs; i++ {
		actions.Set(i, 0, s.action)
	}
	return actions
}

var _ agent.ActionSampler = &sampler{}

func TestWithSampler(t *testing.T) {
	samp := &sampler{action: 0.25}
	s := newAgent(t, 2, testConfig(), WithSampler(samp))

	require.NoError(t, s.CollectRollouts())
	assert.Equal(t, testConfig().LearningStarts, samp.calls)
	assert.Equal(t, 2, s.TimeSteps())
	assert.Equal(t, testConfig().LearningStarts+1, s.Buffer().Len())

	// Exploratory actions are only taken on the first iteration
	s.Update()
	require.NoError(t, s.CollectRollouts())
	assert.Equal(t, testConfig().LearningStarts, samp.calls)
}

func TestOptimizer(t *testing.T) {
	c := testConfig()
	c.Optimizer = "rmsprop"
	s := newAgent(t, 1, c)
	assert.Equal(t, solver.RMSProp, s.ActorSolver().Type)
	assert.Equal(t, solver.RMSProp, s.CriticSolver().Type)
	assert.Equal(t, solver.Adam, s.EntropyCoefficient().Solver().Type)

	require.NoError(t, s.Learn(2, 0, 0))
	assert.Equal(t, 2, s.NumUpdates())
}
