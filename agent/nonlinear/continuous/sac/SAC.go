// Package sac implements the Soft Actor-Critic algorithm for
// continuous actions.
//
// SAC learns a stochastic policy (the actor) which maximizes both
// return and policy entropy, together with an ensemble of action-value
// functions (the critic). Experience is collected from a vectorized
// environment into a replay buffer. Each iteration of training first
// collects experience and then takes a number of gradient steps on
// batches sampled from the buffer:
//
//  1. The entropy coefficient α is read and, if learned, updated
//  2. The critic regresses each member towards the target
//     r + γ(1 - done)(min_k Q'_k(s', a') - α log π(a'|s')) where Q' is
//     the target critic and a' ~ π(·|s')
//  3. The actor minimizes α log π(a|s) - min_k Q_k(s, a) with a ~ π(·|s)
//     using the updated critic
//  4. The target critic is moved towards the critic by polyak averaging
//
// The trainer is single-threaded and synchronous.
package sac

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/gosac/agent"
	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/experiment/checkpointer"
	"github.com/samuelfneumann/gosac/experiment/tracker"
	"github.com/samuelfneumann/gosac/experiment/trackers"
	"github.com/samuelfneumann/gosac/expreplay"
	"github.com/samuelfneumann/gosac/network"
	"github.com/samuelfneumann/gosac/solver"
	"github.com/samuelfneumann/gosac/utils/floatutils"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	G "gorgonia.org/gorgonia"
)

// SAC implements the Soft Actor-Critic algorithm. A SAC agent must be
// Reset before it can Learn.
type SAC struct {
	env     environment.Environment
	cfg     Config
	factory Factory

	logger   *zap.Logger
	trackers []tracker.Tracker
	logFile  tracker.Tracker // Written when an output path is set
	sampler  agent.ActionSampler
	userSamp bool

	buffer       agent.ReplayBuffer
	actor        agent.Actor
	critic       agent.Critic
	criticTarget agent.Critic
	actorSolver  *solver.Solver
	criticSolver *solver.Solver
	entCoef      *EntropyCoefficient

	// targetEntropy is computed once in Reset
	targetEntropy float64

	observation *mat.Dense
	metrics     Metrics

	numIters   int
	timeSteps  int
	numUpdates int

	maxTimeSteps       int
	monitorInterval    int
	checkpointInterval int
	checkpointer       checkpointer.Checkpointer
	checkpointNames    func(timeSteps int) string
}

// Option configures optional collaborators of a SAC agent
type Option func(*SAC)

// WithLogger sets the logger of the agent. By default nothing is
// logged.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SAC) {
		s.logger = logger
	}
}

// WithTrackers adds sinks for the log stream of the agent
func WithTrackers(t ...tracker.Tracker) Option {
	return func(s *SAC) {
		s.trackers = append(s.trackers, t...)
	}
}

// WithCheckpointFilenames sets the function naming checkpoint files
// given the number of environment steps taken, e.g.
// checkpointer.FilenameEnumerator. By default checkpoints are named by
// checkpointer.FileTimer with the output path as prefix.
func WithCheckpointFilenames(filename func(timeSteps int) string) Option {
	return func(s *SAC) {
		s.checkpointNames = filename
	}
}

// WithSampler sets the sampler of exploratory actions taken before
// the first policy step. By default actions are sampled uniformly
// from the bounds of the action space.
func WithSampler(sampler agent.ActionSampler) Option {
	return func(s *SAC) {
		s.sampler = sampler
		s.userSamp = sampler != nil
	}
}

// New returns a new SAC agent on environment env. If factory is nil,
// an MLPFactory with default settings is used. The agent must be Reset
// before use.
func New(env environment.Environment, c Config, factory Factory,
	opts ...Option) (*SAC, error) {
	if env == nil {
		return nil, fmt.Errorf("new: %w: environment is nil",
			ErrInvalidConfig)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if env.NumEnvs() < 1 {
		return nil, fmt.Errorf("new: %w: environment has %v "+
			"sub-environments", ErrInvalidConfig, env.NumEnvs())
	}
	if env.ActionSpec().Cardinality != environment.Continuous {
		return nil, fmt.Errorf("new: %w: actions must be continuous",
			ErrInvalidConfig)
	}

	if factory == nil {
		var err error
		factory, err = NewMLPFactory()
		if err != nil {
			return nil, fmt.Errorf("new: %v", err)
		}
	}

	c.HiddenSizes = append([]int(nil), c.HiddenSizes...)
	if c.TargetEntropy != nil {
		target := *c.TargetEntropy
		c.TargetEntropy = &target
	}

	s := &SAC{
		env:     env,
		cfg:     c,
		factory: factory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Reset (re)creates the replay buffer, actor, critic, target critic,
// solvers, and entropy coefficient of the agent, zeroes its counters,
// writes the header of the log stream, and resets the environment.
func (s *SAC) Reset() error {
	s.numIters, s.timeSteps, s.numUpdates = 0, 0, 0
	s.metrics = newMetrics(registeredStats(s.cfg.AutoEntCoef))

	obsSpec, actionSpec := s.env.ObservationSpec(), s.env.ActionSpec()
	numEnvs := s.env.NumEnvs()
	seeds := NewSeeds(s.cfg.Seed)

	buffer, err := expreplay.Config{
		Capacity: s.cfg.BufferSize,
		Seed:     seeds.Buffer,
	}.Create(numEnvs, obsSpec.Shape.Len(), actionSpec.Dims())
	if err != nil {
		return fmt.Errorf("reset: could not create replay buffer: %w", err)
	}

	actor, err := s.factory.NewActor(obsSpec, actionSpec, s.cfg)
	if err != nil {
		return fmt.Errorf("reset: could not create actor: %w", err)
	}
	critic, err := s.factory.NewCritic(obsSpec, actionSpec, s.cfg)
	if err != nil {
		return fmt.Errorf("reset: could not create critic: %w", err)
	}
	criticTarget, err := s.factory.NewCritic(obsSpec, actionSpec, s.cfg)
	if err != nil {
		return fmt.Errorf("reset: could not create target critic: %w", err)
	}
	if err := network.Set(criticTarget.Parameters(),
		critic.Parameters()); err != nil {
		return fmt.Errorf("reset: could not copy critic to target: %w", err)
	}
	if err := network.Set(criticTarget.Buffers(), critic.Buffers()); err != nil {
		return fmt.Errorf("reset: could not copy critic buffers to "+
			"target: %w", err)
	}
	criticTarget.Eval()

	actorSolver, err := solver.Named(s.cfg.Optimizer, s.cfg.LR)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	criticSolver, err := solver.Named(s.cfg.Optimizer, s.cfg.LR)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	targetEntropy := -floatutils.Prod(actionSpec.Dims()...)
	if s.cfg.TargetEntropy != nil {
		targetEntropy = *s.cfg.TargetEntropy
	}
	var entCoef *EntropyCoefficient
	if s.cfg.AutoEntCoef {
		entCoef, err = NewAutoEntropyCoefficient(s.cfg.EntCoef, targetEntropy,
			s.cfg.LR)
	} else {
		entCoef, err = NewFixedEntropyCoefficient(s.cfg.EntCoef)
	}
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	if !s.userSamp {
		sampler, err := environment.NewUniformSampler(actionSpec, seeds.Sampler)
		if err != nil {
			return fmt.Errorf("reset: could not create action sampler: %w",
				err)
		}
		s.sampler = sampler
	}

	s.buffer = buffer
	s.actor = actor
	s.critic = critic
	s.criticTarget = criticTarget
	s.actorSolver = actorSolver
	s.criticSolver = criticSolver
	s.entCoef = entCoef
	s.targetEntropy = targetEntropy

	s.logFile = nil
	if s.cfg.OutputPath != "" {
		s.logFile = trackers.NewTSV(s.cfg.OutputPath + "_log.txt")
	}
	names := s.metrics.Names()
	for _, t := range s.allTrackers() {
		if err := t.Header(names); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	obs, err := s.env.Reset()
	if err != nil {
		return fmt.Errorf("reset: could not reset environment: %w", err)
	}
	s.observation = obs

	s.logger.Info("reset agent",
		zap.Int("num_envs", numEnvs),
		zap.Ints("action_shape", actionSpec.Dims()),
		zap.Bool("auto_ent_coef", s.cfg.AutoEntCoef),
		zap.Float64("target_entropy", s.targetEntropy),
	)
	return nil
}

// allTrackers returns the log file tracker, if any, followed by the
// user supplied trackers
func (s *SAC) allTrackers() []tracker.Tracker {
	if s.logFile == nil {
		return s.trackers
	}
	return append([]tracker.Tracker{s.logFile}, s.trackers...)
}

// Learn trains the agent until maxTimeSteps environment steps have
// been taken. The log stream is written every monitorInterval
// iterations and the agent is checkpointed every checkpointInterval
// iterations. An interval of 0 disables monitoring or checkpointing.
//
// Learn counts environment steps from zero on each call.
func (s *SAC) Learn(maxTimeSteps, monitorInterval,
	checkpointInterval int) error {
	return s.LearnContext(context.Background(), maxTimeSteps,
		monitorInterval, checkpointInterval)
}

// LearnContext is like Learn but stops between iterations once ctx is
// done, returning the context's error.
func (s *SAC) LearnContext(ctx context.Context, maxTimeSteps,
	monitorInterval, checkpointInterval int) error {
	if s.actor == nil {
		return fmt.Errorf("learn: agent must be reset before learning")
	}

	s.timeSteps = 0
	s.maxTimeSteps = maxTimeSteps
	s.monitorInterval = monitorInterval
	s.checkpointInterval = checkpointInterval
	filename := s.checkpointNames
	if filename == nil {
		filename = checkpointer.FileTimer(s.cfg.OutputPath, ".gob")
	}
	s.checkpointer = checkpointer.NewNStep(checkpointInterval, s, filename)

	s.logger.Info("learning started", zap.Int("max_time_steps", maxTimeSteps))
	for s.proceed() {
		if err := ctx.Err(); err != nil {
			s.logger.Info("learning interrupted",
				zap.Int("time_steps", s.timeSteps))
			return err
		}

		if err := s.CollectRollouts(); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		if err := s.Train(); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		if err := s.Monitor(); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		if err := s.Checkpoint(); err != nil {
			return fmt.Errorf("learn: %w", err)
		}
		s.Update()
	}
	s.logger.Info("learning finished",
		zap.Int("time_steps", s.timeSteps),
		zap.Int("num_updates", s.numUpdates),
	)
	return nil
}

// proceed returns whether the step budget allows another iteration
func (s *SAC) proceed() bool {
	return s.timeSteps < s.maxTimeSteps
}

// step steps the environment, stores the transition, and moves to the
// next observation
func (s *SAC) step(action *mat.Dense) error {
	nextObs, reward, done, err := s.env.Step(action)
	if err != nil {
		return fmt.Errorf("could not step environment: %w", err)
	}
	if err := s.buffer.Add(s.observation, action, nextObs, reward,
		done); err != nil {
		return fmt.Errorf("could not store transition: %w", err)
	}
	s.observation = nextObs
	return nil
}

// CollectRollouts collects experience into the replay buffer. On the
// first iteration, LearningStarts exploratory actions are taken first.
// Then TrainFreq actions are taken with the policy, each advancing the
// number of environment steps by the number of sub-environments.
// Exploratory actions do not count as environment steps.
func (s *SAC) CollectRollouts() error {
	s.actor.Eval()
	s.critic.Eval()

	if s.numIters == 0 {
		for i := 0; i < s.cfg.LearningStarts; i++ {
			action := s.sampler.Sample(s.env.NumEnvs())
			if err := s.step(action); err != nil {
				return fmt.Errorf("collectRollouts: %w", err)
			}
		}
	}

	for i := 0; i < s.cfg.TrainFreq; i++ {
		action, err := s.actor.PredictAction(s.observation)
		if err != nil {
			return fmt.Errorf("collectRollouts: %w", err)
		}
		if err := s.step(action); err != nil {
			return fmt.Errorf("collectRollouts: %w", err)
		}
		s.timeSteps += s.env.NumEnvs()
	}
	return nil
}

// Train takes GradientSteps gradient steps on the entropy coefficient,
// critic, and actor, and updates the target critic every
// TargetUpdateInterval gradient steps. The statistics of the log
// stream are averaged over the gradient steps.
func (s *SAC) Train() error {
	s.actor.Train()
	s.critic.Train()

	var entCoefSum, entCoefLossSum, actorLossSum, criticLossSum float64
	var qValueSum, rewardSum float64
	for step := 0; step < s.cfg.GradientSteps; step++ {
		batch, err := s.buffer.Sample(s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}

		actionsPi, logProb, actorBackward, err :=
			s.actor.PredictActionLogProb(batch.Observation)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}

		// The coefficient is read before its solver step and is a
		// constant in the critic and actor losses
		entCoef, entCoefLoss, err := s.entCoef.Step(logProb)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		entCoefSum += entCoef
		entCoefLossSum += entCoefLoss

		targetQ, err := s.targetQ(batch, entCoef)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}

		// Critic update
		currentQ, criticBackward, err := s.critic.Forward(batch.Observation,
			batch.Action)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		minQ, _ := minOverCritics(currentQ)
		qValueSum += stat.Mean(minQ, nil)
		rewardSum += stat.Mean(batch.Reward.RawVector().Data, nil)

		criticLoss, dQ := criticLoss(currentQ, targetQ)
		criticLossSum += criticLoss
		s.critic.ZeroGrad()
		if _, err := criticBackward(dQ); err != nil {
			return fmt.Errorf("train: critic backward: %w", err)
		}
		if err := s.criticSolver.Step(valueGrads(
			s.critic.Parameters())); err != nil {
			return fmt.Errorf("train: critic step: %w", err)
		}

		// Actor update with the updated critic
		qPi, qPiBackward, err := s.critic.Forward(batch.Observation, actionsPi)
		if err != nil {
			return fmt.Errorf("train: %w", err)
		}
		actorLoss, dLogProb, dQPi := actorLoss(qPi, logProb, entCoef)
		actorLossSum += actorLoss
		dAction, err := qPiBackward(dQPi)
		if err != nil {
			return fmt.Errorf("train: actor backward: %w", err)
		}
		s.actor.ZeroGrad()
		if err := actorBackward(dAction, dLogProb); err != nil {
			return fmt.Errorf("train: actor backward: %w", err)
		}
		if err := s.actorSolver.Step(valueGrads(
			s.actor.Parameters())); err != nil {
			return fmt.Errorf("train: actor step: %w", err)
		}

		if step%s.cfg.TargetUpdateInterval == 0 {
			if err := s.updateTarget(); err != nil {
				return fmt.Errorf("train: %w", err)
			}
		}
	}
	s.numUpdates += s.cfg.GradientSteps

	n := float64(s.cfg.GradientSteps)
	s.metrics.set(NumUpdates, float64(s.numUpdates))
	s.metrics.set(EntCoef, entCoefSum/n)
	s.metrics.set(ActorLoss, actorLossSum/n)
	s.metrics.set(CriticLoss, criticLossSum/n)
	s.metrics.set(QValue, qValueSum/n)
	s.metrics.set(Reward, rewardSum/n)
	s.metrics.set(EntCoefLoss, entCoefLossSum/n)
	return nil
}

// targetQ computes the regression targets of the critic
//
//	r + γ(1 - done)(min_k Q'_k(s', a') - α log π(a'|s'))
//
// with a' ~ π(·|s') sampled from the current actor. No gradients are
// computed.
func (s *SAC) targetQ(batch expreplay.Batch,
	entCoef float64) (*mat.VecDense, error) {
	nextActions, nextLogProb, _, err :=
		s.actor.PredictActionLogProb(batch.NextObservation)
	if err != nil {
		return nil, fmt.Errorf("targetQ: %w", err)
	}
	nextQ, _, err := s.criticTarget.Forward(batch.NextObservation,
		nextActions)
	if err != nil {
		return nil, fmt.Errorf("targetQ: %w", err)
	}
	minNextQ, _ := minOverCritics(nextQ)

	target := mat.NewVecDense(batch.Size(), nil)
	for i := range minNextQ {
		next := minNextQ[i] - entCoef*nextLogProb.AtVec(i)
		target.SetVec(i, batch.Reward.AtVec(i)+
			(1-batch.Done.AtVec(i))*s.cfg.Gamma*next)
	}
	return target, nil
}

// updateTarget moves the target critic's parameters towards the
// critic's with rate Tau and copies the critic's buffers
func (s *SAC) updateTarget() error {
	err := network.Polyak(s.criticTarget.Parameters(), s.critic.Parameters(),
		s.cfg.Tau)
	if err != nil {
		return fmt.Errorf("updateTarget: %w", err)
	}
	err = network.Polyak(s.criticTarget.Buffers(), s.critic.Buffers(), 1.0)
	if err != nil {
		return fmt.Errorf("updateTarget: %w", err)
	}
	return nil
}

// minOverCritics returns the element-wise minimum of the values of an
// ensemble and, for each element, the index of the first member
// attaining it
func minOverCritics(values []*mat.VecDense) ([]float64, []int) {
	n := values[0].Len()
	mins := make([]float64, n)
	argmins := make([]int, n)
	member := make([]float64, len(values))
	for i := 0; i < n; i++ {
		for k, v := range values {
			member[k] = v.AtVec(i)
		}
		mins[i], argmins[i] = floatutils.ArgMin(member)
	}
	return mins, argmins
}

// criticLoss returns the mean over members of the mean squared error
// between each member's values and target, together with the gradient
// of this loss with respect to each member's values
func criticLoss(values []*mat.VecDense, target *mat.VecDense) (float64,
	[]*mat.VecDense) {
	n, k := float64(target.Len()), float64(len(values))

	loss := 0.0
	grads := make([]*mat.VecDense, len(values))
	for m, v := range values {
		diff := mat.NewVecDense(v.Len(), nil)
		diff.SubVec(v, target)
		loss += mat.Dot(diff, diff) / n

		diff.ScaleVec(2/(n*k), diff)
		grads[m] = diff
	}
	return loss / k, grads
}

// actorLoss returns mean(α logProb - min_k Q_k) together with its
// gradient with respect to logProb and to each member's values. The
// gradient of the minimum flows only to the first minimizing member.
func actorLoss(values []*mat.VecDense, logProb *mat.VecDense,
	entCoef float64) (float64, *mat.VecDense, []*mat.VecDense) {
	mins, argmins := minOverCritics(values)
	n := float64(len(mins))

	loss := 0.0
	dLogProb := mat.NewVecDense(len(mins), nil)
	dQ := make([]*mat.VecDense, len(values))
	for i := range mins {
		loss += entCoef*logProb.AtVec(i) - mins[i]
		dLogProb.SetVec(i, entCoef/n)

		k := argmins[i]
		if dQ[k] == nil {
			dQ[k] = mat.NewVecDense(len(mins), nil)
		}
		dQ[k].SetVec(i, -1/n)
	}
	return loss / n, dLogProb, dQ
}

// valueGrads converts Params to Gorgonia ValueGrads for solvers
func valueGrads(params []*network.Param) []G.ValueGrad {
	vg := make([]G.ValueGrad, len(params))
	for i, p := range params {
		vg[i] = p
	}
	return vg
}

// Monitor hands the statistics of the most recent call to Train to
// every tracker, every monitorInterval iterations
func (s *SAC) Monitor() error {
	if s.monitorInterval <= 0 || s.numIters%s.monitorInterval != 0 {
		return nil
	}

	row := tracker.Row{
		TimeSteps: s.timeSteps,
		Names:     s.metrics.Names(),
		Values:    s.metrics.Values(),
	}
	for _, t := range s.allTrackers() {
		if err := t.Track(row); err != nil {
			return fmt.Errorf("monitor: %w", err)
		}
	}
	return nil
}

// Checkpoint saves the agent to
// <output path>_<date>_<time>_<time steps>.gob, or the file named by
// the function given to WithCheckpointFilenames, every
// checkpointInterval iterations. Nothing is saved if the output path is
// empty.
func (s *SAC) Checkpoint() error {
	if s.cfg.OutputPath == "" || s.checkpointer == nil {
		return nil
	}

	filename, err := s.checkpointer.Checkpoint(s.numIters, s.timeSteps)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	if filename != "" {
		s.logger.Info("saved checkpoint", zap.String("path", filename),
			zap.Int("time_steps", s.timeSteps))
	}
	return nil
}

// Update ends an iteration
func (s *SAC) Update() {
	s.numIters++
}

// Predict returns the actions of the actor for a batch of
// observations, see agent.Actor
func (s *SAC) Predict(obs *mat.Dense, deterministic bool, state []*mat.Dense,
	episodeStart *mat.VecDense) (*mat.Dense, []*mat.Dense, error) {
	if s.actor == nil {
		return nil, nil, fmt.Errorf("predict: agent must be reset before " +
			"predicting")
	}
	return s.actor.Predict(obs, deterministic, state, episodeStart)
}

// Config returns the configuration of the agent
func (s *SAC) Config() Config {
	c := s.cfg
	c.HiddenSizes = append([]int(nil), c.HiddenSizes...)
	if c.TargetEntropy != nil {
		target := *c.TargetEntropy
		c.TargetEntropy = &target
	}
	return c
}

// Buffer returns the replay buffer
func (s *SAC) Buffer() agent.ReplayBuffer { return s.buffer }

// Actor returns the actor
func (s *SAC) Actor() agent.Actor { return s.actor }

// Critic returns the critic
func (s *SAC) Critic() agent.Critic { return s.critic }

// CriticTarget returns the target critic
func (s *SAC) CriticTarget() agent.Critic { return s.criticTarget }

// ActorSolver returns the solver of the actor
func (s *SAC) ActorSolver() *solver.Solver { return s.actorSolver }

// CriticSolver returns the solver of the critic
func (s *SAC) CriticSolver() *solver.Solver { return s.criticSolver }

// EntropyCoefficient returns the entropy coefficient controller
func (s *SAC) EntropyCoefficient() *EntropyCoefficient { return s.entCoef }

// TargetEntropy returns the target entropy
func (s *SAC) TargetEntropy() float64 { return s.targetEntropy }

// Metrics returns the statistics of the most recent call to Train
func (s *SAC) Metrics() Metrics { return s.metrics }

// NumIters returns the number of completed iterations
func (s *SAC) NumIters() int { return s.numIters }

// TimeSteps returns the number of policy environment steps taken
func (s *SAC) TimeSteps() int { return s.timeSteps }

// NumUpdates returns the number of gradient steps taken
func (s *SAC) NumUpdates() int { return s.numUpdates }

// Observation returns the current observation of the environment
func (s *SAC) Observation() *mat.Dense { return s.observation }
