package sac

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/samuelfneumann/gosac/agent"
	"github.com/samuelfneumann/gosac/network"
	"github.com/samuelfneumann/gosac/solver"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Names of the sections of an archive
const (
	All              = "all" // Selects every section
	ActorSection     = "actor"
	CriticSection    = "critic"
	TargetSection    = "critic_target"
	ActorOptSection  = "actor_optimizer"
	CriticOptSection = "critic_optimizer"
	EntOptSection    = "ent_coef_optimizer"
	HParamsSection   = "hparams"
)

// hparams is the hparams section of an archive
type hparams struct {
	LearningStarts       int      `yaml:"learning_starts"`
	BatchSize            int      `yaml:"batch_size"`
	LR                   float64  `yaml:"lr"`
	Tau                  float64  `yaml:"tau"`
	Gamma                float64  `yaml:"gamma"`
	EntCoef              float64  `yaml:"ent_coef"`
	TargetEntropy        float64  `yaml:"target_entropy"`
	AutoEntCoef          bool     `yaml:"auto_ent_coef"`
	TrainFreq            int      `yaml:"train_freq"`
	GradientSteps        int      `yaml:"gradient_steps"`
	TargetUpdateInterval int      `yaml:"target_update_interval"`
	LogEntCoef           *float64 `yaml:"log_ent_coef,omitempty"`
	EntCoefTensor        *float64 `yaml:"ent_coef_tensor,omitempty"`
}

// hparams returns the hparams section of the agent
func (s *SAC) hparams() hparams {
	h := hparams{
		LearningStarts:       s.cfg.LearningStarts,
		BatchSize:            s.cfg.BatchSize,
		LR:                   s.cfg.LR,
		Tau:                  s.cfg.Tau,
		Gamma:                s.cfg.Gamma,
		EntCoef:              s.cfg.EntCoef,
		TargetEntropy:        s.targetEntropy,
		AutoEntCoef:          s.cfg.AutoEntCoef,
		TrainFreq:            s.cfg.TrainFreq,
		GradientSteps:        s.cfg.GradientSteps,
		TargetUpdateInterval: s.cfg.TargetUpdateInterval,
	}
	if logValue, ok := s.entCoef.LogValue(); ok {
		h.LogEntCoef = &logValue
	} else {
		value := s.entCoef.Value()
		h.EntCoefTensor = &value
	}
	return h
}

// selector returns a function reporting whether a section is selected
// by names. No names selects every section.
func selector(names []string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return func(section string) bool {
		return len(names) == 0 || set[All] || set[section]
	}
}

// Save saves the selected sections of the agent to a new file at path.
// If no names are given, every section is saved. See SaveArchive.
func (s *SAC) Save(path string, names ...string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := s.SaveArchive(file, names...); err != nil {
		file.Close()
		return fmt.Errorf("save: %w", err)
	}
	return file.Close()
}

// SaveArchive writes the selected sections of the agent to w as a gob
// encoded map from section name to section data. The sections are
// actor, critic, critic_target, actor_optimizer, critic_optimizer,
// ent_coef_optimizer (learned entropy coefficient only), and hparams
// (YAML). The name "all" selects every section.
//
// Optimizer sections hold the configuration of a solver only. Solvers
// restored from an archive start with fresh running statistics.
func (s *SAC) SaveArchive(w io.Writer, names ...string) error {
	if s.actor == nil {
		return fmt.Errorf("saveArchive: agent must be reset before saving")
	}
	want := selector(names)

	sections := []struct {
		name   string
		object interface{}
	}{
		{ActorSection, s.actor},
		{CriticSection, s.critic},
		{TargetSection, s.criticTarget},
		{ActorOptSection, s.actorSolver},
		{CriticOptSection, s.criticSolver},
	}
	if s.entCoef.Auto() {
		sections = append(sections, struct {
			name   string
			object interface{}
		}{EntOptSection, s.entCoef.Solver()})
	}

	archive := make(map[string][]byte)
	for _, section := range sections {
		if !want(section.name) {
			continue
		}
		encoder, ok := section.object.(gob.GobEncoder)
		if !ok {
			return fmt.Errorf("saveArchive: %v of type %T cannot be "+
				"encoded", section.name, section.object)
		}
		data, err := encoder.GobEncode()
		if err != nil {
			return fmt.Errorf("saveArchive: %v: %w", section.name, err)
		}
		archive[section.name] = data
	}

	if want(HParamsSection) {
		data, err := yaml.Marshal(s.hparams())
		if err != nil {
			return fmt.Errorf("saveArchive: hparams: %w", err)
		}
		archive[HParamsSection] = data
	}

	if err := gob.NewEncoder(w).Encode(archive); err != nil {
		return fmt.Errorf("saveArchive: %w", err)
	}
	return nil
}

// Load loads the selected sections of the agent from the file at
// path. If no names are given, every section is loaded. See
// LoadArchive.
func (s *SAC) Load(path string, names ...string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer file.Close()

	if err := s.LoadArchive(file, names...); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// staged holds the decoded sections of an archive before they are
// committed to the agent
type staged struct {
	actor        agent.Actor
	critic       agent.Critic
	criticTarget agent.Critic
	actorSolver  *solver.Solver
	criticSolver *solver.Solver
	entSolver    *solver.Solver
	hparams      *hparams
	entCoef      *EntropyCoefficient
}

// LoadArchive reads an archive written by SaveArchive from r and loads
// its selected sections into the agent. Selected sections missing from
// the archive are skipped. The ent_coef_optimizer section is only
// loaded if the entropy coefficient is learned.
//
// Every selected section is decoded before any of them is loaded, so a
// corrupt archive returns an error and leaves the agent unchanged. The
// same holds for an actor or critic whose architecture differs from
// the agent's.
func (s *SAC) LoadArchive(r io.Reader, names ...string) error {
	if s.actor == nil {
		return fmt.Errorf("loadArchive: agent must be reset before loading")
	}
	want := selector(names)

	var archive map[string][]byte
	if err := gob.NewDecoder(r).Decode(&archive); err != nil {
		return fmt.Errorf("loadArchive: corrupt archive: %w", err)
	}
	section := func(name string) ([]byte, bool) {
		if !want(name) {
			return nil, false
		}
		data, ok := archive[name]
		return data, ok
	}

	var st staged
	var err error
	obsSpec, actionSpec := s.env.ObservationSpec(), s.env.ActionSpec()

	if data, ok := section(ActorSection); ok {
		if st.actor, err = s.factory.NewActor(obsSpec, actionSpec,
			s.cfg); err != nil {
			return fmt.Errorf("loadArchive: %w", err)
		}
		if err := decode(st.actor, data); err != nil {
			return fmt.Errorf("loadArchive: actor: %w", err)
		}
		if err := compatible(s.actor, st.actor); err != nil {
			return fmt.Errorf("loadArchive: actor: %w", err)
		}
	}
	if data, ok := section(CriticSection); ok {
		if st.critic, err = s.factory.NewCritic(obsSpec, actionSpec,
			s.cfg); err != nil {
			return fmt.Errorf("loadArchive: %w", err)
		}
		if err := decode(st.critic, data); err != nil {
			return fmt.Errorf("loadArchive: critic: %w", err)
		}
		if err := compatible(s.critic, st.critic); err != nil {
			return fmt.Errorf("loadArchive: critic: %w", err)
		}
	}
	if data, ok := section(TargetSection); ok {
		if st.criticTarget, err = s.factory.NewCritic(obsSpec, actionSpec,
			s.cfg); err != nil {
			return fmt.Errorf("loadArchive: %w", err)
		}
		if err := decode(st.criticTarget, data); err != nil {
			return fmt.Errorf("loadArchive: critic_target: %w", err)
		}
		if err := compatible(s.criticTarget, st.criticTarget); err != nil {
			return fmt.Errorf("loadArchive: critic_target: %w", err)
		}
	}
	if data, ok := section(ActorOptSection); ok {
		st.actorSolver = &solver.Solver{}
		if err := decode(st.actorSolver, data); err != nil {
			return fmt.Errorf("loadArchive: actor_optimizer: %w", err)
		}
	}
	if data, ok := section(CriticOptSection); ok {
		st.criticSolver = &solver.Solver{}
		if err := decode(st.criticSolver, data); err != nil {
			return fmt.Errorf("loadArchive: critic_optimizer: %w", err)
		}
	}
	if data, ok := section(HParamsSection); ok {
		if err := s.stageHParams(&st, data); err != nil {
			return fmt.Errorf("loadArchive: hparams: %w", err)
		}
	}

	auto := s.cfg.AutoEntCoef
	if st.hparams != nil {
		auto = st.hparams.AutoEntCoef
	}
	if data, ok := section(EntOptSection); ok && auto {
		st.entSolver = &solver.Solver{}
		if err := decode(st.entSolver, data); err != nil {
			return fmt.Errorf("loadArchive: ent_coef_optimizer: %w", err)
		}
	}

	s.commit(st)
	return nil
}

// stageHParams decodes and validates the hparams section and builds
// the entropy coefficient it describes
func (s *SAC) stageHParams(st *staged, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var h hparams
	if err := dec.Decode(&h); err != nil {
		return err
	}

	c := s.cfg.withHParams(h)
	if err := c.Validate(); err != nil {
		return err
	}

	var entCoef *EntropyCoefficient
	var err error
	if h.AutoEntCoef {
		entCoef, err = NewAutoEntropyCoefficient(h.EntCoef, h.TargetEntropy,
			c.LR)
		if err != nil {
			return err
		}
		if h.LogEntCoef != nil {
			entCoef.setLogValue(*h.LogEntCoef)
		}
		if s.entCoef.Auto() {
			entCoef.setSolver(s.entCoef.Solver())
		}
	} else {
		value := h.EntCoef
		if h.EntCoefTensor != nil {
			value = *h.EntCoefTensor
		}
		if entCoef, err = NewFixedEntropyCoefficient(value); err != nil {
			return err
		}
	}

	st.hparams = &h
	st.entCoef = entCoef
	return nil
}

// withHParams returns a copy of c with the fields stored in h
func (c Config) withHParams(h hparams) Config {
	c.LearningStarts = h.LearningStarts
	c.BatchSize = h.BatchSize
	c.LR = h.LR
	c.Tau = h.Tau
	c.Gamma = h.Gamma
	c.EntCoef = h.EntCoef
	c.AutoEntCoef = h.AutoEntCoef
	c.TrainFreq = h.TrainFreq
	c.GradientSteps = h.GradientSteps
	c.TargetUpdateInterval = h.TargetUpdateInterval
	target := h.TargetEntropy
	c.TargetEntropy = &target
	return c
}

// commit loads staged sections into the agent
func (s *SAC) commit(st staged) {
	if st.actor != nil {
		setMode(st.actor, s.actor.IsEval())
		s.actor = st.actor
	}
	if st.critic != nil {
		setMode(st.critic, s.critic.IsEval())
		s.critic = st.critic
	}
	if st.criticTarget != nil {
		st.criticTarget.Eval()
		s.criticTarget = st.criticTarget
	}
	if st.actorSolver != nil {
		s.actorSolver = st.actorSolver
	}
	if st.criticSolver != nil {
		s.criticSolver = st.criticSolver
	}
	if st.hparams != nil {
		s.cfg = s.cfg.withHParams(*st.hparams)
		s.targetEntropy = st.hparams.TargetEntropy
		s.entCoef = st.entCoef
		s.metrics = newMetrics(registeredStats(s.cfg.AutoEntCoef))
	}
	if st.entSolver != nil {
		s.entCoef.setSolver(st.entSolver)
	}

	s.logger.Info("loaded archive",
		zap.Bool(ActorSection, st.actor != nil),
		zap.Bool(CriticSection, st.critic != nil),
		zap.Bool(TargetSection, st.criticTarget != nil),
		zap.Bool(ActorOptSection, st.actorSolver != nil),
		zap.Bool(CriticOptSection, st.criticSolver != nil),
		zap.Bool(EntOptSection, st.entSolver != nil),
		zap.Bool(HParamsSection, st.hparams != nil),
	)
}

// decode decodes data into object, which must implement gob.GobDecoder
func decode(object interface{}, data []byte) error {
	decoder, ok := object.(gob.GobDecoder)
	if !ok {
		return fmt.Errorf("%T cannot be decoded", object)
	}
	return decoder.GobDecode(data)
}

// compatible returns an error if the decoded module does not have the
// architecture of the live module it would replace
func compatible(live, decoded agent.Module) error {
	if err := network.Compatible(live.Parameters(),
		decoded.Parameters()); err != nil {
		return fmt.Errorf("incompatible architecture: %v", err)
	}
	if err := network.Compatible(live.Buffers(), decoded.Buffers()); err != nil {
		return fmt.Errorf("incompatible buffers: %v", err)
	}
	return nil
}

// setMode sets m to evaluation mode if eval, otherwise training mode
func setMode(m agent.Moder, eval bool) {
	if eval {
		m.Eval()
	} else {
		m.Train()
	}
}
