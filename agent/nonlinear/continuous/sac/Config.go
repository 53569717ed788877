package sac

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/samuelfneumann/gosac/initwfn"
	"github.com/samuelfneumann/gosac/solver"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by all configuration errors
var ErrInvalidConfig = errors.New("invalid configuration")

// Config configures a SAC agent.
//
// Config can be read from a YAML file with LoadConfig. Fields that are
// missing from the file keep their DefaultConfig values.
type Config struct {
	// Number of exploratory environment steps taken before the first
	// policy step
	LearningStarts int `yaml:"learning_starts" mapstructure:"learning_starts"`

	// Number of transitions in each sampled batch
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`

	// Learning rate of the actor, critic, and entropy solvers
	LR float64 `yaml:"lr" mapstructure:"lr"`

	// Polyak interpolation factor of the target critic
	Tau float64 `yaml:"tau" mapstructure:"tau"`

	Gamma float64 `yaml:"gamma" mapstructure:"gamma"`

	// Initial entropy coefficient if AutoEntCoef, otherwise the fixed
	// entropy coefficient
	EntCoef     float64 `yaml:"ent_coef" mapstructure:"ent_coef"`
	AutoEntCoef bool    `yaml:"auto_ent_coef" mapstructure:"auto_ent_coef"`

	// TargetEntropy overrides the default target entropy of
	// -prod(action shape) if non-nil
	TargetEntropy *float64 `yaml:"target_entropy,omitempty" mapstructure:"target_entropy"`

	// Number of policy environment steps per iteration
	TrainFreq int `yaml:"train_freq" mapstructure:"train_freq"`

	// Number of gradient steps per iteration
	GradientSteps int `yaml:"gradient_steps" mapstructure:"gradient_steps"`

	// Gradient step stride between target critic updates
	TargetUpdateInterval int `yaml:"target_update_interval" mapstructure:"target_update_interval"`

	// Capacity of the replay buffer in batched transitions
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size"`

	NumCritics            int   `yaml:"num_critics" mapstructure:"num_critics"`
	HiddenSizes           []int `yaml:"hidden_sizes" mapstructure:"hidden_sizes"`
	NormalizeObservations bool  `yaml:"normalize_observations" mapstructure:"normalize_observations"`

	// Solver of the actor and critic, see solver.Named. The entropy
	// coefficient is always learned with Adam.
	Optimizer string `yaml:"optimizer" mapstructure:"optimizer"`

	// Weight initializer of the actor and critic, see initwfn.Named
	WeightInit string `yaml:"weight_init" mapstructure:"weight_init"`

	// Seed of the random streams of the agent, see NewSeeds
	Seed uint64 `yaml:"seed" mapstructure:"seed"`

	// Prefix of the log file and checkpoints. If empty, nothing is
	// written to disk.
	OutputPath string `yaml:"output_path" mapstructure:"output_path"`
}

// DefaultConfig returns the default SAC configuration
func DefaultConfig() Config {
	return Config{
		LearningStarts:       100,
		BatchSize:            256,
		LR:                   3e-4,
		Tau:                  0.005,
		Gamma:                0.99,
		EntCoef:              1.0,
		AutoEntCoef:          true,
		TrainFreq:            1,
		GradientSteps:        1,
		TargetUpdateInterval: 1,
		BufferSize:           1_000_000,
		NumCritics:           2,
		HiddenSizes:          []int{256, 256},
		Optimizer:            "adam",
		WeightInit:           "glorot_uniform",
	}
}

// Validate checks that the Config describes a valid agent. All errors
// wrap ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.LearningStarts < 0:
		return invalid("learning_starts must be >= 0 but got %v",
			c.LearningStarts)
	case c.BatchSize < 1:
		return invalid("batch_size must be > 0 but got %v", c.BatchSize)
	case !(c.LR > 0) || math.IsInf(c.LR, 0):
		return invalid("lr must be a positive number but got %v", c.LR)
	case !(c.Tau >= 0 && c.Tau <= 1):
		return invalid("tau must be in [0, 1] but got %v", c.Tau)
	case !(c.Gamma >= 0 && c.Gamma <= 1):
		return invalid("gamma must be in [0, 1] but got %v", c.Gamma)
	case !(c.EntCoef > 0) || math.IsInf(c.EntCoef, 0):
		return invalid("ent_coef must be a positive number but got %v",
			c.EntCoef)
	case c.TargetEntropy != nil && (math.IsNaN(*c.TargetEntropy) ||
		math.IsInf(*c.TargetEntropy, 0)):
		return invalid("target_entropy must be finite but got %v",
			*c.TargetEntropy)
	case c.TrainFreq < 1:
		return invalid("train_freq must be > 0 but got %v", c.TrainFreq)
	case c.GradientSteps < 1:
		return invalid("gradient_steps must be > 0 but got %v",
			c.GradientSteps)
	case c.TargetUpdateInterval < 1:
		return invalid("target_update_interval must be > 0 but got %v",
			c.TargetUpdateInterval)
	case c.BufferSize < 1:
		return invalid("buffer_size must be > 0 but got %v", c.BufferSize)
	case c.NumCritics < 2:
		return invalid("num_critics must be >= 2 but got %v", c.NumCritics)
	}

	for _, size := range c.HiddenSizes {
		if size < 1 {
			return invalid("hidden_sizes must be positive but got %v",
				c.HiddenSizes)
		}
	}
	if _, err := solver.Named(c.Optimizer, c.LR); err != nil {
		return invalid("optimizer: %v", err)
	}
	if _, err := initwfn.Named(c.WeightInit); err != nil {
		return invalid("weight_init: %v", err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %v", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// LoadConfig reads a Config from the YAML file at path. Keys missing
// from the file take their DefaultConfig values. The returned Config
// is validated.
func LoadConfig(path string) (Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	SetDefaults(vp, DefaultConfig())

	if err := vp.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("loadConfig: could not read %v: %w",
			filepath.Base(path), err)
	}

	return ConfigFromViper(vp)
}

// ConfigFromViper builds a validated Config from the keys set in vp
func ConfigFromViper(vp *viper.Viper) (Config, error) {
	var c Config
	if err := vp.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("configFromViper: %w", err)
	}
	if !vp.IsSet("target_entropy") {
		c.TargetEntropy = nil
	}

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("configFromViper: %w", err)
	}
	return c, nil
}

// SetDefaults registers the values of c as defaults of vp
func SetDefaults(vp *viper.Viper, c Config) {
	vp.SetDefault("learning_starts", c.LearningStarts)
	vp.SetDefault("batch_size", c.BatchSize)
	vp.SetDefault("lr", c.LR)
	vp.SetDefault("tau", c.Tau)
	vp.SetDefault("gamma", c.Gamma)
	vp.SetDefault("ent_coef", c.EntCoef)
	vp.SetDefault("auto_ent_coef", c.AutoEntCoef)
	vp.SetDefault("train_freq", c.TrainFreq)
	vp.SetDefault("gradient_steps", c.GradientSteps)
	vp.SetDefault("target_update_interval", c.TargetUpdateInterval)
	vp.SetDefault("buffer_size", c.BufferSize)
	vp.SetDefault("num_critics", c.NumCritics)
	vp.SetDefault("hidden_sizes", c.HiddenSizes)
	vp.SetDefault("normalize_observations", c.NormalizeObservations)
	vp.SetDefault("optimizer", c.Optimizer)
	vp.SetDefault("weight_init", c.WeightInit)
	vp.SetDefault("seed", c.Seed)
	vp.SetDefault("output_path", c.OutputPath)
	if c.TargetEntropy != nil {
		vp.SetDefault("target_entropy", *c.TargetEntropy)
	}
}
