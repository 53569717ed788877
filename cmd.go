package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samuelfneumann/gosac/agent/nonlinear/continuous/sac"
	"github.com/samuelfneumann/gosac/environment"
	"github.com/samuelfneumann/gosac/environment/classiccontrol/pendulum"
	"github.com/samuelfneumann/gosac/experiment"
	"github.com/samuelfneumann/gosac/experiment/checkpointer"
	"github.com/samuelfneumann/gosac/experiment/tracker"
	"github.com/samuelfneumann/gosac/experiment/trackers"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

var (
	verbose      bool
	numEnvs      int
	episodeSteps int
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:          "gosac",
	Short:        "Soft Actor-Critic on a vectorized Pendulum",
	SilenceUsage: true,
}

// Train command flags
var (
	trainSteps         int
	monitorInterval    int
	checkpointInterval int
	metricsAddr        string
	metricsStats       []string
	loadPath           string
	showProgress       bool
	enumerate          bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a SAC agent",
	Long: `Train a SAC agent on the Pendulum swing-up task.

Hyperparameters are read from the YAML file given by --config, and
flags override the values in the file. If an output path is set, the
log stream is written to <output>_log.txt, checkpoints to
<output>_<date>_<time>_<time steps>.gob, and the final agent to
<output>_final.gob. Interrupting training saves the final agent.`,
	RunE: runTrain,
}

// Eval command flags
var (
	evalSteps   int
	stochastic  bool
	returnsPath string
)

var evalCmd = &cobra.Command{
	Use:   "eval <archive>",
	Short: "Evaluate a saved SAC agent",
	Long: `Evaluate the actor of a saved SAC agent on the Pendulum swing-up
task and print the mean episodic return.

The network architecture (hidden_sizes, num_critics,
normalize_observations) is not stored in the archive and must be given
by --config or by the architecture flags, as in training.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

// configFlags maps flag names to the configuration keys they override
var configFlags = map[string]string{
	"learning-starts":        "learning_starts",
	"batch-size":             "batch_size",
	"lr":                     "lr",
	"tau":                    "tau",
	"gamma":                  "gamma",
	"ent-coef":               "ent_coef",
	"auto-ent-coef":          "auto_ent_coef",
	"target-entropy":         "target_entropy",
	"train-freq":             "train_freq",
	"gradient-steps":         "gradient_steps",
	"target-update-interval": "target_update_interval",
	"buffer-size":            "buffer_size",
	"num-critics":            "num_critics",
	"hidden-sizes":           "hidden_sizes",
	"normalize-observations": "normalize_observations",
	"weight-init":            "weight_init",
	"optimizer":              "optimizer",
	"seed":                   "seed",
	"output":                 "output_path",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "development logging")
	pf.IntVar(&numEnvs, "num-envs", 1, "number of parallel environments")
	pf.IntVar(&episodeSteps, "episode-steps", 200, "steps per episode")
	pf.StringVarP(&configPath, "config", "c", "", "YAML hyperparameter file")

	tf := trainCmd.Flags()
	tf.IntVar(&trainSteps, "steps", 100_000, "environment steps to train for")
	tf.IntVar(&monitorInterval, "monitor", 1000,
		"iterations between log rows, 0 to disable")
	tf.IntVar(&checkpointInterval, "checkpoint", 0,
		"iterations between checkpoints, 0 to disable")
	tf.StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address, e.g. :9090")
	tf.StringSliceVar(&metricsStats, "metrics-stats", nil,
		"statistics exported to Prometheus (default all)")
	tf.StringVar(&loadPath, "load", "", "archive to resume training from")
	tf.BoolVar(&showProgress, "progress", false,
		"show a progress bar instead of the console table")
	tf.BoolVar(&enumerate, "enumerate-checkpoints", false,
		"name checkpoints <output>_1.gob, <output>_2.gob, ...")
	addConfigFlags(tf)

	ef := evalCmd.Flags()
	ef.IntVar(&evalSteps, "steps", 2000, "environment steps to evaluate for")
	ef.BoolVar(&stochastic, "stochastic", false,
		"sample actions instead of using the mode of the policy")
	ef.StringVar(&returnsPath, "returns", "",
		"gob file to save episodic returns to")
	ef.Uint64("seed", 0, "seed of the starting states")
	addArchitectureFlags(ef)

	rootCmd.AddCommand(trainCmd, evalCmd)
}

// addConfigFlags adds one flag per configuration key to flags, with
// the default configuration as default values
func addConfigFlags(flags *pflag.FlagSet) {
	c := sac.DefaultConfig()
	flags.Int("learning-starts", c.LearningStarts, "exploratory steps")
	flags.Int("batch-size", c.BatchSize, "transitions per batch")
	flags.Float64("lr", c.LR, "learning rate")
	flags.Float64("tau", c.Tau, "target critic polyak factor")
	flags.Float64("gamma", c.Gamma, "discount factor")
	flags.Float64("ent-coef", c.EntCoef, "(initial) entropy coefficient")
	flags.Bool("auto-ent-coef", c.AutoEntCoef, "learn the entropy coefficient")
	flags.Float64("target-entropy", 0, "target entropy (default -|A|)")
	flags.Int("train-freq", c.TrainFreq, "policy steps per iteration")
	flags.Int("gradient-steps", c.GradientSteps, "gradient steps per iteration")
	flags.Int("target-update-interval", c.TargetUpdateInterval,
		"gradient steps between target updates")
	flags.Int("buffer-size", c.BufferSize, "replay buffer capacity")
	addArchitectureFlags(flags)
	flags.String("weight-init", c.WeightInit, "weight initializer")
	flags.String("optimizer", c.Optimizer, "actor and critic solver")
	flags.Uint64("seed", c.Seed, "random seed")
	flags.String("output", c.OutputPath, "output path prefix")
}

// addArchitectureFlags adds the flags of the configuration keys which
// determine the shapes of the networks
func addArchitectureFlags(flags *pflag.FlagSet) {
	c := sac.DefaultConfig()
	flags.Int("num-critics", c.NumCritics, "critic ensemble size")
	flags.IntSlice("hidden-sizes", c.HiddenSizes, "hidden layer sizes")
	flags.Bool("normalize-observations", c.NormalizeObservations,
		"normalize critic inputs")
}

// metricsSink returns prom registered with the statistics in names.
// If names is empty, prom is returned unchanged.
func metricsSink(prom tracker.Tracker, names []string) (tracker.Tracker,
	error) {
	if len(names) == 0 {
		return prom, nil
	}
	known := make(map[string]bool)
	for s := sac.NumUpdates; s <= sac.EntCoefLoss; s++ {
		known[s.String()] = true
	}
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("unknown statistic %q", name)
		}
	}
	return tracker.Register(prom, names...), nil
}

// loadConfig builds the configuration from the defaults, the config
// file, and the flags set on the command line, in increasing order of
// precedence
func loadConfig(flags *pflag.FlagSet) (sac.Config, error) {
	vp := viper.New()
	sac.SetDefaults(vp, sac.DefaultConfig())

	if configPath != "" {
		vp.SetConfigFile(configPath)
		vp.SetConfigType("yaml")
		if err := vp.ReadInConfig(); err != nil {
			return sac.Config{}, fmt.Errorf("could not read config: %w", err)
		}
	}

	for name, key := range configFlags {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := vp.BindPFlag(key, flag); err != nil {
			return sac.Config{}, fmt.Errorf("could not bind --%v: %w", name,
				err)
		}
	}

	return sac.ConfigFromViper(vp)
}

// newLogger returns a development logger if verbose, otherwise a
// production logger
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newPendulum returns a Pendulum swing-up environment whose starting
// angles are uniform over the circle and starting speeds are in [-1, 1]
func newPendulum(seed uint64) (*pendulum.Pendulum, error) {
	bounds := []r1.Interval{
		{Min: -pendulum.AngleBound, Max: pendulum.AngleBound},
		{Min: -1, Max: 1},
	}
	starter := environment.NewUniformStarter(bounds, seed)
	return pendulum.New(numEnvs, pendulum.NewSwingUp(episodeSteps), starter)
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	env, err := newPendulum(sac.NewSeeds(cfg.Seed).Environment)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom, err := trackers.NewPrometheus(reg, "gosac")
	if err != nil {
		return err
	}
	promSink, err := metricsSink(prom, metricsStats)
	if err != nil {
		return err
	}
	sinks := []tracker.Tracker{promSink, trackers.NewZap(logger.Named("stats"))}
	if showProgress {
		sinks = append(sinks, trackers.NewProgress(os.Stdout, 50, trainSteps))
	} else {
		sinks = append(sinks, trackers.NewConsole(os.Stdout))
	}

	opts := []sac.Option{sac.WithLogger(logger), sac.WithTrackers(sinks...)}
	if enumerate {
		opts = append(opts, sac.WithCheckpointFilenames(
			checkpointer.FilenameEnumerator(0, cfg.OutputPath+"_", ".gob")))
	}
	agent, err := sac.New(env, cfg, nil, opts...)
	if err != nil {
		return err
	}
	if err := agent.Reset(); err != nil {
		return err
	}
	if loadPath != "" {
		if err := agent.Load(loadPath); err != nil {
			return err
		}
	}

	if metricsAddr != "" {
		server := serveMetrics(logger, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	err = agent.LearnContext(ctx, trainSteps, monitorInterval,
		checkpointInterval)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if cfg.OutputPath == "" {
		return nil
	}
	if err := agent.Save(cfg.OutputPath + "_final.gob"); err != nil {
		return err
	}
	return writeConfig(cfg.OutputPath+"_config.yaml", agent.Config())
}

// serveMetrics serves the metrics in reg at /metrics on metricsAddr
func serveMetrics(logger *zap.Logger, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	go func() {
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return server
}

// writeConfig writes c to path as YAML
func writeConfig(path string, c sac.Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("writeConfig: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writeConfig: %w", err)
	}
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetUint64("seed")
	if err != nil {
		return err
	}
	env, err := newPendulum(sac.NewSeeds(seed).Environment)
	if err != nil {
		return err
	}

	// The archive only needs to fit in memory once
	cfg.BufferSize = 1
	cfg.OutputPath = ""
	agent, err := sac.New(env, cfg, nil, sac.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := agent.Reset(); err != nil {
		return err
	}
	if err := agent.Load(args[0], sac.ActorSection); err != nil {
		return err
	}
	agent.Actor().Eval()

	returns := trackers.NewReturn(numEnvs, returnsPath)
	e := experiment.NewEvaluation(env, agent, evalSteps, !stochastic, returns)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()
	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	data := returns.Data()
	if len(data) == 0 {
		logger.Warn("no episode finished", zap.Int("steps", e.Steps()))
	} else {
		mean, std := stat.MeanStdDev(data, nil)
		fmt.Fprintf(cmd.OutOrStdout(), "episodes: %d\tmean return: %.3f"+
			"\tstd: %.3f\n", len(data), mean, std)
	}

	if returnsPath != "" {
		return e.Save()
	}
	return nil
}
