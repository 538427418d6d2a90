package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sw965/pokerppo/game/holdem"
	"github.com/sw965/pokerppo/internal/config"
	"github.com/sw965/pokerppo/mathx/randx"
	"github.com/sw965/pokerppo/rl"
)

var (
	v          = viper.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "ppotrain",
	Short: "Train a PPO poker agent",
	Long: `ppotrain trains a shared-trunk actor-critic with PPO and GAE on heads-up
no-limit hold'em hands against a uniformly random opponent.

Every flag can also be set through a PPOTRAIN_* environment variable
(e.g. PPOTRAIN_LEARNING_RATE) or a config file passed with --config.`,
	SilenceUsage: true,
	RunE:         runTrain,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	if err := config.BindFlags(rootCmd.Flags(), v, config.Default()); err != nil {
		panic(err)
	}
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return zerolog.Nop(), err
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().
		Timestamp().
		Str("run_id", uuid.New().String()).
		Logger(), nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	// 環境と方策で乱数列を分ける
	envSeed := cfg.Seed
	if envSeed != 0 {
		envSeed++
	}
	env, err := holdem.NewEnv(cfg.EnvConfig(logger.With().Str("component", "holdem").Logger()), randx.NewRand(envSeed))
	if err != nil {
		return err
	}
	agent, err := rl.NewAgent(env, holdem.Domain(), cfg.AgentConfig(logger.With().Str("component", "agent").Logger()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var total float32
	agent.OnEpisode = func(s rl.EpisodeSummary) {
		total += s.Reward
	}

	logger.Info().
		Int("episodes", cfg.Episodes).
		Int("state_size", holdem.StateSize).
		Int("action_size", holdem.ActionSize).
		Uint64("seed", cfg.Seed).
		Msg("training started")

	start := time.Now()
	err = agent.TrainContext(ctx, cfg.Episodes)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Warn().Msg("interrupted, stopping after the current episode")
	case errors.Is(err, rl.ErrNumericalDivergence):
		logger.Error().Err(err).Msg("training diverged")
		return err
	case err != nil:
		return err
	}

	logger.Info().
		Float32("total_reward_bb", total).
		Dur("elapsed", time.Since(start)).
		Msg("training finished")

	if cfg.EvalEpisodes > 0 && ctx.Err() == nil {
		mean, err := agent.Evaluate(cfg.EvalEpisodes)
		if err != nil {
			return err
		}
		logger.Info().
			Int("episodes", cfg.EvalEpisodes).
			Float32("mean_reward_bb", mean).
			Msg("evaluation finished")
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
