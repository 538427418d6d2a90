package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/sw965/pokerppo/game/holdem"
	"github.com/sw965/pokerppo/rl"
)

// EnvPrefix is the prefix of environment variables that override flags, e.g. PPOTRAIN_LEARNING_RATE.
const EnvPrefix = "PPOTRAIN"

// Config holds all training run configuration
type Config struct {
	// Run
	Episodes     int    `mapstructure:"episodes"`
	EvalEpisodes int    `mapstructure:"eval_episodes"`
	Seed         uint64 `mapstructure:"seed"`

	// Network and optimizer
	HiddenSize   int     `mapstructure:"hidden_size"`
	LearningRate float32 `mapstructure:"learning_rate"`

	// PPO
	Gamma               float32 `mapstructure:"gamma"`
	Lambda              float32 `mapstructure:"lambda"`
	ClipEpsilon         float32 `mapstructure:"clip_epsilon"`
	EntropyCoeff        float32 `mapstructure:"entropy_coeff"`
	CriticCoeff         float32 `mapstructure:"critic_coeff"`
	NormalizeAdvantages bool    `mapstructure:"normalize_advantages"`
	MaxGradNorm         float32 `mapstructure:"max_grad_norm"`

	// Table
	StartingStack int `mapstructure:"starting_stack"`
	SmallBlind    int `mapstructure:"small_blind"`
	BigBlind      int `mapstructure:"big_blind"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Default returns a config with the agent's and the table's defaults
func Default() *Config {
	agent := rl.DefaultConfig(holdem.StateSize, holdem.ActionSize)
	table := holdem.DefaultEnvConfig()
	return &Config{
		Episodes:            1000,
		EvalEpisodes:        0,
		Seed:                0, // グローバルシード
		HiddenSize:          agent.HiddenSize,
		LearningRate:        agent.LearningRate,
		Gamma:               agent.Gamma,
		Lambda:              agent.Lambda,
		ClipEpsilon:         agent.ClipEpsilon,
		EntropyCoeff:        agent.EntropyCoeff,
		CriticCoeff:         agent.CriticCoeff,
		NormalizeAdvantages: agent.NormalizeAdvantages,
		MaxGradNorm:         agent.MaxGradNorm,
		StartingStack:       table.StartingStack,
		SmallBlind:          table.SmallBlind,
		BigBlind:            table.BigBlind,
		LogLevel:            "info",
		LogFormat:           "console",
	}
}

// BindFlags registers one flag per field on fs, with the defaults of d, and binds them to v.
// A flag binds to the key with its dashes replaced by underscores.
// Environment variables with EnvPrefix take precedence over defaults but not over set flags.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper, d *Config) error {
	flags := pflag.NewFlagSet("ppotrain", pflag.ContinueOnError)

	// Run
	flags.Int("episodes", d.Episodes, "Number of training episodes (hands)")
	flags.Int("eval-episodes", d.EvalEpisodes, "Greedy evaluation episodes after training (0 to skip)")
	flags.Uint64("seed", d.Seed, "Random seed (0 seeds from the global source)")

	// Network and optimizer
	flags.Int("hidden-size", d.HiddenSize, "Units in each shared layer")
	flags.Float32("learning-rate", d.LearningRate, "Adam learning rate")

	// PPO
	flags.Float32("gamma", d.Gamma, "Discount factor")
	flags.Float32("lambda", d.Lambda, "GAE lambda")
	flags.Float32("clip-epsilon", d.ClipEpsilon, "PPO clipping range")
	flags.Float32("entropy-coeff", d.EntropyCoeff, "Entropy bonus coefficient")
	flags.Float32("critic-coeff", d.CriticCoeff, "Critic loss coefficient")
	flags.Bool("normalize-advantages", d.NormalizeAdvantages, "Standardize advantages before the update")
	flags.Float32("max-grad-norm", d.MaxGradNorm, "Clip the global gradient norm (0 disables)")

	// Table
	flags.Int("starting-stack", d.StartingStack, "Chips each seat starts a hand with")
	flags.Int("small-blind", d.SmallBlind, "Small blind in chips")
	flags.Int("big-blind", d.BigBlind, "Big blind in chips")

	// Logging
	flags.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", d.LogFormat, "Log format (console, json)")

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if bindErr := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	if err != nil {
		return err
	}
	fs.AddFlagSet(flags)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return nil
}

// Load reads an optional config file and decodes the merged settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive")
	}
	if c.EvalEpisodes < 0 {
		return fmt.Errorf("eval_episodes must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}

	agent := c.AgentConfig(zerolog.Nop())
	if err := agent.Validate(); err != nil {
		return err
	}
	table := c.EnvConfig(zerolog.Nop())
	return table.Validate()
}

func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func (c *Config) AgentConfig(logger zerolog.Logger) rl.Config {
	agent := rl.DefaultConfig(holdem.StateSize, holdem.ActionSize)
	agent.HiddenSize = c.HiddenSize
	agent.LearningRate = c.LearningRate
	agent.Gamma = c.Gamma
	agent.Lambda = c.Lambda
	agent.ClipEpsilon = c.ClipEpsilon
	agent.EntropyCoeff = c.EntropyCoeff
	agent.CriticCoeff = c.CriticCoeff
	agent.NormalizeAdvantages = c.NormalizeAdvantages
	agent.MaxGradNorm = c.MaxGradNorm
	agent.Seed = c.Seed
	agent.Logger = logger
	return agent
}

func (c *Config) EnvConfig(logger zerolog.Logger) holdem.EnvConfig {
	return holdem.EnvConfig{
		StartingStack: c.StartingStack,
		SmallBlind:    c.SmallBlind,
		BigBlind:      c.BigBlind,
		Logger:        logger,
	}
}
