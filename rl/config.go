package rl

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sw965/pokerppo/model/actorcritic"
)

const DefaultLambda = 0.95

// Config is copied into the agent at construction and never modified afterwards.
type Config struct {
	StateSize  int
	ActionSize int
	HiddenSize int

	LearningRate float32
	Gamma        float32
	Lambda       float32
	ClipEpsilon  float32
	EntropyCoeff float32
	CriticCoeff  float32

	// 既定では無効
	NormalizeAdvantages bool
	MaxGradNorm         float32

	// 0 の場合はグローバルなシードを使う
	Seed uint64

	Logger zerolog.Logger
}

func DefaultConfig(stateSize, actionSize int) Config {
	return Config{
		StateSize:    stateSize,
		ActionSize:   actionSize,
		HiddenSize:   actorcritic.DefaultHiddenSize,
		LearningRate: 1e-3,
		Gamma:        0.99,
		Lambda:       DefaultLambda,
		ClipEpsilon:  0.2,
		EntropyCoeff: 0.001,
		CriticCoeff:  0.5,
		Logger:       zerolog.Nop(),
	}
}

func (c *Config) Validate() error {
	if c.StateSize <= 0 {
		return fmt.Errorf("state_size must be positive, got %d", c.StateSize)
	}
	if c.ActionSize <= 0 {
		return fmt.Errorf("action_size must be positive, got %d", c.ActionSize)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("hidden_size must be positive, got %d", c.HiddenSize)
	}
	if !(c.LearningRate > 0) {
		return fmt.Errorf("learning_rate must be positive, got %v", c.LearningRate)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0, 1], got %v", c.Gamma)
	}
	if c.Lambda < 0 || c.Lambda > 1 {
		return fmt.Errorf("lambda must be in [0, 1], got %v", c.Lambda)
	}
	if c.ClipEpsilon <= 0 || c.ClipEpsilon >= 1 {
		return fmt.Errorf("clip_epsilon must be in (0, 1), got %v", c.ClipEpsilon)
	}
	if c.EntropyCoeff < 0 {
		return fmt.Errorf("entropy_coeff must not be negative, got %v", c.EntropyCoeff)
	}
	if c.CriticCoeff < 0 {
		return fmt.Errorf("critic_coeff must not be negative, got %v", c.CriticCoeff)
	}
	if c.MaxGradNorm < 0 {
		return fmt.Errorf("max_grad_norm must not be negative, got %v", c.MaxGradNorm)
	}
	return nil
}
