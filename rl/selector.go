package rl

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/chewxy/math32"
	"github.com/sw965/omw/slicesx"
	"github.com/sw965/pokerppo/mathx"
	"gonum.org/v1/gonum/stat/distuv"
)

// PolicyValue is the part of the network the selector needs.
type PolicyValue interface {
	Forward(state []float32) ([]float32, float32, error)
}

// Selector samples actions from the policy restricted to the legal moves of a decision point.
type Selector[M comparable] struct {
	domain     MoveDomain[M]
	actionSize int
	net        PolicyValue
	rng        *rand.Rand
}

func NewSelector[M comparable](domain MoveDomain[M], actionSize int, net PolicyValue, rng *rand.Rand) (*Selector[M], error) {
	if err := domain.validate(actionSize); err != nil {
		return nil, err
	}
	if net == nil {
		return nil, fmt.Errorf("selector: network is nil")
	}
	if rng == nil {
		return nil, fmt.Errorf("selector: rng is nil")
	}
	return &Selector[M]{
		domain:     domain,
		actionSize: actionSize,
		net:        net,
		rng:        rng,
	}, nil
}

// Allowed returns the logit indices the agent may choose from, in domain order and without duplicates.
func (s *Selector[M]) Allowed(legal []M) []int {
	idxs := make([]int, 0, len(s.domain.Playable))
	for _, m := range s.domain.Playable {
		if !slices.Contains(legal, m) {
			continue
		}
		// ショーダウンは行動ではない
		if s.domain.Terminal(m) {
			continue
		}
		idx := s.domain.Index(m)
		if !slices.Contains(idxs, idx) {
			idxs = append(idxs, idx)
		}
	}
	return idxs
}

// Mask is 0 at allowed indices and -Inf elsewhere.
func (s *Selector[M]) Mask(allowed []int) []float32 {
	mask := make([]float32, s.actionSize)
	for i := range mask {
		mask[i] = math32.Inf(-1)
	}
	for _, idx := range allowed {
		mask[idx] = 0
	}
	return mask
}

// Probabilities returns softmax(logits + mask) for the observation.
// The result is nil when no move is allowed.
func (s *Selector[M]) Probabilities(legal []M, observation []float32) ([]float32, error) {
	allowed := s.Allowed(legal)
	if len(allowed) == 0 {
		return nil, nil
	}
	return s.maskedProbabilities(allowed, observation)
}

func (s *Selector[M]) maskedProbabilities(allowed []int, observation []float32) ([]float32, error) {
	state := mathx.Sanitize(observation)
	if err := checkFinite(CheckpointState, 0, state); err != nil {
		return nil, err
	}

	logits, _, err := s.net.Forward(state)
	if err != nil {
		return nil, err
	}
	if err := checkFinite(CheckpointLogits, 0, logits); err != nil {
		return nil, err
	}
	if len(logits) != s.actionSize {
		return nil, fmt.Errorf("selector: network returned %d logits, want %d", len(logits), s.actionSize)
	}

	mask := s.Mask(allowed)
	masked := make([]float32, s.actionSize)
	for i := range masked {
		masked[i] = logits[i] + mask[i]
	}
	return mathx.Softmax(masked), nil
}

// Select samples an action and returns it with its log-probability.
// With no allowed move it falls back to a uniformly random index and log-probability 0.
func (s *Selector[M]) Select(legal []M, observation []float32) (int, float32, error) {
	allowed := s.Allowed(legal)
	if len(allowed) == 0 {
		return s.rng.IntN(s.actionSize), 0.0, nil
	}

	probs, err := s.maskedProbabilities(allowed, observation)
	if err != nil {
		return 0, 0.0, err
	}

	weights := make([]float64, len(probs))
	for i, p := range probs {
		weights[i] = float64(p)
	}
	// 抽選はエージェント自身の乱数列から行う
	dist := distuv.NewCategorical(weights, s.rng)
	action := int(dist.Rand())
	logProb := float32(dist.LogProb(float64(action)))
	return action, logProb, nil
}

// Greedy returns the most probable allowed action.
func (s *Selector[M]) Greedy(legal []M, observation []float32) (int, float32, error) {
	allowed := s.Allowed(legal)
	if len(allowed) == 0 {
		return s.rng.IntN(s.actionSize), 0.0, nil
	}

	probs, err := s.maskedProbabilities(allowed, observation)
	if err != nil {
		return 0, 0.0, err
	}
	action := slicesx.Argsort(probs)[len(probs)-1]
	return action, math32.Log(probs[action]), nil
}
