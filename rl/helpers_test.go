package rl_test

import (
	"errors"

	"github.com/sw965/pokerppo/rl"
)

type move int

const (
	moveA move = iota
	moveB
	moveC
	moveEnd
)

const (
	testStateSize  = 4
	testActionSize = 3
)

func testDomain() rl.MoveDomain[move] {
	return rl.MoveDomain[move]{
		Playable: []move{moveA, moveB, moveC},
		Index:    func(m move) int { return int(m) },
		Terminal: func(m move) bool { return m == moveEnd },
	}
}

// stubNet returns fixed logits and remembers the last state it saw.
type stubNet struct {
	logits []float32
	value  float32
	last   []float32
}

func (n *stubNet) Forward(state []float32) ([]float32, float32, error) {
	n.last = append([]float32(nil), state...)
	return append([]float32(nil), n.logits...), n.value, nil
}

// bandit pays 1 for the target action and 0 otherwise, for a fixed number of steps.
type bandit struct {
	target  int
	length  int
	t       int
	legal   []move
	failAt  int
	actions []int
}

func newBandit(target, length int) *bandit {
	return &bandit{target: target, length: length, legal: []move{moveA, moveB, moveC}, failAt: -1}
}

func (b *bandit) observation() []float32 {
	return []float32{1, float32(b.t), 0, -1}
}

func (b *bandit) Reset() ([]float32, error) {
	b.t = 0
	return b.observation(), nil
}

func (b *bandit) Step(action int) ([]float32, float32, bool, any, error) {
	if b.t == b.failAt {
		return nil, 0, false, nil, errors.New("table closed")
	}
	b.actions = append(b.actions, action)
	b.t++
	var reward float32
	if action == b.target {
		reward = 1
	}
	return b.observation(), reward, b.t >= b.length, nil, nil
}

func (b *bandit) LegalMoves() []move {
	return b.legal
}

func testConfig() rl.Config {
	cfg := rl.DefaultConfig(testStateSize, testActionSize)
	cfg.HiddenSize = 16
	cfg.Seed = 42
	return cfg
}
