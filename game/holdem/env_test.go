package holdem_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/pokerppo/game/holdem"
	"github.com/sw965/pokerppo/rl"
)

func newEnv(t *testing.T, seed uint64) *holdem.Env {
	t.Helper()
	env, err := holdem.NewEnv(holdem.DefaultEnvConfig(), rand.New(rand.NewPCG(seed, seed+1)))
	require.NoError(t, err)
	return env
}

func assertConserved(t *testing.T, env *holdem.Env) {
	t.Helper()
	stacks, pot := env.Chips()
	assert.Equal(t, 2*holdem.DefaultEnvConfig().StartingStack, stacks[0]+stacks[1]+pot[0]+pot[1])
}

func TestNewEnvValidatesConfig(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	cfg := holdem.DefaultEnvConfig()
	cfg.BigBlind = 0
	_, err := holdem.NewEnv(cfg, rng)
	assert.ErrorIs(t, err, holdem.ErrInvalidConfig)

	cfg = holdem.DefaultEnvConfig()
	cfg.StartingStack = 2
	_, err = holdem.NewEnv(cfg, rng)
	assert.ErrorIs(t, err, holdem.ErrInvalidConfig)

	_, err = holdem.NewEnv(holdem.DefaultEnvConfig(), nil)
	assert.Error(t, err)
}

func TestResetObservation(t *testing.T) {
	env := newEnv(t, 1)
	obs, err := env.Reset()
	require.NoError(t, err)
	require.Len(t, obs, holdem.StateSize)

	assert.False(t, env.Over())
	assert.NotEmpty(t, env.LegalMoves())
	assertConserved(t, env)

	// ホールカードはランクとスートが一つずつ立つ
	var ones int
	for _, v := range obs[:2*17] {
		if v == 1 {
			ones++
		}
	}
	assert.Equal(t, 4, ones)
}

func TestStepBeforeResetFails(t *testing.T) {
	env := newEnv(t, 1)
	_, _, _, _, err := env.Step(int(holdem.ActionCall))
	assert.ErrorIs(t, err, holdem.ErrHandOver)
}

func TestRandomHandsConserveChips(t *testing.T) {
	env := newEnv(t, 5)
	rng := rand.New(rand.NewPCG(8, 13))
	start := float32(holdem.DefaultEnvConfig().StartingStack)
	bb := float32(holdem.DefaultEnvConfig().BigBlind)

	showdowns := 0
	for hand := 0; hand < 300; hand++ {
		_, err := env.Reset()
		require.NoError(t, err)

		for done := false; !done; {
			legal := env.LegalMoves()
			require.NotEmpty(t, legal)
			for _, m := range legal {
				_, isAction := m.(holdem.Action)
				assert.True(t, isAction)
			}

			move := legal[rng.IntN(len(legal))]
			_, reward, d, info, err := env.Step(holdem.Index(move))
			require.NoError(t, err)
			assertConserved(t, env)
			done = d

			if !done {
				assert.Zero(t, reward)
				continue
			}

			stacks, pot := env.Chips()
			assert.Equal(t, [2]int{}, pot)
			assert.InDelta(t, (float32(stacks[0])-start)/bb, reward, 1e-6)
			assert.GreaterOrEqual(t, reward, -start/bb)
			assert.LessOrEqual(t, reward, start/bb)

			i, ok := info.(holdem.Info)
			require.True(t, ok)
			if i.Showdown {
				showdowns++
				assert.Equal(t, []holdem.Move{holdem.StageShowdown}, env.LegalMoves())
				assert.Equal(t, holdem.StageShowdown, env.Stage())
			} else {
				assert.Empty(t, env.LegalMoves())
				assert.NotEqual(t, -1, i.Winner)
			}
		}
	}
	assert.Positive(t, showdowns)
}

func TestIllegalIndexIsCoerced(t *testing.T) {
	env := newEnv(t, 3)
	_, err := env.Reset()
	require.NoError(t, err)

	legal := env.LegalMoves()
	_, _, _, info, err := env.Step(int(holdem.ActionBigBlind))
	require.NoError(t, err)

	played := info.(holdem.Info).Played
	if slices.Contains(legal, holdem.Move(holdem.ActionCheck)) {
		assert.Equal(t, holdem.ActionCheck, played)
	} else {
		assert.Equal(t, holdem.ActionFold, played)
	}
}

func TestShowdownMarkerIsNotAction(t *testing.T) {
	assert.True(t, holdem.IsShowdown(holdem.StageShowdown))
	// RAISE_2POT と SHOWDOWN は同じ値だが別物
	assert.Equal(t, int(holdem.StageShowdown), int(holdem.ActionRaise2Pot))
	assert.False(t, holdem.IsShowdown(holdem.ActionRaise2Pot))
	assert.NotEqual(t, holdem.Move(holdem.StageShowdown), holdem.Move(holdem.ActionRaise2Pot))

	assert.Equal(t, -1, holdem.Index(holdem.StageShowdown))
	assert.Equal(t, 5, holdem.Index(holdem.ActionRaise2Pot))
	assert.Equal(t, holdem.ActionRaise3BB, holdem.ActionRaiseHalfPot)
}

func TestDomainWithSelector(t *testing.T) {
	domain := holdem.Domain()
	require.Len(t, domain.Playable, 6)

	net := constantNet{logits: make([]float32, holdem.ActionSize)}
	s, err := rl.NewSelector(domain, holdem.ActionSize, net, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	legal := []holdem.Move{holdem.ActionRaise2Pot, holdem.ActionAllIn, holdem.StageShowdown}
	assert.Equal(t, []int{5}, s.Allowed(legal))

	legal = []holdem.Move{holdem.ActionFold, holdem.ActionCall, holdem.ActionRaise3BB}
	assert.Equal(t, []int{0, 2, 3}, s.Allowed(legal))

	assert.Empty(t, s.Allowed([]holdem.Move{holdem.StageShowdown}))
}

func TestAgentPlaysHands(t *testing.T) {
	env := newEnv(t, 11)
	cfg := rl.DefaultConfig(holdem.StateSize, holdem.ActionSize)
	cfg.HiddenSize = 16
	cfg.Seed = 3
	agent, err := rl.NewAgent(env, holdem.Domain(), cfg)
	require.NoError(t, err)

	episodes := 0
	agent.OnEpisode = func(s rl.EpisodeSummary) {
		episodes++
		assert.Positive(t, s.Steps)
	}
	require.NoError(t, agent.Train(10))
	assert.Equal(t, 10, episodes)

	_, err = agent.Evaluate(5)
	require.NoError(t, err)
}

type constantNet struct {
	logits []float32
}

func (n constantNet) Forward([]float32) ([]float32, float32, error) {
	return n.logits, 0, nil
}
