package rl_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/pokerppo/model/actorcritic"
	"github.com/sw965/pokerppo/rl"
)

func newSelector(t *testing.T, net rl.PolicyValue) *rl.Selector[move] {
	t.Helper()
	s, err := rl.NewSelector(testDomain(), testActionSize, net, rand.New(rand.NewPCG(3, 5)))
	require.NoError(t, err)
	return s
}

func TestNewSelectorRejectsIncompleteDomain(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	net := &stubNet{logits: []float32{0, 0, 0}}

	domain := testDomain()
	domain.Index = nil
	_, err := rl.NewSelector(domain, testActionSize, net, rng)
	assert.ErrorIs(t, err, rl.ErrNilDomainFunc)

	domain = testDomain()
	domain.Terminal = nil
	_, err = rl.NewSelector(domain, testActionSize, net, rng)
	assert.ErrorIs(t, err, rl.ErrNilDomainFunc)

	_, err = rl.NewSelector(testDomain(), 2, net, rng)
	assert.Error(t, err)

	_, err = rl.NewSelector(testDomain(), testActionSize, nil, rng)
	assert.Error(t, err)
}

func TestAllowed(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{0, 0, 0}})

	assert.Equal(t, []int{0, 2}, s.Allowed([]move{moveC, moveA}))
	assert.Empty(t, s.Allowed(nil))
	assert.Empty(t, s.Allowed([]move{moveEnd}))
}

func TestAllowedDeduplicatesAliases(t *testing.T) {
	domain := testDomain()
	domain.Index = func(m move) int {
		if m == moveC {
			return 1
		}
		return int(m)
	}
	s, err := rl.NewSelector(domain, testActionSize, &stubNet{logits: []float32{0, 0, 0}}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, s.Allowed([]move{moveB, moveC}))
}

func TestAllowedSkipsTerminalMarker(t *testing.T) {
	domain := testDomain()
	domain.Playable = append(domain.Playable, moveEnd)
	domain.Index = func(m move) int { return int(m) % testActionSize }
	s, err := rl.NewSelector(domain, testActionSize, &stubNet{logits: []float32{0, 0, 0}}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, s.Allowed([]move{moveB, moveEnd}))
}

func TestProbabilitiesAreMasked(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{2, 5, -1}})

	probs, err := s.Probabilities([]move{moveA, moveC}, []float32{0, 0, 0, 0})
	require.NoError(t, err)
	require.Len(t, probs, testActionSize)

	assert.Equal(t, float32(0), probs[1])
	assert.InDelta(t, 1.0, probs[0]+probs[2], 1e-6)
	// softmax([2, -1]) = [e^3/(e^3+1), 1/(e^3+1)]
	assert.InDelta(t, 0.952574, probs[0], 1e-5)

	probs, err = s.Probabilities(nil, []float32{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Nil(t, probs)
}

func TestSelectReturnsLegalActionWithLogProb(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{0.3, -0.2, 1.1}})
	legal := []move{moveA, moveB}

	probs, err := s.Probabilities(legal, []float32{0, 0, 0, 0})
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		action, logProb, err := s.Select(legal, []float32{0, 0, 0, 0})
		require.NoError(t, err)
		assert.Contains(t, []int{0, 1}, action)
		assert.InDelta(t, math32.Log(probs[action]), logProb, 1e-5)
	}
}

func TestSelectFrequencies(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{0, math32.Log(3), 5}})
	legal := []move{moveA, moveB}

	const n = 20000
	counts := make([]int, testActionSize)
	for i := 0; i < n; i++ {
		action, _, err := s.Select(legal, []float32{0, 0, 0, 0})
		require.NoError(t, err)
		counts[action]++
	}
	assert.Zero(t, counts[2])
	assert.InDelta(t, 0.25, float64(counts[0])/n, 0.02)
	assert.InDelta(t, 0.75, float64(counts[1])/n, 0.02)
}

func TestSelectIsReproducibleFromSeed(t *testing.T) {
	net := &stubNet{logits: []float32{0.2, 0.1, -0.4}}
	legal := []move{moveA, moveB, moveC}
	draw := func() []int {
		s, err := rl.NewSelector(testDomain(), testActionSize, net, rand.New(rand.NewPCG(21, 34)))
		require.NoError(t, err)
		actions := make([]int, 50)
		for i := range actions {
			actions[i], _, err = s.Select(legal, []float32{0, 0, 0, 0})
			require.NoError(t, err)
		}
		return actions
	}

	first := draw()
	assert.Equal(t, first, draw())
	assert.Greater(t, len(uniqueInts(first)), 1)
}

func uniqueInts(xs []int) map[int]struct{} {
	set := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		set[x] = struct{}{}
	}
	return set
}

func TestSelectFallsBackWithoutLegalMoves(t *testing.T) {
	net := &stubNet{logits: []float32{0, 0, 0}}
	s := newSelector(t, net)

	for _, legal := range [][]move{nil, {moveEnd}} {
		action, logProb, err := s.Select(legal, []float32{0, 0, 0, 0})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, action, 0)
		assert.Less(t, action, testActionSize)
		assert.Equal(t, float32(0), logProb)
	}
	// ネットワークは呼ばれない
	assert.Nil(t, net.last)
}

func TestSelectSanitizesObservation(t *testing.T) {
	net := &stubNet{logits: []float32{0, 0, 0}}
	s := newSelector(t, net)

	observation := []float32{math32.NaN(), math32.Inf(1), 2, math32.Inf(-1)}
	_, _, err := s.Select([]move{moveA}, observation)
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 0, 2, 0}, net.last)
	assert.True(t, math32.IsNaN(observation[0]))
}

func TestSelectDetectsNonFiniteLogits(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{0, math32.NaN(), 0}})

	_, _, err := s.Select([]move{moveA, moveB}, []float32{0, 0, 0, 0})
	require.ErrorIs(t, err, rl.ErrNumericalDivergence)

	var divergence *rl.DivergenceError
	require.True(t, errors.As(err, &divergence))
	assert.Equal(t, rl.CheckpointLogits, divergence.Checkpoint)
	assert.Equal(t, 1, divergence.Index)
}

func TestSelectWithCorruptedNetwork(t *testing.T) {
	net, err := actorcritic.New(testStateSize, testActionSize, 8, rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)
	for i := range net.Trunk1.Weight.Data {
		net.Trunk1.Weight.Data[i] = math32.NaN()
	}
	s := newSelector(t, net)

	_, _, err = s.Select([]move{moveA, moveB, moveC}, []float32{1, 2, 3, 4})
	assert.ErrorIs(t, err, rl.ErrNumericalDivergence)
}

func TestSelectRejectsWrongLogitCount(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{0, 0}})
	_, _, err := s.Select([]move{moveA}, []float32{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestGreedy(t *testing.T) {
	s := newSelector(t, &stubNet{logits: []float32{1, 4, 2}})

	action, logProb, err := s.Greedy([]move{moveA, moveC}, []float32{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, action)
	assert.InDelta(t, math32.Log(1/(1+math32.Exp(-1))), logProb, 1e-5)

	action, _, err = s.Greedy([]move{moveA, moveB, moveC}, []float32{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, action)
}
