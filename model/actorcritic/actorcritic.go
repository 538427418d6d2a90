// Package actorcritic implements a shared-trunk policy/value network:
// two dense ReLU layers feeding an actor head (raw action logits) and a
// critic head (scalar state value).
package actorcritic

import (
	"fmt"
	"math/rand/v2"

	"github.com/sw965/pokerppo/blas32/vector"
	"github.com/sw965/pokerppo/model/mlp"
)

const DefaultHiddenSize = 64

type Network struct {
	StateSize  int
	ActionSize int

	Trunk1 mlp.Parameter
	Trunk2 mlp.Parameter
	Actor  mlp.Parameter
	Critic mlp.Parameter
}

func New(stateSize, actionSize, hidden int, rng *rand.Rand) (*Network, error) {
	if stateSize <= 0 {
		return nil, fmt.Errorf("stateSize must be positive, got %d", stateSize)
	}
	if actionSize <= 0 {
		return nil, fmt.Errorf("actionSize must be positive, got %d", actionSize)
	}
	if hidden <= 0 {
		return nil, fmt.Errorf("hidden must be positive, got %d", hidden)
	}

	return &Network{
		StateSize:  stateSize,
		ActionSize: actionSize,
		Trunk1:     mlp.NewAffineParameter(stateSize, hidden, rng),
		Trunk2:     mlp.NewAffineParameter(hidden, hidden, rng),
		Actor:      mlp.NewAffineParameter(hidden, actionSize, rng),
		Critic:     mlp.NewAffineParameter(hidden, 1, rng),
	}, nil
}

// Parameters returns the layers in a fixed order. The returned values share
// their backing arrays with the network, so updating them updates the network.
func (n *Network) Parameters() mlp.Parameters {
	return mlp.Parameters{n.Trunk1, n.Trunk2, n.Actor, n.Critic}
}

func (n *Network) Clone() *Network {
	return &Network{
		StateSize:  n.StateSize,
		ActionSize: n.ActionSize,
		Trunk1:     n.Trunk1.Clone(),
		Trunk2:     n.Trunk2.Clone(),
		Actor:      n.Actor.Clone(),
		Critic:     n.Critic.Clone(),
	}
}

type Output struct {
	Logits []float32
	Value  float32
}

// Backward maps (dL/dlogits, dL/dvalue) to per-layer gradients, in Parameters order.
type Backward func(dLogits []float32, dValue float32) (mlp.GradBuffers, error)

func (n *Network) Propagate(state []float32) (Output, Backward, error) {
	if len(state) != n.StateSize {
		return Output{}, nil, fmt.Errorf("state size %d does not match network state size %d", len(state), n.StateSize)
	}

	x := vector.Of(state)
	u1, affine1, err := mlp.AffineForward(x, &n.Trunk1)
	if err != nil {
		return Output{}, nil, err
	}
	h1, relu1, err := mlp.ReLUForward(u1, nil)
	if err != nil {
		return Output{}, nil, err
	}
	u2, affine2, err := mlp.AffineForward(h1, &n.Trunk2)
	if err != nil {
		return Output{}, nil, err
	}
	h2, relu2, err := mlp.ReLUForward(u2, nil)
	if err != nil {
		return Output{}, nil, err
	}
	logits, actor, err := mlp.AffineForward(h2, &n.Actor)
	if err != nil {
		return Output{}, nil, err
	}
	value, critic, err := mlp.AffineForward(h2, &n.Critic)
	if err != nil {
		return Output{}, nil, err
	}

	out := Output{
		Logits: logits.Data,
		Value:  value.Data[0],
	}

	backward := func(dLogits []float32, dValue float32) (mlp.GradBuffers, error) {
		if len(dLogits) != n.ActionSize {
			return nil, fmt.Errorf("dLogits size %d does not match action size %d", len(dLogits), n.ActionSize)
		}

		dhActor, actorGrad, err := actor(vector.Of(dLogits))
		if err != nil {
			return nil, err
		}
		dhCritic, criticGrad, err := critic(vector.Of([]float32{dValue}))
		if err != nil {
			return nil, err
		}
		// 2つのヘッドからの勾配は共有層で合流する
		chain := vector.Sum(dhActor, dhCritic)

		var trunk2Grad, trunk1Grad mlp.GradBuffer
		if chain, _, err = relu2(chain); err != nil {
			return nil, err
		}
		if chain, trunk2Grad, err = affine2(chain); err != nil {
			return nil, err
		}
		if chain, _, err = relu1(chain); err != nil {
			return nil, err
		}
		if _, trunk1Grad, err = affine1(chain); err != nil {
			return nil, err
		}

		return mlp.GradBuffers{trunk1Grad, trunk2Grad, actorGrad, criticGrad}, nil
	}
	return out, backward, nil
}

func (n *Network) Forward(state []float32) ([]float32, float32, error) {
	out, _, err := n.Propagate(state)
	if err != nil {
		return nil, 0, err
	}
	return out.Logits, out.Value, nil
}

// ForwardBatch evaluates every state in order.
func (n *Network) ForwardBatch(states [][]float32) ([][]float32, []float32, error) {
	logits := make([][]float32, len(states))
	values := make([]float32, len(states))
	for i, s := range states {
		l, v, err := n.Forward(s)
		if err != nil {
			return nil, nil, fmt.Errorf("state %d: %w", i, err)
		}
		logits[i] = l
		values[i] = v
	}
	return logits, values, nil
}
