package rl

import (
	"fmt"
	"slices"
)

type Transition struct {
	State   []float32
	Action  int
	LogProb float32
	Reward  float32
	Done    bool
}

// Trajectory stores one on-policy rollout as five parallel arrays in temporal order.
// The arrays only grow through Store and only shrink through Clear, so their lengths always agree.
type Trajectory struct {
	states   [][]float32
	actions  []int
	logProbs []float32
	rewards  []float32
	dones    []bool
}

func (tr *Trajectory) Store(t Transition) {
	tr.states = append(tr.states, slices.Clone(t.State))
	tr.actions = append(tr.actions, t.Action)
	tr.logProbs = append(tr.logProbs, t.LogProb)
	tr.rewards = append(tr.rewards, t.Reward)
	tr.dones = append(tr.dones, t.Done)
}

func (tr *Trajectory) Len() int {
	return len(tr.actions)
}

// All returns copies of the five arrays.
func (tr *Trajectory) All() (states [][]float32, actions []int, logProbs []float32, rewards []float32, dones []bool) {
	states = make([][]float32, len(tr.states))
	for i, s := range tr.states {
		states[i] = slices.Clone(s)
	}
	return states, slices.Clone(tr.actions), slices.Clone(tr.logProbs), slices.Clone(tr.rewards), slices.Clone(tr.dones)
}

func (tr *Trajectory) Snapshot() *Trajectory {
	states, actions, logProbs, rewards, dones := tr.All()
	return &Trajectory{
		states:   states,
		actions:  actions,
		logProbs: logProbs,
		rewards:  rewards,
		dones:    dones,
	}
}

func (tr *Trajectory) Clear() {
	*tr = Trajectory{}
}

func (tr *Trajectory) Validate(actionSize int) error {
	n := len(tr.actions)
	if len(tr.states) != n || len(tr.logProbs) != n || len(tr.rewards) != n || len(tr.dones) != n {
		return fmt.Errorf("trajectory arrays differ in length: states=%d actions=%d log_probs=%d rewards=%d dones=%d",
			len(tr.states), n, len(tr.logProbs), len(tr.rewards), len(tr.dones))
	}
	for i, a := range tr.actions {
		if a < 0 || a >= actionSize {
			return fmt.Errorf("action %d at step %d is outside [0, %d)", a, i, actionSize)
		}
	}
	return nil
}
