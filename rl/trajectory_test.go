package rl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/pokerppo/rl"
)

func TestTrajectoryStoreAndAll(t *testing.T) {
	var traj rl.Trajectory
	assert.Zero(t, traj.Len())

	state := []float32{1, 2, 3, 4}
	traj.Store(rl.Transition{State: state, Action: 2, LogProb: -0.5, Reward: 1, Done: false})
	traj.Store(rl.Transition{State: []float32{0, 0, 0, 0}, Action: 0, LogProb: -1.5, Reward: -2, Done: true})
	require.Equal(t, 2, traj.Len())

	// 呼び出し側のスライスを書き換えても保存済みの状態は変わらない
	state[0] = 99

	states, actions, logProbs, rewards, dones := traj.All()
	assert.Equal(t, [][]float32{{1, 2, 3, 4}, {0, 0, 0, 0}}, states)
	assert.Equal(t, []int{2, 0}, actions)
	assert.Equal(t, []float32{-0.5, -1.5}, logProbs)
	assert.Equal(t, []float32{1, -2}, rewards)
	assert.Equal(t, []bool{false, true}, dones)

	states[0][0] = 7
	actions[0] = 1
	states, actions, _, _, _ = traj.All()
	assert.Equal(t, float32(1), states[0][0])
	assert.Equal(t, 2, actions[0])
	assert.NoError(t, traj.Validate(testActionSize))
}

func TestTrajectoryClear(t *testing.T) {
	var traj rl.Trajectory
	traj.Store(rl.Transition{State: []float32{1}, Action: 0})
	snapshot := traj.Snapshot()

	traj.Clear()
	assert.Zero(t, traj.Len())
	states, actions, _, _, _ := traj.All()
	assert.Empty(t, states)
	assert.Empty(t, actions)

	assert.Equal(t, 1, snapshot.Len())
}

func TestTrajectoryValidate(t *testing.T) {
	var traj rl.Trajectory
	traj.Store(rl.Transition{State: []float32{1}, Action: 3})
	assert.Error(t, traj.Validate(3))
	assert.NoError(t, traj.Validate(4))

	traj.Store(rl.Transition{State: []float32{1}, Action: -1})
	assert.Error(t, traj.Validate(4))
}
