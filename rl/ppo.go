package rl

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/sw965/pokerppo/mathx"
	"github.com/sw965/pokerppo/model/actorcritic"
	"github.com/sw965/pokerppo/model/mlp"
)

type UpdateStats struct {
	Steps        int
	ActorLoss    float32
	CriticLoss   float32
	Entropy      float32
	Loss         float32
	ClipFraction float32
	GradNorm     float32
	Updates      int
}

// Ratio is π_new(a|s) / π_old(a|s) computed from log-probabilities.
func Ratio(newLogProb, oldLogProb float32) float32 {
	return math32.Exp(newLogProb - oldLogProb)
}

// Surrogate is the pessimistic clipped objective min(r·A, clip(r, 1-ε, 1+ε)·A).
func Surrogate(ratio, advantage, clipEpsilon float32) float32 {
	surr1 := ratio * advantage
	surr2 := mathx.Clip(ratio, 1-clipEpsilon, 1+clipEpsilon) * advantage
	return min(surr1, surr2)
}

// Updater performs one clipped-surrogate gradient step per trajectory.
type Updater struct {
	ClipEpsilon  float32
	EntropyCoeff float32
	CriticCoeff  float32
	MaxGradNorm  float32

	optimizer *mlp.Adam
}

func NewUpdater(cfg *Config, net *actorcritic.Network) *Updater {
	return &Updater{
		ClipEpsilon:  cfg.ClipEpsilon,
		EntropyCoeff: cfg.EntropyCoeff,
		CriticCoeff:  cfg.CriticCoeff,
		MaxGradNorm:  cfg.MaxGradNorm,
		optimizer:    mlp.NewAdam(net.Parameters(), cfg.LearningRate),
	}
}

// Step recomputes the policy for every stored state and applies exactly one optimizer step to net.
// Nothing is modified when an error is returned.
func (u *Updater) Step(net *actorcritic.Network, traj *Trajectory, records []AdvantageRecord) (UpdateStats, error) {
	n := traj.Len()
	if n == 0 {
		return UpdateStats{}, ErrEmptyTrajectory
	}
	if len(records) != n {
		return UpdateStats{}, fmt.Errorf("ppo: %d advantage records for %d transitions", len(records), n)
	}
	if err := traj.Validate(net.ActionSize); err != nil {
		return UpdateStats{}, err
	}

	states := make([][]float32, n)
	for t, s := range traj.states {
		states[t] = mathx.Sanitize(s)
		if err := checkFinite(CheckpointState, t, states[t]); err != nil {
			return UpdateStats{}, err
		}
	}

	outputs := make([]actorcritic.Output, n)
	backwards := make([]actorcritic.Backward, n)
	for t, s := range states {
		out, backward, err := net.Propagate(s)
		if err != nil {
			return UpdateStats{}, fmt.Errorf("ppo: forward at step %d: %w", t, err)
		}
		if err := checkFinite(CheckpointLogits, t, out.Logits); err != nil {
			return UpdateStats{}, err
		}
		outputs[t] = out
		backwards[t] = backward
	}

	// 行動は既に合法手から選ばれているので, ここではマスクしない
	logProbs := make([][]float32, n)
	ratios := make([]float32, n)
	for t, out := range outputs {
		logProbs[t] = mathx.LogSoftmax(out.Logits)
		ratios[t] = Ratio(logProbs[t][traj.actions[t]], traj.logProbs[t])
		if !mathx.IsFinite(ratios[t]) {
			return UpdateStats{}, &DivergenceError{Checkpoint: CheckpointRatio, Step: t, Index: traj.actions[t]}
		}
	}

	nf := float32(n)
	lo, hi := 1-u.ClipEpsilon, 1+u.ClipEpsilon
	stats := UpdateStats{Steps: n}
	grads := net.Parameters().NewGradsZerosLike()

	for t, out := range outputs {
		action := traj.actions[t]
		logp := logProbs[t]
		probs := make([]float32, len(logp))
		for j, lp := range logp {
			probs[j] = math32.Exp(lp)
		}
		entropy := mathx.Entropy(probs)

		ratio := ratios[t]
		adv := records[t].Advantage
		surr1 := ratio * adv
		surr2 := mathx.Clip(ratio, lo, hi) * adv
		if ratio < lo || ratio > hi {
			stats.ClipFraction += 1.0 / nf
		}

		// actor: L = -(1/n) Σ min(surr1, surr2)
		// min がクリップ側を選んだときは ratio に依存しないので勾配は0
		var dRatio float32
		if surr1 <= surr2 {
			dRatio = -adv / nf
			stats.ActorLoss -= surr1 / nf
		} else {
			stats.ActorLoss -= surr2 / nf
		}
		// d ratio / d logπ(a) = ratio
		dLogProb := dRatio * ratio

		dLogits := make([]float32, len(logp))
		for j, p := range probs {
			// d logπ(a) / dz_j = 1[j=a] - p_j
			indicator := float32(0.0)
			if j == action {
				indicator = 1.0
			}
			dLogits[j] = dLogProb * (indicator - p)
			// entropy loss: -(1/n) Σ H,  d(-H)/dz_j = p_j (log p_j + H)
			dLogits[j] += u.EntropyCoeff / nf * p * (logp[j] + entropy)
		}
		stats.Entropy += entropy / nf

		// critic: c * (1/n) Σ (R - V)^2
		diff := records[t].Return - out.Value
		stats.CriticLoss += diff * diff / nf
		dValue := -2.0 * u.CriticCoeff * diff / nf

		g, err := backwards[t](dLogits, dValue)
		if err != nil {
			return UpdateStats{}, fmt.Errorf("ppo: backward at step %d: %w", t, err)
		}
		grads.Axpy(1.0, g)
	}

	stats.Loss = stats.ActorLoss + u.CriticCoeff*stats.CriticLoss - u.EntropyCoeff*stats.Entropy
	if u.MaxGradNorm > 0 {
		stats.GradNorm = grads.ClipNorm(u.MaxGradNorm)
	} else {
		stats.GradNorm = grads.Norm()
	}

	if err := u.optimizer.Step(net.Parameters(), grads); err != nil {
		return UpdateStats{}, err
	}
	stats.Updates = u.optimizer.Iter()
	return stats, nil
}
