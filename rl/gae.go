package rl

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

type AdvantageRecord struct {
	Return    float32
	Advantage float32
}

// GAE is the generalized advantage estimator. Value beyond the end of the
// trajectory is taken as zero; done steps cut off bootstrapping.
type GAE struct {
	Gamma  float32
	Lambda float32
}

func (g GAE) Compute(rewards []float32, dones []bool, values []float32) ([]AdvantageRecord, error) {
	n := len(rewards)
	if len(dones) != n || len(values) != n {
		return nil, fmt.Errorf("gae: rewards=%d dones=%d values=%d must have equal length", n, len(dones), len(values))
	}

	records := make([]AdvantageRecord, n)
	var gae, nextValue float32
	for t := n - 1; t >= 0; t-- {
		var notDone float32 = 1.0
		if dones[t] {
			notDone = 0.0
		}
		// δ_t = r_t + γ V(s_{t+1}) (1 - d_t) - V(s_t)
		delta := rewards[t] + g.Gamma*nextValue*notDone - values[t]
		// A_t = δ_t + γλ A_{t+1} (1 - d_t)
		gae = delta + g.Gamma*g.Lambda*gae*notDone
		records[t].Advantage = gae
		nextValue = values[t]
	}

	for t := range records {
		records[t].Return = records[t].Advantage + values[t]
	}
	return records, nil
}

// NormalizeAdvantages standardizes advantages to zero mean and unit (sample) variance.
// Returns are left untouched. Fewer than two records are returned as they are.
func NormalizeAdvantages(records []AdvantageRecord) []AdvantageRecord {
	normalized := make([]AdvantageRecord, len(records))
	copy(normalized, records)
	if len(records) < 2 {
		return normalized
	}

	xs := make([]float64, len(records))
	for i, r := range records {
		xs[i] = float64(r.Advantage)
	}
	mean, std := stat.MeanStdDev(xs, nil)
	for i := range normalized {
		normalized[i].Advantage = float32((xs[i] - mean) / (std + 1e-8))
	}
	return normalized
}
