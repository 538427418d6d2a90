package rl

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog"
	"github.com/sw965/pokerppo/mathx"
	"github.com/sw965/pokerppo/mathx/randx"
	"github.com/sw965/pokerppo/model/actorcritic"
)

type EpisodeSummary struct {
	Episode int
	Reward  float32
	Steps   int
	Stats   UpdateStats
}

// Agent owns the network, the optimizer state and the trajectory of one PPO learner.
// It is not safe for concurrent use.
type Agent[M comparable] struct {
	cfg Config
	env Environment[M]

	net        *actorcritic.Network
	selector   *Selector[M]
	updater    *Updater
	gae        GAE
	trajectory Trajectory
	rng        *rand.Rand
	logger     zerolog.Logger

	// OnEpisode is called after every completed rollout+learn cycle of Train.
	OnEpisode func(EpisodeSummary)
}

func NewAgent[M comparable](env Environment[M], domain MoveDomain[M], cfg Config) (*Agent[M], error) {
	if env == nil {
		return nil, fmt.Errorf("agent: environment is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	rng := randx.NewRand(cfg.Seed)
	net, err := actorcritic.New(cfg.StateSize, cfg.ActionSize, cfg.HiddenSize, rng)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	selector, err := NewSelector(domain, cfg.ActionSize, net, rng)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	return &Agent[M]{
		cfg:      cfg,
		env:      env,
		net:      net,
		selector: selector,
		updater:  NewUpdater(&cfg, net),
		gae:      GAE{Gamma: cfg.Gamma, Lambda: cfg.Lambda},
		rng:      rng,
		logger:   cfg.Logger,
	}, nil
}

func (a *Agent[M]) Config() Config {
	return a.cfg
}

// Network returns a deep copy of the current parameters.
func (a *Agent[M]) Network() *actorcritic.Network {
	return a.net.Clone()
}

func (a *Agent[M]) Select(legal []M, observation []float32) (int, float32, error) {
	return a.selector.Select(legal, observation)
}

func (a *Agent[M]) Probabilities(legal []M, observation []float32) ([]float32, error) {
	return a.selector.Probabilities(legal, observation)
}

func (a *Agent[M]) Store(t Transition) {
	a.trajectory.Store(t)
}

// Trajectory returns a copy of the transitions stored so far.
func (a *Agent[M]) Trajectory() *Trajectory {
	return a.trajectory.Snapshot()
}

// Values evaluates the critic on every stored state in one batch.
func (a *Agent[M]) Values() ([]float32, error) {
	states := make([][]float32, a.trajectory.Len())
	for t, s := range a.trajectory.states {
		states[t] = mathx.Sanitize(s)
		if err := checkFinite(CheckpointState, t, states[t]); err != nil {
			return nil, err
		}
	}
	_, values, err := a.net.ForwardBatch(states)
	if err != nil {
		return nil, err
	}
	for t, v := range values {
		if !mathx.IsFinite(v) {
			return nil, &DivergenceError{Checkpoint: CheckpointValue, Step: t}
		}
	}
	return values, nil
}

// Advantages runs GAE over the stored trajectory with the current critic.
func (a *Agent[M]) Advantages() ([]AdvantageRecord, error) {
	values, err := a.Values()
	if err != nil {
		return nil, err
	}
	records, err := a.gae.Compute(a.trajectory.rewards, a.trajectory.dones, values)
	if err != nil {
		return nil, err
	}
	if a.cfg.NormalizeAdvantages {
		records = NormalizeAdvantages(records)
	}
	return records, nil
}

// Update applies one PPO step over the stored trajectory and clears it on success.
// Calling Update on an empty trajectory returns ErrEmptyTrajectory.
func (a *Agent[M]) Update(records []AdvantageRecord) (UpdateStats, error) {
	stats, err := a.updater.Step(a.net, &a.trajectory, records)
	if err != nil {
		return UpdateStats{}, err
	}
	a.trajectory.Clear()
	return stats, nil
}

// Learn computes advantages and updates the network. The trajectory is empty afterwards whatever the outcome.
func (a *Agent[M]) Learn() (UpdateStats, error) {
	defer a.trajectory.Clear()

	if a.trajectory.Len() == 0 {
		return UpdateStats{}, ErrEmptyTrajectory
	}
	records, err := a.Advantages()
	if err != nil {
		return UpdateStats{}, err
	}
	return a.Update(records)
}

func (a *Agent[M]) rollout(pick func([]M, []float32) (int, float32, error), store bool) (float32, int, error) {
	observation, err := a.env.Reset()
	if err != nil {
		return 0, 0, fmt.Errorf("env reset: %w", err)
	}

	var episodeReward float32
	steps := 0
	for done := false; !done; {
		action, logProb, err := pick(a.env.LegalMoves(), observation)
		if err != nil {
			return 0, steps, err
		}

		next, reward, d, _, err := a.env.Step(action)
		if err != nil {
			return 0, steps, fmt.Errorf("env step %d: %w", steps, err)
		}
		if store {
			a.trajectory.Store(Transition{
				State:   observation,
				Action:  action,
				LogProb: logProb,
				Reward:  reward,
				Done:    d,
			})
		}

		observation = slices.Clone(next)
		episodeReward += reward
		steps++
		done = d
	}
	return episodeReward, steps, nil
}

// RunEpisode plays one episode with the sampling policy and then learns from it.
func (a *Agent[M]) RunEpisode() (EpisodeSummary, error) {
	a.trajectory.Clear()

	reward, steps, err := a.rollout(a.selector.Select, true)
	if err != nil {
		a.trajectory.Clear()
		return EpisodeSummary{}, err
	}

	stats, err := a.Learn()
	if err != nil {
		return EpisodeSummary{}, err
	}
	return EpisodeSummary{Reward: reward, Steps: steps, Stats: stats}, nil
}

// Train runs episodes rollout+learn cycles. A numerical divergence or environment error stops training.
func (a *Agent[M]) Train(episodes int) error {
	return a.TrainContext(context.Background(), episodes)
}

// TrainContext is Train that also stops between episodes once ctx is done.
// An episode in progress always runs to the end.
func (a *Agent[M]) TrainContext(ctx context.Context, episodes int) error {
	for i := 0; i < episodes; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		summary, err := a.RunEpisode()
		if err != nil {
			return fmt.Errorf("episode %d: %w", i+1, err)
		}
		summary.Episode = i + 1

		a.logger.Info().
			Int("episode", summary.Episode).
			Int("episodes", episodes).
			Float32("reward", summary.Reward).
			Int("steps", summary.Steps).
			Msg("episode finished")
		a.logger.Debug().
			Int("episode", summary.Episode).
			Float32("loss", summary.Stats.Loss).
			Float32("actor_loss", summary.Stats.ActorLoss).
			Float32("critic_loss", summary.Stats.CriticLoss).
			Float32("entropy", summary.Stats.Entropy).
			Float32("clip_fraction", summary.Stats.ClipFraction).
			Float32("grad_norm", summary.Stats.GradNorm).
			Int("updates", summary.Stats.Updates).
			Msg("policy updated")

		if a.OnEpisode != nil {
			a.OnEpisode(summary)
		}
	}
	return nil
}

// Evaluate plays episodes greedily without storing or learning and returns the mean episode reward.
func (a *Agent[M]) Evaluate(episodes int) (float32, error) {
	if episodes <= 0 {
		return 0, fmt.Errorf("evaluate: episodes must be positive, got %d", episodes)
	}

	var total float32
	for i := 0; i < episodes; i++ {
		reward, _, err := a.rollout(a.selector.Greedy, false)
		if err != nil {
			return 0, fmt.Errorf("evaluation episode %d: %w", i+1, err)
		}
		total += reward
	}
	return total / float32(episodes), nil
}
