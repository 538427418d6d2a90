// Package holdem implements a heads-up no-limit hold'em hand against a uniformly random opponent.
// One episode is one hand. The agent is always seat 0.
package holdem

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/rs/zerolog"
	"github.com/sw965/omw/mathx/randx"
)

var (
	ErrHandOver      = errors.New("holdem: hand is over")
	ErrInvalidConfig = errors.New("holdem: invalid config")
)

const (
	hero     = 0
	villain  = 1
	noPlayer = -1
)

// StateSize is the length of an observation.
// hole cards, board, stage one-hot, then hero stack, villain stack, pot, amount to call, button.
const StateSize = 2*cardFeatures + 5*cardFeatures + 4 + 5

const cardFeatures = numRanks + numSuits

type EnvConfig struct {
	StartingStack int
	SmallBlind    int
	BigBlind      int
	Logger        zerolog.Logger
}

func DefaultEnvConfig() EnvConfig {
	return EnvConfig{
		StartingStack: 200,
		SmallBlind:    1,
		BigBlind:      2,
		Logger:        zerolog.Nop(),
	}
}

func (c *EnvConfig) Validate() error {
	if c.SmallBlind <= 0 || c.BigBlind < c.SmallBlind {
		return fmt.Errorf("%w: blinds %d/%d", ErrInvalidConfig, c.SmallBlind, c.BigBlind)
	}
	if c.StartingStack <= c.BigBlind {
		return fmt.Errorf("%w: starting stack %d must exceed the big blind %d", ErrInvalidConfig, c.StartingStack, c.BigBlind)
	}
	return nil
}

// Info is returned from Step as the environment's info value.
type Info struct {
	Stage    Stage
	Played   Action
	Showdown bool
	// 手の途中と引き分けでは -1
	Winner int
}

type Env struct {
	cfg    EnvConfig
	rng    *rand.Rand
	logger zerolog.Logger

	deck  []card
	next  int
	hole  [2][2]card
	board []card

	stacks    [2]int
	committed [2]int
	total     [2]int
	acted     [2]bool

	button   int
	toAct    int
	stage    Stage
	over     bool
	showdown bool
	winner   int
	hands    int
}

func NewEnv(cfg EnvConfig, rng *rand.Rand) (*Env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("holdem: rng is nil")
	}
	deck, err := newDeck()
	if err != nil {
		return nil, err
	}
	return &Env{
		cfg:    cfg,
		rng:    rng,
		logger: cfg.Logger,
		deck:   deck,
		over:   true,
		winner: noPlayer,
		button: villain,
	}, nil
}

// Reset deals a new hand and plays the opponent until the agent has a decision.
// Hands the opponent ends before the agent acts are discarded.
func (e *Env) Reset() ([]float32, error) {
	for {
		e.deal()
		if err := e.playVillain(); err != nil {
			return nil, err
		}
		if !e.over {
			return e.observation(), nil
		}
	}
}

// Step plays the agent's action and then the opponent's replies.
// An index that is not a legal action is played as CHECK when that is legal, otherwise as FOLD.
func (e *Env) Step(action int) ([]float32, float32, bool, any, error) {
	if e.over {
		return nil, 0, true, nil, ErrHandOver
	}

	a := Action(action)
	legal := e.legalActions(hero)
	if !slices.Contains(legal, a) {
		if slices.Contains(legal, ActionCheck) {
			a = ActionCheck
		} else {
			a = ActionFold
		}
	}

	if err := e.apply(hero, a); err != nil {
		return nil, 0, false, nil, err
	}
	if err := e.playVillain(); err != nil {
		return nil, 0, false, nil, err
	}

	info := Info{Stage: e.stage, Played: a, Showdown: e.showdown, Winner: e.winner}
	var reward float32
	if e.over {
		reward = float32(e.stacks[hero]-e.cfg.StartingStack) / float32(e.cfg.BigBlind)
	}
	return e.observation(), reward, e.over, info, nil
}

// LegalMoves lists the agent's legal actions. A hand that ended at showdown reports only StageShowdown.
func (e *Env) LegalMoves() []Move {
	if e.over {
		if e.showdown {
			return []Move{StageShowdown}
		}
		return nil
	}
	legal := e.legalActions(hero)
	moves := make([]Move, len(legal))
	for i, a := range legal {
		moves[i] = a
	}
	return moves
}

// Chips returns the chips behind and in the pot for both seats.
func (e *Env) Chips() (stacks, pot [2]int) {
	return e.stacks, e.total
}

func (e *Env) Stage() Stage {
	return e.stage
}

func (e *Env) Over() bool {
	return e.over
}

func (e *Env) draw() card {
	c := e.deck[e.next]
	e.next++
	return c
}

func (e *Env) deal() {
	shuffle(e.deck, e.rng)
	e.next = 0
	e.hands++

	e.button = 1 - e.button
	e.stacks = [2]int{e.cfg.StartingStack, e.cfg.StartingStack}
	e.committed = [2]int{}
	e.total = [2]int{}
	e.acted = [2]bool{}
	e.board = e.board[:0]
	e.stage = StagePreflop
	e.over = false
	e.showdown = false
	e.winner = noPlayer

	for p := range e.hole {
		e.hole[p] = [2]card{e.draw(), e.draw()}
	}

	// ヘッズアップではボタンがスモールブラインド
	e.put(e.button, e.cfg.SmallBlind)
	e.put(1-e.button, e.cfg.BigBlind)
	e.toAct = e.button
}

func (e *Env) put(p, amount int) {
	amount = min(amount, e.stacks[p])
	e.stacks[p] -= amount
	e.committed[p] += amount
	e.total[p] += amount
}

func (e *Env) toCall(p int) int {
	return max(e.committed[1-p]-e.committed[p], 0)
}

func (e *Env) pot() int {
	return e.total[0] + e.total[1]
}

// raiseSize is the raise on top of the call for a pot-fraction action.
func (e *Env) raiseSize(p int, a Action) int {
	var size int
	base := e.pot() + e.toCall(p)
	switch a {
	case ActionRaiseHalfPot:
		size = base / 2
	case ActionRaisePot:
		size = base
	case ActionRaise2Pot:
		size = 2 * base
	}
	return max(size, e.cfg.BigBlind)
}

func (e *Env) legalActions(p int) []Action {
	if e.over || e.toAct != p {
		return nil
	}

	toCall := e.toCall(p)
	var legal []Action
	if toCall == 0 {
		legal = append(legal, ActionCheck)
	} else {
		legal = append(legal, ActionFold, ActionCall)
	}

	if e.stacks[p] > toCall && e.stacks[1-p] > 0 {
		for _, a := range []Action{ActionRaiseHalfPot, ActionRaisePot, ActionRaise2Pot} {
			if toCall+e.raiseSize(p, a) < e.stacks[p] {
				legal = append(legal, a)
			}
		}
		legal = append(legal, ActionAllIn)
	}
	return legal
}

func (e *Env) apply(p int, a Action) error {
	if !slices.Contains(e.legalActions(p), a) {
		return fmt.Errorf("holdem: %v is not legal for seat %d", a, p)
	}

	toCall := e.toCall(p)
	switch a {
	case ActionFold:
		e.finish(1 - p)
		return nil
	case ActionCheck:
	case ActionCall:
		e.put(p, toCall)
	case ActionAllIn:
		e.put(p, e.stacks[p])
	default:
		e.put(p, toCall+e.raiseSize(p, a))
	}
	e.acted[p] = true
	if e.committed[p] > e.committed[1-p] {
		e.acted[1-p] = false
	}

	if !e.streetDone() {
		e.toAct = 1 - p
		return nil
	}
	return e.advance()
}

func (e *Env) streetDone() bool {
	high := max(e.committed[0], e.committed[1])
	for p := range e.stacks {
		if e.stacks[p] == 0 {
			continue
		}
		if !e.acted[p] || e.committed[p] < high {
			return false
		}
	}
	return true
}

func (e *Env) advance() error {
	e.committed = [2]int{}
	e.acted = [2]bool{}

	for {
		switch e.stage {
		case StagePreflop:
			e.board = append(e.board, e.draw(), e.draw(), e.draw())
			e.stage = StageFlop
		case StageFlop:
			e.board = append(e.board, e.draw())
			e.stage = StageTurn
		case StageTurn:
			e.board = append(e.board, e.draw())
			e.stage = StageRiver
		case StageRiver:
			return e.settle()
		}

		// オールインがいれば残りのボードを配り切る
		if e.stacks[hero] > 0 && e.stacks[villain] > 0 {
			break
		}
	}
	e.toAct = 1 - e.button
	return nil
}

func (e *Env) settle() error {
	// コールされなかった分を返す
	matched := min(e.total[0], e.total[1])
	for p := range e.total {
		e.stacks[p] += e.total[p] - matched
		e.total[p] = matched
	}

	heroScore, err := score(e.hole[hero], e.board)
	if err != nil {
		return err
	}
	villainScore, err := score(e.hole[villain], e.board)
	if err != nil {
		return err
	}

	e.stage = StageShowdown
	e.showdown = true
	switch {
	case heroScore > villainScore:
		e.finish(hero)
	case heroScore < villainScore:
		e.finish(villain)
	default:
		e.stacks[hero] += e.total[hero]
		e.stacks[villain] += e.total[villain]
		e.total = [2]int{}
		e.over = true
	}

	e.logger.Debug().
		Int("hand", e.hands).
		Str("hero", describe(e.hole[hero], e.board)).
		Str("villain", describe(e.hole[villain], e.board)).
		Int("winner", e.winner).
		Msg("showdown")
	return nil
}

// finish awards the whole pot to winner and ends the hand.
func (e *Env) finish(winner int) {
	e.stacks[winner] += e.pot()
	e.total = [2]int{}
	e.committed = [2]int{}
	e.winner = winner
	e.over = true
}

func (e *Env) playVillain() error {
	for !e.over && e.toAct == villain {
		a, err := randx.Choice(e.legalActions(villain), e.rng)
		if err != nil {
			return fmt.Errorf("holdem: opponent: %w", err)
		}
		if err := e.apply(villain, a); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) observation() []float32 {
	obs := make([]float32, StateSize)
	encodeCard := func(offset int, c card) {
		obs[offset+c.rank-1] = 1
		obs[offset+numRanks+c.suit] = 1
	}

	offset := 0
	for _, c := range e.hole[hero] {
		encodeCard(offset, c)
		offset += cardFeatures
	}
	for i := 0; i < 5; i++ {
		if i < len(e.board) {
			encodeCard(offset, e.board[i])
		}
		offset += cardFeatures
	}
	if e.stage <= StageRiver {
		obs[offset+int(e.stage)] = 1
	}
	offset += 4

	start := float32(e.cfg.StartingStack)
	obs[offset] = float32(e.stacks[hero]) / start
	obs[offset+1] = float32(e.stacks[villain]) / start
	obs[offset+2] = float32(e.pot()) / start
	obs[offset+3] = float32(e.toCall(hero)) / start
	if e.button == hero {
		obs[offset+4] = 1
	}
	return obs
}
