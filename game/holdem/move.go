package holdem

import (
	"fmt"

	"github.com/sw965/pokerppo/rl"
)

// Move is either an Action or the Stage marker reported at showdown.
type Move interface {
	fmt.Stringer
	isMove()
}

type Action int

const (
	ActionFold         Action = 0
	ActionCheck        Action = 1
	ActionCall         Action = 2
	ActionRaise3BB     Action = 3
	ActionRaiseHalfPot Action = 3
	ActionRaisePot     Action = 4
	ActionRaise2Pot    Action = 5
	ActionAllIn        Action = 6
	ActionSmallBlind   Action = 7
	ActionBigBlind     Action = 8
)

// ActionSize is the number of policy outputs, one per distinct action id.
const ActionSize = 9

func (a Action) isMove() {}

func (a Action) String() string {
	switch a {
	case ActionFold:
		return "FOLD"
	case ActionCheck:
		return "CHECK"
	case ActionCall:
		return "CALL"
	case ActionRaiseHalfPot:
		return "RAISE_HALF_POT"
	case ActionRaisePot:
		return "RAISE_POT"
	case ActionRaise2Pot:
		return "RAISE_2POT"
	case ActionAllIn:
		return "ALL_IN"
	case ActionSmallBlind:
		return "SMALL_BLIND"
	case ActionBigBlind:
		return "BIG_BLIND"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

type Stage int

const (
	StagePreflop   Stage = 0
	StageFlop      Stage = 1
	StageTurn      Stage = 2
	StageRiver     Stage = 3
	StageEndHidden Stage = 4
	StageShowdown  Stage = 5
)

func (s Stage) isMove() {}

func (s Stage) String() string {
	switch s {
	case StagePreflop:
		return "PREFLOP"
	case StageFlop:
		return "FLOP"
	case StageTurn:
		return "TURN"
	case StageRiver:
		return "RIVER"
	case StageEndHidden:
		return "END_HIDDEN"
	case StageShowdown:
		return "SHOWDOWN"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// PlayableActions are the actions the agent chooses from. ALL_IN and the blinds are never chosen.
var PlayableActions = []Action{
	ActionFold,
	ActionCheck,
	ActionCall,
	ActionRaisePot,
	ActionRaiseHalfPot,
	ActionRaise2Pot,
}

// IsShowdown reports the showdown marker. An Action whose id equals StageShowdown is not the marker.
func IsShowdown(m Move) bool {
	s, ok := m.(Stage)
	return ok && s == StageShowdown
}

// Index maps a move to its policy output. Stages have no output and map to -1.
func Index(m Move) int {
	if a, ok := m.(Action); ok {
		return int(a)
	}
	return -1
}

func Domain() rl.MoveDomain[Move] {
	playable := make([]Move, len(PlayableActions))
	for i, a := range PlayableActions {
		playable[i] = a
	}
	return rl.MoveDomain[Move]{
		Playable: playable,
		Index:    Index,
		Terminal: IsShowdown,
	}
}
