package rl

import (
	"fmt"
)

// Environment is the simulator the agent plays against.
// LegalMoves is re-queried at every decision point.
type Environment[M comparable] interface {
	Reset() ([]float32, error)
	Step(action int) (next []float32, reward float32, done bool, info any, err error)
	LegalMoves() []M
}

// MoveDomain describes how legal moves map onto network outputs.
type MoveDomain[M comparable] struct {
	// Playable is the fixed set of moves the agent may choose.
	Playable []M
	// Index maps a playable move to its logit index.
	Index func(M) int
	// Terminal reports the showdown marker, which is never playable.
	Terminal func(M) bool
}

func (d *MoveDomain[M]) validate(actionSize int) error {
	if d.Index == nil {
		return fmt.Errorf("%w: Index", ErrNilDomainFunc)
	}
	if d.Terminal == nil {
		return fmt.Errorf("%w: Terminal", ErrNilDomainFunc)
	}
	for _, m := range d.Playable {
		if i := d.Index(m); i < 0 || i >= actionSize {
			return fmt.Errorf("playable move %v has index %d outside [0, %d)", m, i, actionSize)
		}
	}
	return nil
}
