package rl

import (
	"errors"
	"fmt"

	"github.com/sw965/pokerppo/mathx"
)

var (
	ErrNumericalDivergence = errors.New("numerical divergence")
	ErrEmptyTrajectory     = errors.New("trajectory is empty")
	ErrNilDomainFunc       = errors.New("move domain function is nil")
)

const (
	CheckpointState  = "state"
	CheckpointLogits = "logits"
	CheckpointValue  = "value"
	CheckpointRatio  = "ratio"
)

// DivergenceError reports the first non-finite value found at a checkpoint.
// Step is the trajectory index (0 for single decisions) and Index the position inside that step's vector.
type DivergenceError struct {
	Checkpoint string
	Step       int
	Index      int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%v: non-finite %s at step %d, index %d", ErrNumericalDivergence, e.Checkpoint, e.Step, e.Index)
}

func (e *DivergenceError) Unwrap() error {
	return ErrNumericalDivergence
}

func checkFinite(checkpoint string, step int, xs []float32) error {
	if i := mathx.FirstNonFinite(xs); i >= 0 {
		return &DivergenceError{Checkpoint: checkpoint, Step: step, Index: i}
	}
	return nil
}
