package physics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStep indicates bad Step arguments: a non-positive or
	// non-finite dt, fewer than one collision or integration step, or a
	// missing allocator or scheduler.
	ErrInvalidStep = errors.New("physics: invalid step parameters")

	// ErrInvalidSettings indicates world settings that cannot be used.
	ErrInvalidSettings = errors.New("physics: invalid world settings")

	// ErrSolverResult indicates the solver returned a result for a body
	// outside the working set.
	ErrSolverResult = errors.New("physics: solver result out of range")
)

// StepError reports an aborted step. The world keeps its pre-step state.
type StepError struct {
	Phase         State
	CollisionStep int
	Wrapped       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("physics: step aborted in %s (collision step %d): %v", e.Phase, e.CollisionStep, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
