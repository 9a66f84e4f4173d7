package body

import "errors"

var (
	// ErrInvalidShape indicates a missing or degenerate shape reference.
	ErrInvalidShape = errors.New("body: invalid shape")

	// ErrStaleHandle indicates a removed or never-created body id.
	ErrStaleHandle = errors.New("body: stale body handle")

	// ErrTooManyBodies indicates the store is at its configured capacity.
	ErrTooManyBodies = errors.New("body: body limit reached")

	// ErrAlreadyAdded indicates the body is already in the broad phase.
	ErrAlreadyAdded = errors.New("body: body already added to world")

	// ErrNotAdded indicates an operation needing the body to be in the world.
	ErrNotAdded = errors.New("body: body not added to world")

	// ErrInvalidSettings indicates creation settings outside valid bounds.
	ErrInvalidSettings = errors.New("body: invalid creation settings")
)
