package layers

import "errors"

var (
	// ErrInvalidLayer indicates an object layer outside the configured table.
	ErrInvalidLayer = errors.New("layers: invalid object layer")

	// ErrInvalidMapping indicates a table entry pointing past the broad-phase layer count.
	ErrInvalidMapping = errors.New("layers: broad-phase layer out of range")
)
