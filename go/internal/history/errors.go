package history

import "errors"

var (
	// ErrNotFound is returned when no personal best exists yet.
	ErrNotFound = errors.New("not found")
	// ErrInvalidResult is returned for results that fail validation.
	ErrInvalidResult = errors.New("invalid result")
)
