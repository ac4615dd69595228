package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("persistence: duplicate key")
	// ErrConflict is returned when a conditional update matched no row because
	// the record is no longer in the expected state.
	ErrConflict = errors.New("persistence: state conflict")
)
