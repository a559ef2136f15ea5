package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a unique constraint is violated. The
	// storage layer's constraints are the final arbiter; application-level
	// existence checks are advisory only.
	ErrConflict = errors.New("record conflict")
)
