package condition

import "errors"

var (
	// ErrNotFound is returned when no condition has the requested id.
	ErrNotFound = errors.New("condition not found")
	// ErrConflict is returned when a create reuses an existing id.
	ErrConflict = errors.New("condition id already exists")
)
