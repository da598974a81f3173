package state

import "errors"

var (
	// ErrUnknownCell is returned when a name is not registered in the store.
	ErrUnknownCell = errors.New("state: unknown cell")

	// ErrDuplicateCell is returned when a table registers a name twice.
	ErrDuplicateCell = errors.New("state: duplicate cell")

	// ErrInvalidValue is returned when a value cannot be stored in a cell.
	ErrInvalidValue = errors.New("state: invalid value")
)
