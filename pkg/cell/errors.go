package cell

import (
	"errors"
	"fmt"
)

var (
	// ErrCellNotFound is returned for an unknown or retired cell id.
	ErrCellNotFound = errors.New("cell not found")
	// ErrStoreFull is returned when an insert would exceed the store capacity.
	ErrStoreFull = errors.New("cell store full")
)

// NotFoundError names the missing cell.
type NotFoundError struct {
	ID ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cell %d: not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrCellNotFound }
