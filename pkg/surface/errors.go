package surface

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSurface is returned when a number does not resolve.
	ErrUnknownSurface = errors.New("unknown surface")

	// ErrIncompatiblePair is returned when two surfaces cannot be
	// interpolated: different kinds or non-matching geometry.
	ErrIncompatiblePair = errors.New("incompatible surface pair")

	// ErrInvalidSurface is returned by Register for degenerate primitives.
	ErrInvalidSurface = errors.New("invalid surface")
)

// UnknownSurfaceError names the number that failed to resolve.
type UnknownSurfaceError struct {
	Number Number
}

func (e *UnknownSurfaceError) Error() string {
	return fmt.Sprintf("unknown surface %d", e.Number)
}

func (e *UnknownSurfaceError) Unwrap() error { return ErrUnknownSurface }

// IncompatibleError describes why a primary/secondary pair was rejected.
type IncompatibleError struct {
	Primary   Kind
	Secondary Kind
	Reason    string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("incompatible surface pair (%s, %s): %s", e.Primary, e.Secondary, e.Reason)
}

func (e *IncompatibleError) Unwrap() error { return ErrIncompatiblePair }
