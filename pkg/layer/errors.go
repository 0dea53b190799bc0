package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/lamina/pkg/cell"
)

var (
	// ErrOrder reports fractions that are not strictly increasing inside (0,1).
	ErrOrder = errors.New("fractions not strictly increasing in (0,1)")
	// ErrCountMismatch reports material or density lists of the wrong length.
	ErrCountMismatch = errors.New("layer count mismatch")
	// ErrSubstitutionNotFound reports a synthesizer pattern that does not occur
	// in the target cell's boundary.
	ErrSubstitutionNotFound = errors.New("substitution pattern not found")
)

// Phase is the part of a division in which an error occurred.
type Phase int

const (
	PhaseValidate Phase = iota
	PhaseSynthesize
	PhaseCommit
)

func (p Phase) String() string {
	switch p {
	case PhaseValidate:
		return "validate"
	case PhaseSynthesize:
		return "synthesize"
	case PhaseCommit:
		return "commit"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Error describes a failed division. Layer, Pair and Synth are -1 when the
// failure is not tied to one layer, pair rule or synthesizer.
type Error struct {
	Cell     cell.ID
	Phase    Phase
	Layer    int
	Fraction float64 // offending fraction when Layer >= 0
	Material cell.MaterialID
	Synth    int
	Pair     int
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "divide cell %d: %s", e.Cell, e.Phase)
	if e.Layer >= 0 {
		fmt.Fprintf(&b, ": layer %d (fraction %g, material %d)", e.Layer, e.Fraction, e.Material)
	}
	if e.Synth >= 0 {
		fmt.Fprintf(&b, ": synthesizer %d", e.Synth)
	}
	if e.Pair >= 0 {
		fmt.Fprintf(&b, " pair %d", e.Pair)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(id cell.ID, phase Phase, err error) *Error {
	return &Error{Cell: id, Phase: phase, Layer: -1, Synth: -1, Pair: -1, Err: err}
}
