package layer

import "fmt"

// State is the progress of one division.
type State int

const (
	StateIdle State = iota
	StateValidated
	StateSynthesizing
	StateCommitting
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidated:
		return "validated"
	case StateSynthesizing:
		return "synthesizing"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

var transitions = map[State][]State{
	StateIdle:         {StateValidated, StateAborted},
	StateValidated:    {StateSynthesizing, StateAborted},
	StateSynthesizing: {StateCommitting, StateAborted},
	StateCommitting:   {StateDone, StateAborted},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
