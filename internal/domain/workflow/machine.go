package workflow

import (
	"fmt"
	"sort"
)

// transitions is the single authoritative table of legal status moves. The
// import service derives each status change from this table before writing
// it.
var transitions = map[State]map[Trigger]State{
	StateUploaded: {
		TriggerBeginParse: StateParsing,
	},
	StateParsing: {
		TriggerParseSucceed: StateParsed,
		TriggerParseFail:    StateParseFailed,
	},
	StateParsed: {
		TriggerBeginCommit: StateCommitting,
	},
	StateCommitting: {
		TriggerCommitSucceed: StateCommitted,
		TriggerCommitFail:    StateCommitFailed,
	},
}

// Transition returns the state reached by firing trigger from the given
// state, or ErrInvalidTransition when the move is not in the table.
func Transition(from State, trigger Trigger) (State, error) {
	if !from.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidState, from)
	}
	to, ok := transitions[from][trigger]
	if !ok {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, trigger)
	}
	return to, nil
}

// Can returns true if the trigger is permitted in the given state.
func Can(from State, trigger Trigger) bool {
	_, ok := transitions[from][trigger]
	return ok
}

// PermittedTriggers returns all triggers that can be fired from the given
// state, sorted for deterministic output.
func PermittedTriggers(from State) []Trigger {
	var out []Trigger
	for trigger := range transitions[from] {
		out = append(out, trigger)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
