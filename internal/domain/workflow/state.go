package workflow

// State represents an import run status in its lifecycle.
type State string

const (
	StateUploaded     State = "Uploaded"
	StateParsing      State = "Parsing"
	StateParsed       State = "Parsed"
	StateParseFailed  State = "ParseFailed"
	StateCommitting   State = "Committing"
	StateCommitted    State = "Committed"
	StateCommitFailed State = "CommitFailed"
)

var validStates = map[State]bool{
	StateUploaded:     true,
	StateParsing:      true,
	StateParsed:       true,
	StateParseFailed:  true,
	StateCommitting:   true,
	StateCommitted:    true,
	StateCommitFailed: true,
}

// Terminal states have no outgoing transitions. Parsed only leaves through
// BeginCommit; a failed run is never re-parsed in place, a fresh upload
// creates a new run.
var terminalStates = map[State]bool{
	StateParseFailed:  true,
	StateCommitted:    true,
	StateCommitFailed: true,
}

// IsValid returns true if the state is a known import status.
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal returns true if no further transitions are allowed from the state.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
