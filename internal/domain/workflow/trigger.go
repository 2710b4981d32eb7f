package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerBeginParse    Trigger = "BEGIN_PARSE"
	TriggerParseSucceed  Trigger = "PARSE_SUCCEED"
	TriggerParseFail     Trigger = "PARSE_FAIL"
	TriggerBeginCommit   Trigger = "BEGIN_COMMIT"
	TriggerCommitSucceed Trigger = "COMMIT_SUCCEED"
	TriggerCommitFail    Trigger = "COMMIT_FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
