package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
		wantErr error
	}{
		{"uploaded begins parse", StateUploaded, TriggerBeginParse, StateParsing, nil},
		{"parsing succeeds", StateParsing, TriggerParseSucceed, StateParsed, nil},
		{"parsing fails", StateParsing, TriggerParseFail, StateParseFailed, nil},
		{"parsed begins commit", StateParsed, TriggerBeginCommit, StateCommitting, nil},
		{"committing succeeds", StateCommitting, TriggerCommitSucceed, StateCommitted, nil},
		{"committing fails", StateCommitting, TriggerCommitFail, StateCommitFailed, nil},
		{"uploaded cannot commit", StateUploaded, TriggerBeginCommit, "", ErrInvalidTransition},
		{"parsed cannot re-parse", StateParsed, TriggerBeginParse, "", ErrInvalidTransition},
		{"committed is terminal", StateCommitted, TriggerBeginCommit, "", ErrInvalidTransition},
		{"parse failed is terminal", StateParseFailed, TriggerBeginParse, "", ErrInvalidTransition},
		{"commit failed is terminal", StateCommitFailed, TriggerBeginCommit, "", ErrInvalidTransition},
		{"unknown state", State("Bogus"), TriggerBeginParse, "", ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.trigger)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, state := range []State{StateParseFailed, StateCommitted, StateCommitFailed} {
		assert.True(t, state.IsTerminal(), "%s should be terminal", state)
		assert.Empty(t, PermittedTriggers(state), "%s should permit no triggers", state)
	}
}

func TestPermittedTriggers(t *testing.T) {
	assert.Equal(t, []Trigger{TriggerBeginParse}, PermittedTriggers(StateUploaded))
	assert.Equal(t, []Trigger{TriggerParseFail, TriggerParseSucceed}, PermittedTriggers(StateParsing))
	assert.Equal(t, []Trigger{TriggerBeginCommit}, PermittedTriggers(StateParsed))
	assert.Equal(t, []Trigger{TriggerCommitFail, TriggerCommitSucceed}, PermittedTriggers(StateCommitting))
}

func TestCan(t *testing.T) {
	assert.True(t, Can(StateUploaded, TriggerBeginParse))
	assert.True(t, Can(StateParsed, TriggerBeginCommit))
	assert.False(t, Can(StateUploaded, TriggerBeginCommit))
	assert.False(t, Can(StateCommitted, TriggerBeginCommit))
}
