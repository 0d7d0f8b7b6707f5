package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventPress)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventRelease)
	require.NoError(t, err)
	require.Equal(t, StateResolving, next)

	next, err = Transition(next, EventResolved)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionDiscardReturnsToIdle(t *testing.T) {
	next, err := Transition(StateRecording, EventDiscard)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	states := []State{StateIdle, StateRecording, StateResolving, StateError}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle release invalid", state: StateIdle, event: EventRelease, want: StateIdle, wantErr: true},
		{name: "idle discard invalid", state: StateIdle, event: EventDiscard, want: StateIdle, wantErr: true},
		{name: "recording press invalid", state: StateRecording, event: EventPress, want: StateRecording, wantErr: true},
		{name: "recording resolved invalid", state: StateRecording, event: EventResolved, want: StateRecording, wantErr: true},
		{name: "resolving press invalid", state: StateResolving, event: EventPress, want: StateResolving, wantErr: true},
		{name: "resolving release invalid", state: StateResolving, event: EventRelease, want: StateResolving, wantErr: true},
		{name: "error press invalid", state: StateError, event: EventPress, want: StateError, wantErr: true},
		{name: "error release invalid", state: StateError, event: EventRelease, want: StateError, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventPress)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
