package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drover/internal/audio"
	"drover/internal/dispatch"
	"drover/internal/fsm"
	"drover/internal/ipc"
	"drover/internal/resolver"
	"drover/internal/stt"
)

type fakeCapture struct {
	ring     *audio.Ring
	readyErr error
}

func (f *fakeCapture) Ring() *audio.Ring { return f.ring }

func (f *fakeCapture) WaitReady(int, time.Duration) error { return f.readyErr }

type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	clips   []audio.Clip
	release chan struct{} // when non-nil, Transcribe blocks until closed
}

func (f *fakeTranscriber) Transcribe(_ context.Context, clip audio.Clip) (string, error) {
	f.mu.Lock()
	f.clips = append(f.clips, clip)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return f.text, f.err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clips)
}

type fakeResolver struct {
	mu     sync.Mutex
	action dispatch.Action
	err    error
	texts  []string
}

func (f *fakeResolver) Resolve(_ context.Context, text string) (dispatch.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.action, f.err
}

type fakeDispatcher struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeDispatcher) Dispatch(token string) (dispatch.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	action, known := dispatch.ParseAction(token)
	if !known {
		return dispatch.ActionIdle, dispatch.ErrUnknownAction
	}
	return action, nil
}

func (f *fakeDispatcher) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

type fakeSuppressor struct {
	states []bool
}

func (f *fakeSuppressor) SuppressInput(enabled bool) {
	f.states = append(f.states, enabled)
}

func readyCapture(t *testing.T, frames int) *fakeCapture {
	t.Helper()
	ring := audio.NewRing(100, 1, 1.0)
	fillFrames(ring, frames, 0)
	return &fakeCapture{ring: ring}
}

func testLimits() Limits {
	return Limits{
		PreRoll: 0,
		MinClip: 100 * time.Millisecond, // 10 frames at 100 Hz
		MaxClip: 500 * time.Millisecond,
	}
}

func TestControllerHappyPath(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "follow me"}
	resolve := &fakeResolver{action: dispatch.ActionFollow}
	actions := &fakeDispatcher{}

	c := NewController(nil, capture, transcriber, resolve, actions, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	require.Equal(t, fsm.StateRecording, c.State())

	fillFrames(capture.ring, 20, 0)
	require.NoError(t, c.Release(context.Background()))
	c.Drain()

	require.Equal(t, fsm.StateIdle, c.State())
	require.Equal(t, 1, transcriber.calls())
	require.Equal(t, []string{"follow me"}, resolve.texts)
	require.Equal(t, []string{"FOLLOW"}, actions.dispatched())

	resp := c.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Equal(t, "FOLLOW", resp.Action)
}

func TestControllerRejectsPressWhileResolving(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "stop", release: make(chan struct{})}
	resolve := &fakeResolver{action: dispatch.ActionStop}
	actions := &fakeDispatcher{}

	c := NewController(nil, capture, transcriber, resolve, actions, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 20, 0)
	require.NoError(t, c.Release(context.Background()))
	require.Equal(t, fsm.StateResolving, c.State())

	err := c.Press(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid transition")

	close(transcriber.release)
	c.Drain()
	require.Equal(t, fsm.StateIdle, c.State())
	require.NoError(t, c.Press(context.Background()))
}

func TestControllerRejectsDoublePress(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	c := NewController(nil, capture, &fakeTranscriber{}, &fakeResolver{}, &fakeDispatcher{}, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	require.Error(t, c.Press(context.Background()))
	require.Equal(t, fsm.StateRecording, c.State())
}

func TestControllerDiscardsShortClip(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "hm"}
	c := NewController(nil, capture, transcriber, &fakeResolver{}, &fakeDispatcher{}, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 3, 0) // below the 10-frame minimum
	require.NoError(t, c.Release(context.Background()))

	require.Equal(t, fsm.StateIdle, c.State())
	require.Zero(t, transcriber.calls())
}

func TestControllerTranscriptionFailureSkipsDispatch(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{err: stt.ErrTranscriptionFailed}
	actions := &fakeDispatcher{}
	c := NewController(nil, capture, transcriber, &fakeResolver{}, actions, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 20, 0)
	require.NoError(t, c.Release(context.Background()))
	c.Drain()

	require.Equal(t, fsm.StateIdle, c.State())
	require.Empty(t, actions.dispatched())
}

func TestControllerResolutionFailureDispatchesIdle(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "do a barrel roll"}
	resolve := &fakeResolver{err: resolver.ErrRemoteResolution}
	actions := &fakeDispatcher{}
	c := NewController(nil, capture, transcriber, resolve, actions, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 20, 0)
	require.NoError(t, c.Release(context.Background()))
	c.Drain()

	require.Equal(t, fsm.StateIdle, c.State())
	require.Equal(t, []string{"IDLE"}, actions.dispatched())
}

func TestControllerEmptyCommandSkipsDispatch(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "   "}
	resolve := &fakeResolver{err: resolver.ErrEmptyCommand}
	actions := &fakeDispatcher{}
	c := NewController(nil, capture, transcriber, resolve, actions, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 20, 0)
	require.NoError(t, c.Release(context.Background()))
	c.Drain()

	require.Equal(t, fsm.StateIdle, c.State())
	require.Empty(t, actions.dispatched())
}

func TestControllerCancelDiscardsRecording(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "stop"}
	c := NewController(nil, capture, transcriber, &fakeResolver{}, &fakeDispatcher{}, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 50, 0)
	require.NoError(t, c.Cancel())

	require.Equal(t, fsm.StateIdle, c.State())
	require.Zero(t, transcriber.calls())

	require.ErrorIs(t, c.Cancel(), ErrNoActiveSession)
}

func TestControllerPressWithoutCapture(t *testing.T) {
	t.Parallel()

	c := NewController(nil, nil, &fakeTranscriber{}, &fakeResolver{}, &fakeDispatcher{}, nil, testLimits())
	require.ErrorIs(t, c.Press(context.Background()), audio.ErrDeviceUnavailable)
	require.Equal(t, fsm.StateIdle, c.State())
}

func TestControllerPressWhenCaptureNotReady(t *testing.T) {
	t.Parallel()

	capture := &fakeCapture{ring: audio.NewRing(100, 1, 1.0), readyErr: audio.ErrDeviceNotReady}
	c := NewController(nil, capture, &fakeTranscriber{}, &fakeResolver{}, &fakeDispatcher{}, nil, testLimits())

	require.ErrorIs(t, c.Press(context.Background()), audio.ErrDeviceNotReady)
	require.Equal(t, fsm.StateIdle, c.State())
}

func TestControllerChatToggleSuppressesInput(t *testing.T) {
	t.Parallel()

	suppress := &fakeSuppressor{}
	c := NewController(nil, readyCapture(t, 10), &fakeTranscriber{}, &fakeResolver{}, &fakeDispatcher{}, suppress, testLimits())

	resp := c.Handle(context.Background(), ipc.Request{Command: "chat"})
	require.True(t, resp.OK)
	require.Equal(t, "chat open", resp.Message)

	resp = c.Handle(context.Background(), ipc.Request{Command: "chat"})
	require.True(t, resp.OK)
	require.Equal(t, "chat closed", resp.Message)

	require.Equal(t, []bool{true, false}, suppress.states)
}

func TestControllerHandleCommands(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "jump"}
	resolve := &fakeResolver{action: dispatch.ActionJump}
	actions := &fakeDispatcher{}
	c := NewController(nil, capture, transcriber, resolve, actions, nil, testLimits())

	resp := c.Handle(context.Background(), ipc.Request{Command: "press"})
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)

	fillFrames(capture.ring, 20, 0)
	resp = c.Handle(context.Background(), ipc.Request{Command: "release"})
	require.True(t, resp.OK)
	c.Drain()

	resp = c.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, "JUMP", resp.Action)

	resp = c.Handle(context.Background(), ipc.Request{Command: "nope"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

func TestControllerReleaseWithoutPress(t *testing.T) {
	t.Parallel()

	c := NewController(nil, readyCapture(t, 10), &fakeTranscriber{}, &fakeResolver{}, &fakeDispatcher{}, nil, testLimits())
	require.ErrorIs(t, c.Release(context.Background()), ErrNoActiveSession)
}

func TestControllerUnknownTokenFromResolverStillSettles(t *testing.T) {
	t.Parallel()

	capture := readyCapture(t, 10)
	transcriber := &fakeTranscriber{text: "dance"}
	resolve := &fakeResolver{action: dispatch.Action("DANCE")}
	actions := &fakeDispatcher{}
	c := NewController(nil, capture, transcriber, resolve, actions, nil, testLimits())

	require.NoError(t, c.Press(context.Background()))
	fillFrames(capture.ring, 20, 0)
	require.NoError(t, c.Release(context.Background()))
	c.Drain()

	require.Equal(t, fsm.StateIdle, c.State())
	require.Equal(t, []string{"DANCE"}, actions.dispatched())
}
