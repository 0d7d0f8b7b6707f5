package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"drover/internal/audio"
	"drover/internal/dispatch"
	"drover/internal/fsm"
	"drover/internal/ipc"
	"drover/internal/resolver"
)

// Transcriber converts a recorded clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
}

// CommandResolver maps a transcript onto an action token.
type CommandResolver interface {
	Resolve(ctx context.Context, text string) (dispatch.Action, error)
}

// ActionDispatcher invokes the handler bound to an action token.
type ActionDispatcher interface {
	Dispatch(token string) (dispatch.Action, error)
}

// Capture exposes the ring and readiness of a running audio stream.
type Capture interface {
	Ring() *audio.Ring
	WaitReady(attempts int, interval time.Duration) error
}

// InputSuppressor toggles keyboard passthrough while the chat overlay is
// open, so typed text does not leak into game controls.
type InputSuppressor interface {
	SuppressInput(enabled bool)
}

// Limits bounds a recording session.
type Limits struct {
	PreRoll time.Duration
	MinClip time.Duration
	MaxClip time.Duration
}

// Controller owns the gesture state machine: IPC commands drive press and
// release transitions, release hands the extracted clip to a background
// transcribe-resolve-dispatch flow, and the next press is refused until that
// flow settles. Sessions are strictly serialized.
type Controller struct {
	logger   *slog.Logger
	capture  Capture
	stt      Transcriber
	resolver CommandResolver
	actions  ActionDispatcher
	suppress InputSuppressor
	limits   Limits

	mu         sync.Mutex
	state      fsm.State
	rec        Recording
	chatOpen   bool
	lastAction dispatch.Action
	clipSink   func(audio.Clip)

	inflight sync.WaitGroup
}

// NewController wires the session controller. capture and suppress may be nil:
// presses then fail with a device error while status and chat keep working.
func NewController(
	logger *slog.Logger,
	capture Capture,
	stt Transcriber,
	cmdResolver CommandResolver,
	actions ActionDispatcher,
	suppress InputSuppressor,
	limits Limits,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Controller{
		logger:   logger,
		capture:  capture,
		stt:      stt,
		resolver: cmdResolver,
		actions:  actions,
		suppress: suppress,
		limits:   limits,
		state:    fsm.StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetClipSink registers a callback that receives every extracted clip before
// transcription. Used for debug audio dumps.
func (c *Controller) SetClipSink(sink func(audio.Clip)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clipSink = sink
}

// Drain blocks until any in-flight resolution flow has finished.
func (c *Controller) Drain() {
	c.inflight.Wait()
}

// Handle serves one IPC command against the session lifecycle.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "press":
		if err := c.Press(ctx); err != nil {
			return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
		}
		return ipc.Response{OK: true, State: string(c.State()), Message: "recording"}
	case "release":
		if err := c.Release(ctx); err != nil {
			return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
		}
		return ipc.Response{OK: true, State: string(c.State())}
	case "cancel":
		if err := c.Cancel(); err != nil {
			return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
		}
		return ipc.Response{OK: true, State: string(c.State()), Message: "session discarded"}
	case "chat":
		open := c.ToggleChat()
		msg := "chat closed"
		if open {
			msg = "chat open"
		}
		return ipc.Response{OK: true, State: string(c.State()), Message: msg}
	case "status":
		c.mu.Lock()
		state, action := c.state, c.lastAction
		c.mu.Unlock()
		return ipc.Response{OK: true, State: string(state), Action: string(action)}
	default:
		return ipc.Response{OK: false, Error: "unknown command: " + req.Command}
	}
}

// Press starts a recording session at the current ring cursor minus pre-roll.
// Refused while a previous session is recording or still resolving.
func (c *Controller) Press(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, fsm.EventPress)
	if err != nil {
		return err
	}

	if c.capture == nil {
		return audio.ErrDeviceUnavailable
	}
	if err := c.capture.WaitReady(10, 50*time.Millisecond); err != nil {
		c.failLocked("capture not ready", err)
		return err
	}
	if err := c.rec.Begin(c.capture.Ring(), c.limits.PreRoll); err != nil {
		c.failLocked("begin session", err)
		return err
	}

	c.state = next
	c.logger.Info("session started", "state", c.state)
	return nil
}

// Release ends the session. Clips shorter than the minimum are discarded and
// the controller returns to idle. Otherwise the clip is handed to a background
// goroutine for transcription, resolution, and dispatch.
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != fsm.StateRecording {
		return ErrNoActiveSession
	}

	started := c.rec.StartedAt()
	clip, ok, err := c.rec.End(c.captureRing(), c.limits.MaxClip, c.limits.MinClip)
	if err != nil {
		c.failLocked("end session", err)
		return err
	}
	if !ok {
		c.state, _ = fsm.Transition(c.state, fsm.EventDiscard)
		c.logger.Info("clip discarded", "reason", "below minimum duration")
		return nil
	}

	c.state, _ = fsm.Transition(c.state, fsm.EventRelease)
	c.logger.Info("session released",
		"held", time.Since(started).Round(time.Millisecond),
		"duration", clip.Duration().Round(time.Millisecond),
	)

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.resolveClip(ctx, clip)
	}()
	return nil
}

// Cancel discards an in-progress recording without resolving it. In-flight
// resolution cannot be cancelled once release has handed the clip off.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != fsm.StateRecording {
		return ErrNoActiveSession
	}

	_, _, _ = c.rec.End(c.captureRing(), 0, time.Hour)
	c.state, _ = fsm.Transition(c.state, fsm.EventDiscard)
	c.logger.Info("session cancelled")
	return nil
}

// ToggleChat flips the chat overlay flag and suppresses or restores game
// input accordingly. Returns the new open state.
func (c *Controller) ToggleChat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.chatOpen = !c.chatOpen
	if c.suppress != nil {
		c.suppress.SuppressInput(c.chatOpen)
	}
	c.logger.Info("chat toggled", "open", c.chatOpen)
	return c.chatOpen
}

func (c *Controller) captureRing() *audio.Ring {
	if c.capture == nil {
		return nil
	}
	return c.capture.Ring()
}

// resolveClip runs the post-release flow: transcribe, resolve, dispatch.
// Transcription failures abandon the session without dispatching; a resolver
// failure falls back to dispatching idle so the companion never keeps acting
// on a stale command.
func (c *Controller) resolveClip(ctx context.Context, clip audio.Clip) {
	start := time.Now()

	c.mu.Lock()
	sink := c.clipSink
	c.mu.Unlock()
	if sink != nil {
		sink(clip)
	}

	text, err := c.stt.Transcribe(ctx, clip)
	if err != nil {
		c.logger.Error("transcription failed", "error", err)
		c.fail("transcription", err)
		return
	}

	action, err := c.resolver.Resolve(ctx, text)
	switch {
	case errors.Is(err, resolver.ErrEmptyCommand):
		c.logger.Info("empty transcript, nothing to dispatch")
		c.settle("")
		return
	case err != nil:
		c.logger.Warn("resolution failed, falling back to idle", "error", err)
		action = dispatch.ActionIdle
	}

	dispatched, dispatchErr := c.actions.Dispatch(string(action))
	if dispatchErr != nil {
		c.logger.Warn("dispatch degraded", "token", action, "error", dispatchErr)
	}

	c.logger.Info("command dispatched",
		"transcript", text,
		"action", dispatched,
		"latency", time.Since(start).Round(time.Millisecond),
	)
	c.settle(dispatched)
}

// settle records the outcome and returns the lifecycle to idle.
func (c *Controller) settle(action dispatch.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if action != "" {
		c.lastAction = action
	}
	c.state, _ = fsm.Transition(c.state, fsm.EventResolved)
}

// fail transitions through error back to idle so the next press can proceed.
func (c *Controller) fail(stage string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLocked(stage, err)
}

func (c *Controller) failLocked(stage string, err error) {
	c.logger.Error("session failed", "stage", stage, "error", err)
	c.state, _ = fsm.Transition(c.state, fsm.EventFail)
	c.state, _ = fsm.Transition(c.state, fsm.EventReset)
}
