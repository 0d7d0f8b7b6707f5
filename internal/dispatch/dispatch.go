// Package dispatch maps resolved action tokens onto host-registered handlers.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Action is one member of the closed companion-control vocabulary.
type Action string

const (
	ActionFollow  Action = "FOLLOW"
	ActionStop    Action = "STOP"
	ActionJump    Action = "JUMP"
	ActionIdle    Action = "IDLE"
	ActionBackoff Action = "BACKOFF"
)

// ErrUnknownAction indicates a token outside the closed action set; the
// dispatcher falls back to the idle handler when it sees one.
var ErrUnknownAction = errors.New("unknown action token")

// Actions lists the closed set in declaration order.
func Actions() []Action {
	return []Action{ActionFollow, ActionStop, ActionJump, ActionIdle, ActionBackoff}
}

// ParseAction normalizes a token (trim, uppercase) and reports membership in
// the closed set.
func ParseAction(token string) (Action, bool) {
	normalized := Action(strings.ToUpper(strings.TrimSpace(token)))
	switch normalized {
	case ActionFollow, ActionStop, ActionJump, ActionIdle, ActionBackoff:
		return normalized, true
	}
	return normalized, false
}

// Handler is one zero-argument action callback registered by the host.
type Handler func()

// Handlers holds the five host-registered action callbacks. Nil entries are
// treated as no-ops so partial wiring cannot panic mid-session.
type Handlers struct {
	Follow  Handler
	Stop    Handler
	Jump    Handler
	Idle    Handler
	Backoff Handler
}

// Dispatcher executes the effect associated with one resolved action token.
type Dispatcher struct {
	handlers Handlers
	logger   *slog.Logger
}

// New constructs a dispatcher over the given handler set.
func New(handlers Handlers, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{handlers: handlers, logger: logger}
}

// Dispatch invokes exactly one handler for the token. Tokens outside the
// closed set invoke the idle handler and return ErrUnknownAction.
func (d *Dispatcher) Dispatch(token string) (Action, error) {
	action, known := ParseAction(token)
	if !known {
		if d.logger != nil {
			d.logger.Warn("unknown action token; dispatching idle", "token", token)
		}
		d.invoke(ActionIdle)
		return ActionIdle, fmt.Errorf("%w: %q", ErrUnknownAction, token)
	}

	d.invoke(action)
	return action, nil
}

// invoke runs the handler bound to a known action, if registered.
func (d *Dispatcher) invoke(action Action) {
	var handler Handler
	switch action {
	case ActionFollow:
		handler = d.handlers.Follow
	case ActionStop:
		handler = d.handlers.Stop
	case ActionJump:
		handler = d.handlers.Jump
	case ActionIdle:
		handler = d.handlers.Idle
	case ActionBackoff:
		handler = d.handlers.Backoff
	}
	if handler != nil {
		handler()
	}
}
