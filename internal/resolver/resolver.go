// Package resolver turns free-text utterances into action tokens through a
// layered pipeline: exact-match cache, ordered heuristic rules, then a remote
// language-model fallback. Cheap deterministic tiers always run first.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"drover/internal/dispatch"
)

var (
	// ErrEmptyCommand indicates there was no text to resolve.
	ErrEmptyCommand = errors.New("empty command text")
	// ErrRemoteResolution indicates the fallback language-model call failed.
	ErrRemoteResolution = errors.New("remote command resolution failed")
)

// remoteInstruction is the fixed system instruction for the fallback tier.
const remoteInstruction = "You classify voice commands for a companion entity. " +
	"Respond with exactly one of FOLLOW, STOP, JUMP, IDLE or BACKOFF, uppercase, no other text."

// Completer is the narrow remote language-model capability the resolver
// depends on. The client instance is constructed by the host and injected;
// the resolver never reaches for process-wide state.
type Completer interface {
	Complete(ctx context.Context, instruction string, prompt string) (string, error)
}

// Resolver resolves free-text into one action token. Every successful
// resolution, from any tier, populates the shared cache.
type Resolver struct {
	cache    *Cache
	rules    []Rule
	remote   Completer
	logger   *slog.Logger
	useCache bool
	useRules bool
}

// Options disables individual deterministic tiers, mostly for debugging a
// misbehaving rule table against the remote classifier.
type Options struct {
	DisableCache      bool
	DisableHeuristics bool
}

// New constructs a resolver with the default rule table. remote may be nil,
// in which case unmatched phrases fail with ErrRemoteResolution.
func New(remote Completer, logger *slog.Logger) *Resolver {
	return NewWithOptions(remote, logger, Options{})
}

// NewWithOptions constructs a resolver with selected tiers disabled.
func NewWithOptions(remote Completer, logger *slog.Logger, opts Options) *Resolver {
	return &Resolver{
		cache:    NewCache(),
		rules:    DefaultRules(),
		remote:   remote,
		logger:   logger,
		useCache: !opts.DisableCache,
		useRules: !opts.DisableHeuristics,
	}
}

// Cache exposes the phrase cache for diagnostics.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Normalize trims whitespace and lower-cases command text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Resolve maps text to one action token, trying cache, heuristics, and the
// remote fallback in strict order. Failures are never cached.
func (r *Resolver) Resolve(ctx context.Context, text string) (dispatch.Action, error) {
	key := Normalize(text)
	if key == "" {
		return "", ErrEmptyCommand
	}

	if r.useCache {
		if action, ok := r.cache.Get(key); ok {
			r.log("command resolved", "tier", "cache", "phrase", key, "action", string(action))
			return action, nil
		}
	}

	if r.useRules {
		if action, ok := Classify(key, r.rules); ok {
			r.put(key, action)
			r.log("command resolved", "tier", "heuristic", "phrase", key, "action", string(action))
			return action, nil
		}
	}

	if r.remote == nil {
		return "", fmt.Errorf("%w: no remote completer configured", ErrRemoteResolution)
	}

	reply, err := r.remote.Complete(ctx, remoteInstruction, text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRemoteResolution, err)
	}

	token := strings.ToUpper(strings.TrimSpace(reply))
	if token == "" {
		return "", fmt.Errorf("%w: empty reply", ErrRemoteResolution)
	}

	action := dispatch.Action(token)
	r.put(key, action)
	r.log("command resolved", "tier", "remote", "phrase", key, "action", token)
	return action, nil
}

func (r *Resolver) put(key string, action dispatch.Action) {
	if r.useCache {
		r.cache.Put(key, action)
	}
}

func (r *Resolver) log(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}
