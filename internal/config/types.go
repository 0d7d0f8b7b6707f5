// Package config resolves, parses, validates, and defaults drover configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by drover.
type Config struct {
	Capture  CaptureConfig
	STT      STTConfig
	LLM      LLMConfig
	Resolver ResolverConfig
	Actions  ActionsConfig
	Debug    DebugConfig
}

// CaptureConfig controls input-source selection and session timing.
type CaptureConfig struct {
	Input       string
	Fallback    string
	SampleRate  int
	Channels    int
	LoopSeconds float64
	PreRollMS   int
	MinClipMS   int
	MaxClipMS   int
}

// PreRoll returns the pre-roll window as a duration.
func (c CaptureConfig) PreRoll() time.Duration {
	return time.Duration(c.PreRollMS) * time.Millisecond
}

// MinClip returns the minimum clip duration below which sessions are discarded.
func (c CaptureConfig) MinClip() time.Duration {
	return time.Duration(c.MinClipMS) * time.Millisecond
}

// MaxClip returns the duration cap applied to extracted clips.
func (c CaptureConfig) MaxClip() time.Duration {
	return time.Duration(c.MaxClipMS) * time.Millisecond
}

// STTConfig locates the speech-to-text HTTP endpoint.
type STTConfig struct {
	Endpoint  string
	TimeoutMS int
}

// Timeout returns the request deadline for one transcription call.
func (c STTConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LLMConfig controls the remote resolver tier.
type LLMConfig struct {
	Model     string
	BaseURL   string
	APIKeyEnv string
	TimeoutMS int
}

// Timeout returns the request deadline for one remote resolution call.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// ResolverConfig toggles the cache and heuristic tiers.
type ResolverConfig struct {
	CacheEnable     bool
	HeuristicEnable bool
}

// ActionsConfig binds optional host commands to the five dispatch actions.
// An empty command leaves that action a no-op.
type ActionsConfig struct {
	Follow  CommandConfig
	Stop    CommandConfig
	Jump    CommandConfig
	Idle    CommandConfig
	Backoff CommandConfig
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
