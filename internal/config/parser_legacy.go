package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parseLegacy reads dotted key=value lines. Blank lines and '#' comments are
// skipped; unknown keys produce warnings rather than errors so old configs
// keep loading.
func parseLegacy(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := make([]Warning, 0)

	for idx, rawLine := range strings.Split(content, "\n") {
		lineNo := idx + 1
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return Config{}, nil, fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if err := applyLegacyKey(&cfg, key, value); err != nil {
			if unknownKey(err) {
				warnings = append(warnings, Warning{Line: lineNo, Message: err.Error()})
				continue
			}
			return Config{}, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

type unknownKeyError struct{ key string }

func (e unknownKeyError) Error() string { return fmt.Sprintf("unknown config key %q", e.key) }

func unknownKey(err error) bool {
	_, ok := err.(unknownKeyError)
	return ok
}

func applyLegacyKey(cfg *Config, key, value string) error {
	switch key {
	case "capture.input":
		cfg.Capture.Input = value
	case "capture.fallback":
		cfg.Capture.Fallback = value
	case "capture.sample_rate":
		return setInt(&cfg.Capture.SampleRate, key, value)
	case "capture.channels":
		return setInt(&cfg.Capture.Channels, key, value)
	case "capture.loop_seconds":
		return setFloat(&cfg.Capture.LoopSeconds, key, value)
	case "capture.preroll_ms":
		return setInt(&cfg.Capture.PreRollMS, key, value)
	case "capture.min_ms":
		return setInt(&cfg.Capture.MinClipMS, key, value)
	case "capture.max_ms":
		return setInt(&cfg.Capture.MaxClipMS, key, value)
	case "stt.endpoint":
		cfg.STT.Endpoint = value
	case "stt.timeout_ms":
		return setInt(&cfg.STT.TimeoutMS, key, value)
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.api_key_env":
		cfg.LLM.APIKeyEnv = value
	case "llm.timeout_ms":
		return setInt(&cfg.LLM.TimeoutMS, key, value)
	case "resolver.cache":
		return setBool(&cfg.Resolver.CacheEnable, key, value)
	case "resolver.heuristics":
		return setBool(&cfg.Resolver.HeuristicEnable, key, value)
	case "actions.follow_cmd":
		return setCommand(&cfg.Actions.Follow, key, value)
	case "actions.stop_cmd":
		return setCommand(&cfg.Actions.Stop, key, value)
	case "actions.jump_cmd":
		return setCommand(&cfg.Actions.Jump, key, value)
	case "actions.idle_cmd":
		return setCommand(&cfg.Actions.Idle, key, value)
	case "actions.backoff_cmd":
		return setCommand(&cfg.Actions.Backoff, key, value)
	case "debug.audio_dump":
		return setBool(&cfg.Debug.EnableAudioDump, key, value)
	default:
		return unknownKeyError{key: key}
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	*dst = parsed
	return nil
}

func setFloat(dst *float64, key, value string) error {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s must be a number, got %q", key, value)
	}
	*dst = parsed
	return nil
}

func setBool(dst *bool, key, value string) error {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be a boolean, got %q", key, value)
	}
	*dst = parsed
	return nil
}

func setCommand(dst *CommandConfig, key, value string) error {
	argv, err := parseArgv(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = CommandConfig{Raw: value, Argv: argv}
	return nil
}
