package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Capture.SampleRate <= 0 {
		return nil, fmt.Errorf("capture.sample_rate must be > 0")
	}
	if cfg.Capture.Channels < 1 || cfg.Capture.Channels > 2 {
		return nil, fmt.Errorf("capture.channels must be 1 or 2")
	}
	if cfg.Capture.LoopSeconds <= 0 {
		return nil, fmt.Errorf("capture.loop_seconds must be > 0")
	}
	if cfg.Capture.PreRollMS < 0 {
		return nil, fmt.Errorf("capture.preroll_ms must be >= 0")
	}
	if cfg.Capture.MinClipMS < 0 {
		return nil, fmt.Errorf("capture.min_ms must be >= 0")
	}
	if cfg.Capture.MaxClipMS <= 0 {
		return nil, fmt.Errorf("capture.max_ms must be > 0")
	}
	if cfg.Capture.MinClipMS > cfg.Capture.MaxClipMS {
		return nil, fmt.Errorf("capture.min_ms must not exceed capture.max_ms")
	}
	if float64(cfg.Capture.MaxClipMS)/1000 > cfg.Capture.LoopSeconds {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("capture.max_ms %d exceeds the %gs capture loop; long sessions will be truncated to one lap", cfg.Capture.MaxClipMS, cfg.Capture.LoopSeconds),
		})
	}
	if float64(cfg.Capture.PreRollMS)/1000 >= cfg.Capture.LoopSeconds {
		return nil, fmt.Errorf("capture.preroll_ms must be shorter than capture.loop_seconds")
	}

	if strings.TrimSpace(cfg.STT.Endpoint) == "" {
		return nil, fmt.Errorf("stt.endpoint must not be empty")
	}
	if cfg.STT.TimeoutMS <= 0 {
		return nil, fmt.Errorf("stt.timeout_ms must be > 0")
	}

	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return nil, fmt.Errorf("llm.model must not be empty")
	}
	if strings.TrimSpace(cfg.LLM.APIKeyEnv) == "" {
		return nil, fmt.Errorf("llm.api_key_env must not be empty")
	}
	if cfg.LLM.TimeoutMS <= 0 {
		return nil, fmt.Errorf("llm.timeout_ms must be > 0")
	}

	for _, entry := range []struct {
		key string
		cmd CommandConfig
	}{
		{"actions.follow_cmd", cfg.Actions.Follow},
		{"actions.stop_cmd", cfg.Actions.Stop},
		{"actions.jump_cmd", cfg.Actions.Jump},
		{"actions.idle_cmd", cfg.Actions.Idle},
		{"actions.backoff_cmd", cfg.Actions.Backoff},
	} {
		if strings.TrimSpace(entry.cmd.Raw) != "" && len(entry.cmd.Argv) == 0 {
			return nil, fmt.Errorf("%s is configured but parses to an empty command", entry.key)
		}
	}

	return warnings, nil
}
