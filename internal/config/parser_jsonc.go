package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Capture  *jsoncCapture  `json:"capture"`
	STT      *jsoncSTT      `json:"stt"`
	LLM      *jsoncLLM      `json:"llm"`
	Resolver *jsoncResolver `json:"resolver"`
	Actions  *jsoncActions  `json:"actions"`
	Debug    *jsoncDebug    `json:"debug"`
}

type jsoncCapture struct {
	Input       *string  `json:"input"`
	Fallback    *string  `json:"fallback"`
	SampleRate  *int     `json:"sample_rate"`
	Channels    *int     `json:"channels"`
	LoopSeconds *float64 `json:"loop_seconds"`
	PreRollMS   *int     `json:"preroll_ms"`
	MinClipMS   *int     `json:"min_ms"`
	MaxClipMS   *int     `json:"max_ms"`
}

type jsoncSTT struct {
	Endpoint  *string `json:"endpoint"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncLLM struct {
	Model     *string `json:"model"`
	BaseURL   *string `json:"base_url"`
	APIKeyEnv *string `json:"api_key_env"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncResolver struct {
	Cache      *bool `json:"cache"`
	Heuristics *bool `json:"heuristics"`
}

type jsoncActions struct {
	FollowCmd  *string `json:"follow_cmd"`
	StopCmd    *string `json:"stop_cmd"`
	JumpCmd    *string `json:"jump_cmd"`
	IdleCmd    *string `json:"idle_cmd"`
	BackoffCmd *string `json:"backoff_cmd"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if payload.Capture != nil {
		if payload.Capture.Input != nil {
			cfg.Capture.Input = *payload.Capture.Input
		}
		if payload.Capture.Fallback != nil {
			cfg.Capture.Fallback = *payload.Capture.Fallback
		}
		if payload.Capture.SampleRate != nil {
			cfg.Capture.SampleRate = *payload.Capture.SampleRate
		}
		if payload.Capture.Channels != nil {
			cfg.Capture.Channels = *payload.Capture.Channels
		}
		if payload.Capture.LoopSeconds != nil {
			cfg.Capture.LoopSeconds = *payload.Capture.LoopSeconds
		}
		if payload.Capture.PreRollMS != nil {
			cfg.Capture.PreRollMS = *payload.Capture.PreRollMS
		}
		if payload.Capture.MinClipMS != nil {
			cfg.Capture.MinClipMS = *payload.Capture.MinClipMS
		}
		if payload.Capture.MaxClipMS != nil {
			cfg.Capture.MaxClipMS = *payload.Capture.MaxClipMS
		}
	}

	if payload.STT != nil {
		if payload.STT.Endpoint != nil {
			cfg.STT.Endpoint = strings.TrimSpace(*payload.STT.Endpoint)
		}
		if payload.STT.TimeoutMS != nil {
			cfg.STT.TimeoutMS = *payload.STT.TimeoutMS
		}
	}

	if payload.LLM != nil {
		if payload.LLM.Model != nil {
			cfg.LLM.Model = strings.TrimSpace(*payload.LLM.Model)
		}
		if payload.LLM.BaseURL != nil {
			cfg.LLM.BaseURL = strings.TrimSpace(*payload.LLM.BaseURL)
		}
		if payload.LLM.APIKeyEnv != nil {
			cfg.LLM.APIKeyEnv = strings.TrimSpace(*payload.LLM.APIKeyEnv)
		}
		if payload.LLM.TimeoutMS != nil {
			cfg.LLM.TimeoutMS = *payload.LLM.TimeoutMS
		}
	}

	if payload.Resolver != nil {
		if payload.Resolver.Cache != nil {
			cfg.Resolver.CacheEnable = *payload.Resolver.Cache
		}
		if payload.Resolver.Heuristics != nil {
			cfg.Resolver.HeuristicEnable = *payload.Resolver.Heuristics
		}
	}

	if payload.Actions != nil {
		entries := []struct {
			key string
			raw *string
			dst *CommandConfig
		}{
			{"follow_cmd", payload.Actions.FollowCmd, &cfg.Actions.Follow},
			{"stop_cmd", payload.Actions.StopCmd, &cfg.Actions.Stop},
			{"jump_cmd", payload.Actions.JumpCmd, &cfg.Actions.Jump},
			{"idle_cmd", payload.Actions.IdleCmd, &cfg.Actions.Idle},
			{"backoff_cmd", payload.Actions.BackoffCmd, &cfg.Actions.Backoff},
		}
		for _, entry := range entries {
			if entry.raw == nil {
				continue
			}
			argv, err := parseArgv(*entry.raw)
			if err != nil {
				return fmt.Errorf("invalid actions.%s: %w", entry.key, err)
			}
			*entry.dst = CommandConfig{Raw: *entry.raw, Argv: argv}
		}
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
