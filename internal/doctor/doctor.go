// Package doctor runs runtime readiness diagnostics for config, audio,
// speech-to-text, and the remote resolver.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"drover/internal/audio"
	"drover/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkSTTReady(cfg.Config))
	checks = append(checks, checkAPIKey(cfg.Config))
	checks = append(checks, checkActionCommands(cfg.Config)...)

	return Report{Checks: checks}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Capture.Input, cfg.Capture.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkSTTReady probes the configured transcription endpoint. whisper.cpp
// answers GET on its inference path with 405, which still proves liveness.
func checkSTTReady(cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.STT.Endpoint)
	if endpoint == "" {
		return Check{Name: "stt.endpoint", Pass: false, Message: "stt.endpoint is empty"}
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}

	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return Check{Name: "stt.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Check{Name: "stt.endpoint", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, endpoint)}
	}
	return Check{Name: "stt.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", endpoint, resp.StatusCode)}
}

// checkAPIKey verifies the remote resolver credential is present in the
// environment without printing it.
func checkAPIKey(cfg config.Config) Check {
	name := strings.TrimSpace(cfg.LLM.APIKeyEnv)
	if name == "" {
		return Check{Name: "llm.api_key", Pass: false, Message: "llm.api_key_env is empty"}
	}
	if strings.TrimSpace(os.Getenv(name)) == "" {
		return Check{Name: "llm.api_key", Pass: false, Message: fmt.Sprintf("%s is not set; remote resolution will fail", name)}
	}
	return Check{Name: "llm.api_key", Pass: true, Message: fmt.Sprintf("%s is set", name)}
}

// checkActionCommands verifies configured action binaries resolve in PATH.
func checkActionCommands(cfg config.Config) []Check {
	entries := []struct {
		name string
		cmd  config.CommandConfig
	}{
		{"actions.follow_cmd", cfg.Actions.Follow},
		{"actions.stop_cmd", cfg.Actions.Stop},
		{"actions.jump_cmd", cfg.Actions.Jump},
		{"actions.idle_cmd", cfg.Actions.Idle},
		{"actions.backoff_cmd", cfg.Actions.Backoff},
	}

	checks := []Check{}
	for _, entry := range entries {
		if len(entry.cmd.Argv) == 0 {
			continue
		}
		checks = append(checks, checkBinary(entry.cmd.Argv[0], entry.name))
	}
	return checks
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, name string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}
