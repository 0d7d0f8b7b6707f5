// Package app wires configuration, audio capture, the resolver stack, and the
// IPC daemon behind drover's command-line surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"drover/internal/audio"
	"drover/internal/cli"
	"drover/internal/config"
	"drover/internal/dispatch"
	"drover/internal/doctor"
	"drover/internal/ipc"
	"drover/internal/llm"
	"drover/internal/logging"
	"drover/internal/resolver"
	"drover/internal/session"
	"drover/internal/stt"
	"drover/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("drover"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("drover"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	loadEnvFile(cfgLoaded.Path, logger)

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandRelease:
		return r.forwardOrFail(ctx, "release")
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, "cancel")
	case cli.CommandChat:
		return r.forwardOrFail(ctx, "chat")
	case cli.CommandPress:
		return r.commandPress(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

// loadEnvFile pulls an optional env file next to the config into the process
// environment, so the LLM API key can live outside shell profiles.
func loadEnvFile(configPath string, logger *slog.Logger) {
	envPath := filepath.Join(filepath.Dir(configPath), "env")
	if _, err := os.Stat(envPath); err != nil {
		return
	}
	if err := godotenv.Load(envPath); err != nil {
		logger.Warn("load env file failed", "path", envPath, "error", err.Error())
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		line := resp.State
		if resp.Action != "" {
			line = line + " last=" + resp.Action
		}
		fmt.Fprintln(r.Stdout, line)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: drover daemon is not running\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandPress forwards the press to a running daemon, or becomes the daemon:
// it acquires the socket, starts capture, handles the initial press itself,
// and then serves IPC commands until the context is cancelled.
func (r Runner) commandPress(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, "press")
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, "press")
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	controller, capture := r.buildController(ctx, cfg, logger)
	defer func() {
		controller.Drain()
		if capture != nil {
			_ = capture.Stop()
		}
	}()

	if pressResp := controller.Handle(ctx, ipc.Request{Command: "press"}); !pressResp.OK {
		fmt.Fprintf(r.Stderr, "warning: %s\n", pressResp.Error)
		logger.Warn("initial press rejected", "error", pressResp.Error)
	} else if pressResp.Message != "" {
		fmt.Fprintln(r.Stdout, pressResp.Message)
	}

	logger.Info("daemon serving", "socket", socketPath)
	if err := ipc.Serve(ctx, listener, controller); err != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", err)
		return 1
	}
	return 0
}

// buildController assembles the capture, transcription, resolution, and
// dispatch stack. Capture and remote-resolver failures are downgraded to
// warnings so the daemon still serves status and chat.
func (r Runner) buildController(ctx context.Context, cfg config.Config, logger *slog.Logger) (*session.Controller, *audio.Capture) {
	var capture *audio.Capture
	selection, err := audio.SelectDevice(ctx, cfg.Capture.Input, cfg.Capture.Fallback)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
		logger.Warn("audio capture unavailable", "error", err.Error())
	} else {
		if selection.Warning != "" {
			logger.Warn("audio device fallback", "warning", selection.Warning)
		}
		capture, err = audio.StartCapture(ctx, selection.Device, cfg.Capture.SampleRate, cfg.Capture.Channels, cfg.Capture.LoopSeconds)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: %v\n", err)
			logger.Warn("audio capture unavailable", "error", err.Error())
			capture = nil
		}
	}

	var remote resolver.Completer
	apiKey := strings.TrimSpace(os.Getenv(cfg.LLM.APIKeyEnv))
	if apiKey == "" {
		logger.Warn("remote resolver disabled", "reason", cfg.LLM.APIKeyEnv+" is not set")
	} else {
		client, err := llm.New(llm.Config{
			APIKey:  apiKey,
			Model:   cfg.LLM.Model,
			BaseURL: cfg.LLM.BaseURL,
			Timeout: cfg.LLM.Timeout(),
		})
		if err != nil {
			logger.Warn("remote resolver disabled", "error", err.Error())
		} else {
			remote = client
		}
	}

	cmdResolver := resolver.NewWithOptions(remote, logger, resolver.Options{
		DisableCache:      !cfg.Resolver.CacheEnable,
		DisableHeuristics: !cfg.Resolver.HeuristicEnable,
	})

	transcriber := stt.NewClient(cfg.STT.Endpoint, cfg.STT.Timeout())
	actions := dispatch.New(actionHandlers(cfg.Actions, logger), logger)

	limits := session.Limits{
		PreRoll: cfg.Capture.PreRoll(),
		MinClip: cfg.Capture.MinClip(),
		MaxClip: cfg.Capture.MaxClip(),
	}

	var captureDep session.Capture
	if capture != nil {
		captureDep = capture
	}
	controller := session.NewController(logger, captureDep, transcriber, cmdResolver, actions, nil, limits)

	if cfg.Debug.EnableAudioDump {
		controller.SetClipSink(audioDumpSink(logger))
	}

	return controller, capture
}

// actionHandlers binds configured host commands to dispatch actions. Actions
// without a configured command stay no-ops.
func actionHandlers(cfg config.ActionsConfig, logger *slog.Logger) dispatch.Handlers {
	return dispatch.Handlers{
		Follow:  commandHandler(cfg.Follow, logger),
		Stop:    commandHandler(cfg.Stop, logger),
		Jump:    commandHandler(cfg.Jump, logger),
		Idle:    commandHandler(cfg.Idle, logger),
		Backoff: commandHandler(cfg.Backoff, logger),
	}
}

func commandHandler(cmd config.CommandConfig, logger *slog.Logger) dispatch.Handler {
	if len(cmd.Argv) == 0 {
		return nil
	}
	argv := cmd.Argv
	return func() {
		out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
		if err != nil {
			logger.Warn("action command failed",
				"cmd", argv[0],
				"error", err.Error(),
				"output", strings.TrimSpace(string(out)),
			)
		}
	}
}

// audioDumpSink writes each extracted clip as WAV under the state directory.
func audioDumpSink(logger *slog.Logger) func(audio.Clip) {
	return func(clip audio.Clip) {
		dir := dumpDir()
		if err := os.MkdirAll(dir, 0o700); err != nil {
			logger.Warn("audio dump failed", "error", err.Error())
			return
		}
		path := filepath.Join(dir, fmt.Sprintf("clip-%d.wav", time.Now().UnixNano()))
		if err := os.WriteFile(path, audio.EncodeWAV(clip), 0o600); err != nil {
			logger.Warn("audio dump failed", "path", path, "error", err.Error())
			return
		}
		logger.Info("audio dump written", "path", path, "duration", clip.Duration().Round(time.Millisecond))
	}
}

func dumpDir() string {
	if state := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); state != "" {
		return filepath.Join(state, "drover", "dumps")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "drover-dumps")
	}
	return filepath.Join(home, ".local", "state", "drover", "dumps")
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
