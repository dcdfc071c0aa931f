// Package runner runs capture commands for LogWatch sources.
//
// A capture command is whatever produces a source's log file. The registered
// commands (for example "script -q /tmp/expo.log npx expo start") write the
// file themselves; an explicit command given on the CLI has its combined
// stdout and stderr appended to the file by the runner. Either way output is
// echoed to the terminal and a failing command can be restarted with
// exponential backoff.
//
// Example usage:
//
//	r, err := runner.NewCaptureRunner(desc, afero.NewOsFs(), logger, runner.ConfigFromCapture(cfg.Capture), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = r.Run(ctx)
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"

	"github.com/bebsworthy/logwatch/internal/config"
	"github.com/bebsworthy/logwatch/internal/errors"
	"github.com/bebsworthy/logwatch/internal/logging"
	"github.com/bebsworthy/logwatch/internal/sources"
)

// stopGrace is how long a cancelled command gets between SIGTERM and SIGKILL
const stopGrace = 5 * time.Second

// Config contains configuration options for the capture runner
type Config struct {
	Shell        string
	Restart      bool
	MaxRestarts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Echo         io.Writer
	Stdin        io.Reader
}

// ConfigFromCapture derives runner options from the capture configuration.
// Restart stays off; the CLI turns it on with --restart.
func ConfigFromCapture(cfg config.CaptureConfig) Config {
	return Config{
		Shell:        cfg.Shell,
		MaxRestarts:  cfg.MaxRestarts,
		InitialDelay: cfg.RestartInitialDelay,
		MaxDelay:     cfg.RestartMaxDelay,
	}
}

// CaptureRunner runs one source's capture command until it exits or the
// context ends
type CaptureRunner struct {
	desc      sources.Descriptor
	fs        afero.Fs
	logger    *logging.Logger
	cfg       Config
	argv      []string
	appendOut bool

	mu       sync.Mutex
	restarts int
	pid      int
	exitCode *int

	// Callbacks
	OnStart func(pid int)
	OnExit  func(exitCode int)
}

// NewCaptureRunner creates a runner for desc. With no explicit command the
// registered capture command runs through the shell; otherwise command is
// executed as given and its output appended to the artifact.
func NewCaptureRunner(desc sources.Descriptor, fs afero.Fs, logger *logging.Logger, cfg Config, command []string) (*CaptureRunner, error) {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}
	if cfg.Echo == nil {
		cfg.Echo = io.Discard
	}
	if logger == nil {
		logger = logging.Discard()
	}

	r := &CaptureRunner{
		desc:   desc,
		fs:     fs,
		logger: logger,
		cfg:    cfg,
	}

	if len(command) > 0 {
		r.argv = append([]string(nil), command...)
		r.appendOut = true
		return r, nil
	}

	if strings.TrimSpace(desc.CaptureCommand) == "" {
		return nil, errors.InvalidArgument("source %s has no capture command", desc.ID)
	}
	r.argv = []string{cfg.Shell, "-c", desc.CaptureCommand}
	return r, nil
}

// Command returns the argv the runner executes
func (r *CaptureRunner) Command() []string {
	return append([]string(nil), r.argv...)
}

// AppendsOutput reports whether the runner writes the artifact itself
func (r *CaptureRunner) AppendsOutput() bool {
	return r.appendOut
}

// Run executes the command, restarting it on failure when configured.
// Cancelling ctx stops the command and Run returns nil.
func (r *CaptureRunner) Run(ctx context.Context) error {
	operation := func() error {
		started, err := r.runOnce(ctx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case !started, !r.cfg.Restart:
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.InitialDelay
	bo.MaxInterval = r.cfg.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0.1

	var policy backoff.BackOff = backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(r.cfg.MaxRestarts))

	notify := func(err error, delay time.Duration) {
		r.mu.Lock()
		r.restarts++
		attempt := r.restarts
		r.mu.Unlock()

		r.logger.WarnContext(ctx, "Capture command failed, restarting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
			slog.Int("attempt", attempt),
			slog.Int("max_restarts", r.cfg.MaxRestarts),
		)
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if stderrors.Is(err, context.Canceled) {
		r.logger.InfoContext(ctx, "Capture stopped")
		return nil
	}
	return err
}

// runOnce reports whether the command started, since failures to start are
// never retried.
func (r *CaptureRunner) runOnce(ctx context.Context) (bool, error) {
	out := r.cfg.Echo
	if r.appendOut {
		f, err := r.fs.OpenFile(r.desc.File, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			return false, errors.WrapError(err, fmt.Sprintf("open %s", r.desc.File))
		}
		defer f.Close()
		out = io.MultiWriter(f, r.cfg.Echo)
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = r.cfg.Stdin
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = stopGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return false, errors.ExecutionFailure("failed to start capture command", err)
	}

	r.mu.Lock()
	r.pid = cmd.Process.Pid
	r.exitCode = nil
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Capture started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("command", strings.Join(r.argv, " ")),
		slog.String("file", r.desc.File),
	)
	if r.OnStart != nil {
		r.OnStart(cmd.Process.Pid)
	}

	err := cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	r.mu.Lock()
	r.exitCode = &exitCode
	r.mu.Unlock()

	r.logger.LogTiming(ctx, "capture", start, slog.Int("exit_code", exitCode))
	r.logger.InfoContext(ctx, "Capture exited", slog.Int("exit_code", exitCode))
	if r.OnExit != nil {
		r.OnExit(exitCode)
	}

	if err != nil {
		return true, errors.ExecutionFailure(fmt.Sprintf("capture command exited with code %d", exitCode), err)
	}
	return true, nil
}

// Restarts returns how many times the command has been restarted
func (r *CaptureRunner) Restarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restarts
}

// PID returns the process ID of the latest run
func (r *CaptureRunner) PID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pid
}

// ExitCode returns the exit code of the latest run, nil while it runs
func (r *CaptureRunner) ExitCode() *int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}
