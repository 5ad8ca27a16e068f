package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/sakif/ffmpeg-api/internal/apperror"
	"github.com/sakif/ffmpeg-api/internal/cmdline"
)

// Exec runs the tool as a local child process.
type Exec struct {
	cfg    Config
	logger *slog.Logger
}

// NewExec creates an Exec runner. Zero fields in cfg take DefaultConfig values.
func NewExec(cfg Config, logger *slog.Logger) *Exec {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CaptureBytes <= 0 {
		cfg.CaptureBytes = def.CaptureBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = def.WaitDelay
	}
	return &Exec{cfg: cfg, logger: logger}
}

// Run executes job.Invocation in job.Dir.
func (e *Exec) Run(ctx context.Context, job Job) (*Result, error) {
	inv := job.Invocation
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Binary(), inv.Argv()...)
	cmd.Dir = job.Dir
	cmd.Stdin = nil

	stdout := NewTailBuffer(e.cfg.CaptureBytes)
	stderr := NewTailBuffer(e.cfg.CaptureBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// The child gets its own process group; cancellation kills the whole group so
	// helpers it spawned cannot outlive the request.
	setProcessGroup(cmd)
	cmd.WaitDelay = e.cfg.WaitDelay

	e.logger.Info("running ffmpeg", slog.String("command", cmdline.Quote(inv.CommandLine())))

	err := cmd.Run()

	res := &Result{
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if stderr.Truncated() {
		e.logger.Debug("ffmpeg stderr truncated", slog.Int("kept_bytes", e.cfg.CaptureBytes))
	}

	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		e.logger.Warn("ffmpeg killed, request canceled", slog.Duration("after", res.Duration))
		return res, fmt.Errorf("runner: %w", apperror.Canceled())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		e.logger.Warn("ffmpeg killed after timeout", slog.Duration("timeout", e.cfg.Timeout))
		return res, apperror.TimedOut(e.cfg.Timeout, res.Stderr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil, apperror.ToolUnavailable(inv.Binary())
	}
	return nil, fmt.Errorf("runner: running %s: %w", inv.Binary(), err)
}

// Version runs "<binary> -version" and returns the first line of its output.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("runner: probing %s: %w", binary, err)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "", fmt.Errorf("runner: %s -version printed nothing", binary)
}
