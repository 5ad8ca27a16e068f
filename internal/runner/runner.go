package runner

import (
	"context"
	"time"

	"github.com/sakif/ffmpeg-api/internal/invocation"
)

// Job is one tool run: the invocation plus the workspace directory it runs in.
type Job struct {
	Invocation invocation.Invocation
	Dir        string
}

// Result is what the tool left behind. A non-zero ExitCode is not an error from Run;
// callers decide what it means.
type Result struct {
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Runner executes the transcoding tool with an explicit argument vector, never a shell.
//
// Run blocks until the tool exits, the configured timeout elapses, or ctx is canceled.
// On timeout it returns an apperror.ErrTimeout error; on cancellation an
// apperror.ErrCanceled error. In both cases the tool has been killed and reaped before
// Run returns. A missing binary yields apperror.ErrToolUnavailable.
type Runner interface {
	Run(ctx context.Context, job Job) (*Result, error)
}

// Config holds the settings shared by all runners.
type Config struct {
	// Timeout bounds a single tool run.
	Timeout time.Duration
	// CaptureBytes keeps the last N bytes of stdout and of stderr.
	CaptureBytes int
	// WaitDelay bounds how long output pipes may stay open after the tool is killed.
	WaitDelay time.Duration
}

// DefaultConfig returns the defaults used by the server.
func DefaultConfig() Config {
	return Config{
		Timeout:      5 * time.Minute,
		CaptureBytes: 64 << 10,
		WaitDelay:    2 * time.Second,
	}
}
