// Internal test package so the unexported helpers are reachable.
package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// Each case checks that errors.Is() identifies the category the HTTP layer maps on.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("commands", "FFmpeg commands cannot be empty."),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "MissingField wraps ErrMissingField",
			err:       MissingField("file"),
			target:    ErrMissingField,
			wantMatch: true,
		},
		{
			name:      "ParseFailed wraps ErrParse",
			err:       ParseFailed("commands", errors.New("unterminated quote")),
			target:    ErrParse,
			wantMatch: true,
		},
		{
			name:      "ToolFailed wraps ErrToolExecution",
			err:       ToolFailed(1, "", "boom"),
			target:    ErrToolExecution,
			wantMatch: true,
		},
		{
			name:      "TimedOut wraps ErrTimeout through fmt wrapping",
			err:       fmt.Errorf("running: %w", TimedOut(time.Second, "")),
			target:    ErrTimeout,
			wantMatch: true,
		},
		{
			name:      "MissingField does NOT match ErrValidation",
			err:       MissingField("commands"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "OutputMissing does NOT match ErrToolExecution",
			err:       OutputMissing(""),
			target:    ErrToolExecution,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "MissingField names the field",
			err:         MissingField("file"),
			wantMessage: `field "file" is required`,
		},
		{
			name:        "ToolFailed prefers stderr",
			err:         ToolFailed(1, "out", "Unrecognized option 'badflag'"),
			wantMessage: "FFmpeg error (code 1): Unrecognized option 'badflag'",
		},
		{
			name:        "ToolFailed falls back to stdout",
			err:         ToolFailed(2, "only stdout", ""),
			wantMessage: "FFmpeg error (code 2): only stdout",
		},
		{
			name:        "ToolFailed keeps only the last stderr line",
			err:         ToolFailed(1, "", "Input #0, mov\n  Stream #0:0: Video\nError opening output files: Invalid argument\n\n"),
			wantMessage: "FFmpeg error (code 1): Error opening output files: Invalid argument",
		},
		{
			name:        "ToolFailed with no output",
			err:         ToolFailed(3, "", ""),
			wantMessage: "FFmpeg error (code 3): No output captured.",
		},
		{
			name:        "TimedOut includes the limit",
			err:         TimedOut(90*time.Second, ""),
			wantMessage: "FFmpeg exceeded the execution time limit of 1m30s and was terminated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := ParseFailed("commands", errors.New("bad"))
	if err.Unwrap() != ErrParse {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), ErrParse)
	}
}

func TestToolFailedCarriesDiagnostics(t *testing.T) {
	err := ToolFailed(234, "", "Invalid argument")

	if err.ExitCode == nil || *err.ExitCode != 234 {
		t.Fatalf("ExitCode = %v, want 234", err.ExitCode)
	}
	if err.Stderr != "Invalid argument" {
		t.Errorf("Stderr = %q, want %q", err.Stderr, "Invalid argument")
	}
}

func TestToolFailedKeepsFullStderr(t *testing.T) {
	stderr := "line one\nline two\nfinal line\n"
	err := ToolFailed(1, "", stderr)

	if err.Stderr != stderr {
		t.Errorf("Stderr = %q, want %q", err.Stderr, stderr)
	}
	if strings.Contains(err.Message, "line one") {
		t.Errorf("Message = %q, want only the last line", err.Message)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("output_filename", "invalid output filename")

	if err.Field != "output_filename" {
		t.Errorf("Field = %q, want %q", err.Field, "output_filename")
	}
}
