package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrMissingField    = errors.New("missing field")
	ErrParse           = errors.New("parse error")
	ErrToolExecution   = errors.New("tool execution failed")
	ErrOutputMissing   = errors.New("output missing")
	ErrTimeout         = errors.New("timeout")
	ErrToolUnavailable = errors.New("tool unavailable")
	ErrTooLarge        = errors.New("payload too large")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrCanceled        = errors.New("canceled")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: form field causing the error

	// Set when the external tool ran.
	ExitCode *int
	Stderr   string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// MissingField reports a required form field that was not sent at all.
// HTTP handlers map this to 422 Unprocessable Entity.
func MissingField(field string) *AppError {
	return &AppError{
		Err:     ErrMissingField,
		Message: fmt.Sprintf("field %q is required", field),
		Field:   field,
	}
}

func ParseFailed(field string, cause error) *AppError {
	return &AppError{
		Err:     ErrParse,
		Message: fmt.Sprintf("invalid command string format: %v. Ensure proper quoting if needed.", cause),
		Field:   field,
	}
}

// ToolFailed reports a non-zero exit of the external tool.
// The message carries the last line of stderr (or stdout); the full stderr
// goes in the Stderr field.
func ToolFailed(exitCode int, stdout, stderr string) *AppError {
	detail := lastLine(stderr)
	if detail == "" {
		detail = lastLine(stdout)
	}
	if detail == "" {
		detail = "No output captured."
	}
	return &AppError{
		Err:      ErrToolExecution,
		Message:  fmt.Sprintf("FFmpeg error (code %d): %s", exitCode, detail),
		ExitCode: &exitCode,
		Stderr:   stderr,
	}
}

func OutputMissing(stderr string) *AppError {
	code := 0
	return &AppError{
		Err:      ErrOutputMissing,
		Message:  "FFmpeg completed, but the output file was not found or is empty",
		ExitCode: &code,
		Stderr:   stderr,
	}
}

func TimedOut(limit fmt.Stringer, stderr string) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("FFmpeg exceeded the execution time limit of %s and was terminated", limit),
		Stderr:  stderr,
	}
}

func ToolUnavailable(binary string) *AppError {
	return &AppError{
		Err:     ErrToolUnavailable,
		Message: fmt.Sprintf("FFmpeg command not found on the server. Path used: %q", binary),
	}
}

func TooLarge(limit int64) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: fmt.Sprintf("upload exceeds the limit of %d bytes", limit),
	}
}

// Unauthorized returns an AppError for a missing or invalid bearer token.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func Canceled() *AppError {
	return &AppError{
		Err:     ErrCanceled,
		Message: "request canceled before FFmpeg finished",
	}
}

// lastLine returns the last non-blank line of s.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
