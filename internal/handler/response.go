package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "tool_execution_failed", "message": "FFmpeg error (code 8): ...", "exit_code": 8, "stderr": "..."}
//
// exit_code, stderr and field only appear when they carry information, so a
// client can always rely on "error" and "message" and check the rest opportunistically.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/ffmpeg-api/internal/apperror"
)

// StatusClientClosedRequest is the non-standard status recorded when the
// client disconnects before the tool finishes. Nobody is left to read it;
// it exists for access logs and metrics.
const StatusClientClosedRequest = 499

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error    string `json:"error"`               // Machine-readable error type (e.g., "timeout")
	Message  string `json:"message"`             // Human-readable description
	Field    string `json:"field,omitempty"`     // Offending form field, for request errors
	ExitCode *int   `json:"exit_code,omitempty"` // Set when the tool ran
	Stderr   string `json:"stderr,omitempty"`    // Captured diagnostics, for tool errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE writing the body.
// Once Encode writes, the headers are sent and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, the headers are already sent; we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorKinds maps each sentinel to its HTTP status and machine-readable name.
// Order matters only in that the first match wins.
var errorKinds = []struct {
	sentinel error
	status   int
	name     string
}{
	{apperror.ErrMissingField, http.StatusUnprocessableEntity, "missing_field"},
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrParse, http.StatusBadRequest, "parse_error"},
	{apperror.ErrToolExecution, http.StatusInternalServerError, "tool_execution_failed"},
	{apperror.ErrOutputMissing, http.StatusInternalServerError, "output_missing"},
	{apperror.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
	{apperror.ErrToolUnavailable, http.StatusInternalServerError, "tool_unavailable"},
	{apperror.ErrTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrCanceled, StatusClientClosedRequest, "canceled"},
}

// WriteError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// This is the only place domain errors are translated to HTTP. The runner and
// the parser return apperror values; they never know about status codes.
//
// errors.Is() walks the whole chain, so a wrapped error such as
// fmt.Errorf("runner: %w", apperror.Canceled()) still matches its sentinel.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range errorKinds {
			if errors.Is(err, k.sentinel) {
				writeJSON(w, k.status, ErrorResponse{
					Error:    k.name,
					Message:  appErr.Message,
					Field:    appErr.Field,
					ExitCode: appErr.ExitCode,
					Stderr:   appErr.Stderr,
				})
				return
			}
		}
	}

	// Unknown error: return a generic 500.
	// Raw error text may contain server paths, so it never reaches the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
