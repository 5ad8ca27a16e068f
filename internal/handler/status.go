// Package handler contains the HTTP handlers of the service.
//
// Handlers are the glue between HTTP and the rest of the code: they read the
// request, call into workspace, cmdline, invocation and runner, and write the
// response. They hold no business rules of their own beyond that ordering.
package handler

import (
	"net/http"
)

// Banner is the body message of GET /.
const Banner = "FFmpeg API is running. Use the /process endpoint to transform files."

// ServiceInfo describes the configured tool for the status endpoints.
type ServiceInfo struct {
	Tool    string // Binary name or path
	Runner  string // "exec" or "docker"
	Version string // First line of "<tool> -version", if the probe succeeded
}

// StatusHandler serves the root banner and the health check.
type StatusHandler struct {
	info ServiceInfo
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(info ServiceInfo) *StatusHandler {
	return &StatusHandler{info: info}
}

// HandleRoot confirms the service is up and points at the processing endpoint.
func (h *StatusHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": Banner})
}

type healthResponse struct {
	Status  string `json:"status"`
	Tool    string `json:"tool"`
	Runner  string `json:"runner"`
	Version string `json:"version,omitempty"`
}

// HandleHealth reports liveness. It does not run the tool.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Tool:    h.info.Tool,
		Runner:  h.info.Runner,
		Version: h.info.Version,
	})
}
