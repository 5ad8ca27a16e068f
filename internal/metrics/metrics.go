// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors live on a Metrics value registered against a caller-supplied
// registry, so tests can build as many independent sets as they like.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ffmpeg_api"

// Transcode outcomes used as the "outcome" label.
const (
	OutcomeSuccess       = "success"
	OutcomeToolError     = "tool_error"
	OutcomeOutputMissing = "output_missing"
	OutcomeTimeout       = "timeout"
	OutcomeCanceled      = "canceled"
	OutcomeUnavailable   = "tool_unavailable"
	OutcomeInternal      = "internal_error"
)

// Metrics groups every collector the service exports.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Transcode metrics
	TranscodesTotal   *prometheus.CounterVec
	TranscodeDuration prometheus.Histogram
	UploadBytes       prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them through promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				// Transcodes are slow; stretch well past DefBuckets.
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		TranscodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transcodes_total",
				Help:      "Total number of tool invocations by outcome",
			},
			[]string{"outcome"},
		),
		TranscodeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transcode_duration_seconds",
				Help:      "Wall-clock time spent in the external tool",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			},
		),
		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_bytes",
				Help:      "Size of uploaded input files in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 12),
			},
		),
	}
}
