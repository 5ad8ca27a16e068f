package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// settings is everything the serve command needs, after flags and environment are merged.
type settings struct {
	Host         string
	Port         int
	FFmpeg       string
	Timeout      time.Duration
	TempDir      string
	MaxUpload    int64
	CaptureBytes int
	Runner       string
	DockerImage  string
	JWTSecret    string
	LogLevel     string
	LogFormat    string
}

// defaultSettings reads the environment. Flags registered on top of these
// defaults win when given on the command line.
func defaultSettings(getenv func(string) string) (settings, error) {
	s := settings{
		Host:         envString(getenv, "HOST", "0.0.0.0"),
		FFmpeg:       envString(getenv, "FFMPEG_PATH", "ffmpeg"),
		TempDir:      envString(getenv, "TEMP_DIR", ""),
		Runner:       envString(getenv, "RUNNER", "exec"),
		DockerImage:  envString(getenv, "DOCKER_IMAGE", "linuxserver/ffmpeg:latest"),
		JWTSecret:    envString(getenv, "JWT_SECRET", ""),
		LogLevel:     envString(getenv, "LOG_LEVEL", "info"),
		LogFormat:    envString(getenv, "LOG_FORMAT", "text"),
		Port:         8080,
		Timeout:      5 * time.Minute,
		MaxUpload:    2 << 30,
		CaptureBytes: 64 << 10,
	}

	var err error
	if v := getenv("PORT"); v != "" {
		if s.Port, err = strconv.Atoi(v); err != nil {
			return s, fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
	}
	if v := getenv("FFMPEG_TIMEOUT"); v != "" {
		if s.Timeout, err = parseTimeout(v); err != nil {
			return s, fmt.Errorf("invalid FFMPEG_TIMEOUT value %q: %w", v, err)
		}
	}
	if v := getenv("MAX_UPLOAD_BYTES"); v != "" {
		if s.MaxUpload, err = strconv.ParseInt(v, 10, 64); err != nil {
			return s, fmt.Errorf("invalid MAX_UPLOAD_BYTES value %q: %w", v, err)
		}
	}
	if v := getenv("CAPTURE_BYTES"); v != "" {
		if s.CaptureBytes, err = strconv.Atoi(v); err != nil {
			return s, fmt.Errorf("invalid CAPTURE_BYTES value %q: %w", v, err)
		}
	}
	return s, nil
}

// parseTimeout accepts a Go duration ("90s", "5m") or a bare number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func envString(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// validate rejects settings the server cannot start with.
func (s settings) validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	}
	if s.MaxUpload < 0 {
		return fmt.Errorf("max upload must not be negative, got %d", s.MaxUpload)
	}
	switch s.Runner {
	case "exec", "docker":
	default:
		return fmt.Errorf("unknown runner %q (want exec or docker)", s.Runner)
	}
	if s.TempDir != "" {
		info, err := os.Stat(s.TempDir)
		if err != nil {
			return fmt.Errorf("temp dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("temp dir %s is not a directory", s.TempDir)
		}
	}
	return nil
}

// newLogger builds the process logger. Log levels (from least to most severe):
// debug → info → warn → error.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}
