// Command ffmpeg-api serves an HTTP endpoint that runs uploaded media through ffmpeg.
//
// The main package stays minimal: it reads configuration, builds the logger
// and the runner, and hands everything to internal/server.
//
//	ffmpeg-api serve --port 8080 --timeout 10m
//	ffmpeg-api token --subject ci-runner --ttl 720h
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sakif/ffmpeg-api/internal/runner"
	"github.com/sakif/ffmpeg-api/internal/runner/docker"
	"github.com/sakif/ffmpeg-api/internal/server"
)

func main() {
	// A .env file is a local-development convenience; production sets real env vars.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	rootCmd, err := newRootCmd(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd wires the command tree. Running the bare binary is the same as "serve".
func newRootCmd(getenv func(string) string) (*cobra.Command, error) {
	cfg, err := defaultSettings(getenv)
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:           "ffmpeg-api",
		Short:         "HTTP front end for ffmpeg",
		Long:          "Accepts a media upload plus ffmpeg arguments, runs ffmpeg in an isolated workspace and returns the result.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	f := serveCmd.Flags()
	f.StringVar(&cfg.Host, "host", cfg.Host, "Interface to listen on (HOST)")
	f.IntVar(&cfg.Port, "port", cfg.Port, "Port to listen on (PORT)")
	f.StringVar(&cfg.FFmpeg, "ffmpeg", cfg.FFmpeg, "ffmpeg binary name or path (FFMPEG_PATH)")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Maximum run time of one ffmpeg invocation (FFMPEG_TIMEOUT)")
	f.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "Directory for per-request workspaces, default system temp (TEMP_DIR)")
	f.Int64Var(&cfg.MaxUpload, "max-upload", cfg.MaxUpload, "Maximum request body size in bytes, 0 for unlimited (MAX_UPLOAD_BYTES)")
	f.IntVar(&cfg.CaptureBytes, "capture-bytes", cfg.CaptureBytes, "Bytes of stdout/stderr kept per run (CAPTURE_BYTES)")
	f.StringVar(&cfg.Runner, "runner", cfg.Runner, "How ffmpeg is run: exec or docker (RUNNER)")
	f.StringVar(&cfg.DockerImage, "docker-image", cfg.DockerImage, "Image used by the docker runner (DOCKER_IMAGE)")
	f.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "HMAC secret; enables bearer auth on /process when set (JWT_SECRET)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (LOG_LEVEL)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json (LOG_FORMAT)")

	rootCmd.AddCommand(serveCmd, newTokenCmd(&cfg))
	// Bare invocation behaves like "serve", with the same flags.
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.RunE = serveCmd.RunE

	return rootCmd, nil
}

// serve builds the runner and blocks until the server shuts down.
func serve(ctx context.Context, cfg settings) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	logger, err := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, /process is open to anyone who can reach it")
	}

	runCfg := runner.DefaultConfig()
	runCfg.Timeout = cfg.Timeout
	runCfg.CaptureBytes = cfg.CaptureBytes

	var (
		r       runner.Runner
		version string
	)
	switch cfg.Runner {
	case "docker":
		dcfg := docker.DefaultConfig()
		dcfg.Image = cfg.DockerImage
		dcfg.Binary = cfg.FFmpeg
		dcfg.Run = runCfg
		d, err := docker.New(dcfg, logger)
		if err != nil {
			return fmt.Errorf("docker runner: %w", err)
		}
		defer d.Close()
		r = d
	default:
		r = runner.NewExec(runCfg, logger)
		version = probeTool(ctx, cfg.FFmpeg, logger)
	}

	srv, err := server.New(server.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Tool:           cfg.FFmpeg,
		RunnerName:     cfg.Runner,
		ToolVersion:    version,
		TempDir:        cfg.TempDir,
		MaxUploadBytes: cfg.MaxUpload,
		ToolTimeout:    cfg.Timeout,
		JWTSecret:      cfg.JWTSecret,
	}, r, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	return srv.Start()
}

// probeTool logs the tool's version line. A missing tool is not fatal:
// the server still starts and requests report tool_unavailable.
func probeTool(ctx context.Context, binary string, logger *slog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	version, err := runner.Version(ctx, binary)
	if err != nil {
		logger.Warn("ffmpeg not usable, requests will fail until it is installed",
			slog.String("ffmpeg", binary),
			slog.String("error", err.Error()),
		)
		return ""
	}
	logger.Info("ffmpeg found", slog.String("ffmpeg", binary), slog.String("version", version))
	return version
}
