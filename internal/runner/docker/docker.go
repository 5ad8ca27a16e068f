// Package docker runs the transcoding tool inside a throwaway container, one per job.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/ffmpeg-api/internal/apperror"
	"github.com/sakif/ffmpeg-api/internal/cmdline"
	"github.com/sakif/ffmpeg-api/internal/runner"
)

// mountPoint is where the job's workspace appears inside the container.
const mountPoint = "/work"

// Runner implements runner.Runner using Docker.
type Runner struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
}

// New creates a Docker Runner, verifies the daemon answers, and pulls the image.
func New(cfg Config, logger *slog.Logger) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Make sure the image is pulled
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete
	if _, err := io.Copy(io.Discard, reader); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	logger.Info("docker image is ready")

	def := runner.DefaultConfig()
	if cfg.Run.Timeout <= 0 {
		cfg.Run.Timeout = def.Timeout
	}
	if cfg.Run.CaptureBytes <= 0 {
		cfg.Run.CaptureBytes = def.CaptureBytes
	}
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}

	return &Runner{
		cli:    cli,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the docker client.
func (r *Runner) Close() error {
	return r.cli.Close()
}

// Run executes job inside a new container with job.Dir bind-mounted at /work.
func (r *Runner) Run(ctx context.Context, job runner.Job) (*runner.Result, error) {
	start := time.Now()
	inv := job.Invocation

	dir, err := filepath.Abs(job.Dir)
	if err != nil {
		return nil, fmt.Errorf("docker: resolving workspace: %w", err)
	}
	argv := inv.ArgvWithPaths(
		path.Join(mountPoint, filepath.Base(inv.InputPath())),
		path.Join(mountPoint, filepath.Base(inv.OutputPath())),
	)

	hostConfig := &container.HostConfig{
		Binds:       []string{dir + ":" + mountPoint},
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   r.config.MemoryLimit,
			NanoCPUs: int64(r.config.CPULimit * 1e9),
		},
		AutoRemove:     false,
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,size=256m"},
	}

	createCtx, createCancel := context.WithTimeout(ctx, 30*time.Second)
	defer createCancel()

	resp, err := r.cli.ContainerCreate(createCtx, &container.Config{
		Image:        r.config.Image,
		Entrypoint:   []string{r.config.Binary},
		Cmd:          argv,
		WorkingDir:   mountPoint,
		AttachStdout: false,
		AttachStderr: false,
		// Same uid:gid as the server so the workspace stays removable.
		User: fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}, hostConfig, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("docker: ContainerCreate failed: %w", err)
	}

	// Always ensure we clean up the container that we created
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := r.cli.ContainerRemove(cleanupCtx, resp.ID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			r.logger.Error("failed to remove container", slog.String("id", resp.ID), slog.String("error", err.Error()))
		}
	}()

	r.logger.Info("running ffmpeg in container",
		slog.String("container", resp.ID),
		slog.String("command", cmdline.Quote(append([]string{r.config.Binary}, argv...))),
	)

	// We apply a timeout context purely for the container wait
	runCtx, runCancel := context.WithTimeout(ctx, r.config.Run.Timeout)
	defer runCancel()

	// Register the wait before starting so a fast exit is not missed.
	waitCh, waitErrCh := r.cli.ContainerWait(runCtx, resp.ID, container.WaitConditionNextExit)

	if err := r.cli.ContainerStart(runCtx, resp.ID, container.StartOptions{}); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return nil, apperror.ToolUnavailable(r.config.Binary)
		}
		return nil, fmt.Errorf("docker: ContainerStart failed: %w", err)
	}

	exitCode := -1
	finished := false
	var runErr error

	select {
	case w := <-waitCh:
		finished = true
		exitCode = int(w.StatusCode)
		if w.Error != nil && w.Error.Message != "" {
			runErr = fmt.Errorf("docker: wait: %s", w.Error.Message)
		}
	case err := <-waitErrCh:
		runErr = err
	case <-runCtx.Done():
	}

	timedOut := false
	if !finished && runCtx.Err() != nil {
		r.kill(resp.ID)
		if ctx.Err() != nil {
			runErr = fmt.Errorf("docker: %w", apperror.Canceled())
		} else {
			timedOut = true
			runErr = nil
		}
	}

	stdout := runner.NewTailBuffer(r.config.Run.CaptureBytes)
	stderr := runner.NewTailBuffer(r.config.Run.CaptureBytes)
	r.collectLogs(resp.ID, stdout, stderr)

	res := &runner.Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case timedOut:
		r.logger.Warn("ffmpeg container killed after timeout", slog.Duration("timeout", r.config.Run.Timeout))
		return res, apperror.TimedOut(r.config.Run.Timeout, res.Stderr)
	case errors.Is(runErr, apperror.ErrCanceled):
		return res, runErr
	case runErr != nil:
		return nil, runErr
	}
	return res, nil
}

// kill stops a container that outlived its deadline.
func (r *Runner) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.cli.ContainerKill(ctx, id, "KILL"); err != nil {
		r.logger.Warn("failed to kill container", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// collectLogs demultiplexes the container's stdout and stderr.
func (r *Runner) collectLogs(id string, stdout, stderr io.Writer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logs, err := r.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		r.logger.Warn("failed to read container logs", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	defer logs.Close()

	// Use stdcopy to demultiplex stdout from stderr
	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		r.logger.Warn("failed to demultiplex container logs", slog.String("id", id), slog.String("error", err.Error()))
	}
}
