package docker_test

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ffmpeg-api/internal/apperror"
	"github.com/sakif/ffmpeg-api/internal/invocation"
	"github.com/sakif/ffmpeg-api/internal/runner"
	"github.com/sakif/ffmpeg-api/internal/runner/docker"
)

func TestDockerRunner(t *testing.T) {
	// Skip in CI environments if docker is not available
	if os.Getenv("CI") != "" {
		t.Skip("Skipping docker test in CI environment")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	cfg.Run.Timeout = time.Minute

	r, err := docker.New(cfg, logger)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer r.Close()

	newJob := func(t *testing.T, args ...string) runner.Job {
		dir := t.TempDir()
		in := filepath.Join(dir, "input.wav")
		require.NoError(t, os.WriteFile(in, silentWAV(8000), 0o644))
		return runner.Job{
			Invocation: invocation.Build(invocation.Spec{
				Binary:     "ffmpeg",
				InputPath:  in,
				OutputPath: filepath.Join(dir, "output.wav"),
				Args:       args,
			}),
			Dir: dir,
		}
	}

	t.Run("successful transcode", func(t *testing.T) {
		job := newJob(t, "-c:a", "pcm_s16le", "-ar", "16000")
		res, err := r.Run(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode, res.Stderr)

		info, err := os.Stat(job.Invocation.OutputPath())
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(44))
	})

	t.Run("tool error is captured", func(t *testing.T) {
		res, err := r.Run(context.Background(), newJob(t, "-badflag"))
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Stderr, "badflag")
	})

	t.Run("timeout", func(t *testing.T) {
		fast := cfg
		fast.Run.Timeout = 2 * time.Second
		fastRunner, err := docker.New(fast, logger)
		require.NoError(t, err)
		defer fastRunner.Close()

		// A second, endless input read in real time never finishes on its own.
		_, err = fastRunner.Run(context.Background(), newJob(t,
			"-f", "lavfi", "-re", "-i", "anullsrc", "-map", "1:a"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrTimeout))
	})
}

// silentWAV returns a mono 16-bit PCM WAV file of n zero samples at 8 kHz.
func silentWAV(n int) []byte {
	dataLen := n * 2
	b := make([]byte, 44+dataLen)
	copy(b[0:], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], uint32(36+dataLen))
	copy(b[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(b[16:], 16)
	binary.LittleEndian.PutUint16(b[20:], 1) // PCM
	binary.LittleEndian.PutUint16(b[22:], 1) // mono
	binary.LittleEndian.PutUint32(b[24:], 8000)
	binary.LittleEndian.PutUint32(b[28:], 16000)
	binary.LittleEndian.PutUint16(b[32:], 2)
	binary.LittleEndian.PutUint16(b[34:], 16)
	copy(b[36:], "data")
	binary.LittleEndian.PutUint32(b[40:], uint32(dataLen))
	return b
}
