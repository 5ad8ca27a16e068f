package docker

import (
	"github.com/sakif/ffmpeg-api/internal/runner"
)

// Config holds the configuration for containerised tool runs.
type Config struct {
	// Image is the Docker image that provides the tool.
	Image string
	// Binary is the tool's name or path inside the image.
	Binary string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Run carries the timeout and capture limits shared with the exec runner.
	Run runner.Config
}

// DefaultConfig provides sensible defaults for an ffmpeg container.
func DefaultConfig() Config {
	return Config{
		Image:  "linuxserver/ffmpeg:latest",
		Binary: "ffmpeg",
		// 2 GB memory limit; transcodes buffer whole GOPs
		MemoryLimit: 2 * 1024 * 1024 * 1024,
		CPULimit:    2,
		Run:         runner.DefaultConfig(),
	}
}
