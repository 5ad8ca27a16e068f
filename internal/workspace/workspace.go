// Package workspace allocates the per-request scratch directory that holds the uploaded
// input and the tool's output.
//
// Every request gets its own directory named with an xid, so two concurrent requests can
// never write to the same paths. Callers defer Release right after Acquire; Release removes
// the whole directory on every exit path and only logs when removal fails.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/xid"
)

// Prefix starts the name of every workspace directory.
const Prefix = "ffmpeg-api-"

const (
	inputBase  = "input"
	outputBase = "output"
)

// Workspace is one request's scratch directory.
type Workspace struct {
	dir    string
	logger *slog.Logger

	releaseOnce sync.Once
}

// Acquire creates a fresh workspace directory under baseDir (os.TempDir() when empty).
func Acquire(baseDir string, logger *slog.Logger) (*Workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir := filepath.Join(baseDir, Prefix+xid.New().String())
	// Mkdir (not MkdirAll) fails if the path already exists, so a directory is never shared.
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("workspace: creating %s: %w", dir, err)
	}

	logger.Debug("workspace acquired", slog.String("dir", dir))
	return &Workspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// InputPath returns the path the upload is written to. ext keeps the upload's extension
// so the tool can use it as a format hint.
func (w *Workspace) InputPath(ext string) string {
	return filepath.Join(w.dir, inputBase+ext)
}

// OutputPath returns the path the tool writes to. Only ext comes from the resolved output
// name; the rest of the path is fixed.
func (w *Workspace) OutputPath(ext string) string {
	return filepath.Join(w.dir, outputBase+ext)
}

// Release removes the workspace and everything in it. Safe to call more than once.
// Removal errors are logged, never returned.
func (w *Workspace) Release() {
	w.releaseOnce.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.logger.Error("failed to clean up workspace",
				slog.String("dir", w.dir),
				slog.String("error", err.Error()),
			)
			return
		}
		w.logger.Debug("workspace released", slog.String("dir", w.dir))
	})
}
