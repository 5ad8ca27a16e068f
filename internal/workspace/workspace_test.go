package workspace

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAcquire(t *testing.T) {
	base := t.TempDir()

	ws, err := Acquire(base, quietLogger())
	require.NoError(t, err)
	defer ws.Release()

	info, err := os.Stat(ws.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, base, filepath.Dir(ws.Dir()))
	assert.True(t, strings.HasPrefix(filepath.Base(ws.Dir()), Prefix))

	assert.Equal(t, filepath.Join(ws.Dir(), "input.mov"), ws.InputPath(".mov"))
	assert.Equal(t, filepath.Join(ws.Dir(), "output.mp4"), ws.OutputPath(".mp4"))
	assert.Equal(t, filepath.Join(ws.Dir(), "output"), ws.OutputPath(""))
}

func TestAcquire_UniqueUnderConcurrency(t *testing.T) {
	base := t.TempDir()
	const n = 50

	var (
		mu   sync.Mutex
		dirs = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := Acquire(base, quietLogger())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			dirs[ws.Dir()] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, dirs, n)
}

func TestRelease_RemovesEverything(t *testing.T) {
	base := t.TempDir()

	ws, err := Acquire(base, quietLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(ws.InputPath(".mov"), []byte("in"), 0o600))
	require.NoError(t, os.WriteFile(ws.OutputPath(".mp4"), []byte("out"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Dir(), "nested", "deeper"), 0o700))

	ws.Release()

	_, err = os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Second call is a no-op.
	ws.Release()
}

func TestRelease_FailureIsLoggedNotPanicked(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission-based removal failure needs a non-root unix user")
	}

	base := t.TempDir()
	ws, err := Acquire(base, quietLogger())
	require.NoError(t, err)

	var logs bytes.Buffer
	ws.logger = slog.New(slog.NewTextHandler(&logs, nil))

	require.NoError(t, os.WriteFile(ws.InputPath(".mov"), []byte("in"), 0o600))
	// Without write permission on the parent, the directory cannot be unlinked.
	require.NoError(t, os.Chmod(base, 0o500))
	t.Cleanup(func() { _ = os.Chmod(base, 0o700) })

	assert.NotPanics(t, ws.Release)
	assert.Contains(t, logs.String(), "failed to clean up workspace")
}

func TestAcquire_MissingBaseDir(t *testing.T) {
	_, err := Acquire(filepath.Join(t.TempDir(), "does-not-exist"), quietLogger())
	assert.Error(t, err)
}
