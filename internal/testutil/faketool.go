// Package testutil holds helpers shared by tests in several packages.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// fakeFFmpeg mimics the tool's contract: "-y -hide_banner -nostdin -i IN [args...] OUT".
// Magic tokens in args trigger failure modes; otherwise IN is copied to OUT byte for byte.
const fakeFFmpeg = `#!/bin/sh
in="$5"
for out; do :; done
for a; do
  case "$a" in
    -badflag)
      echo "Unrecognized option 'badflag'." >&2
      echo "Error splitting the argument list: Option not found" >&2
      exit 8 ;;
    -hang)
      sleep 30 &
      wait
      exit 0 ;;
    -noout)
      echo "nothing to write" >&2
      exit 0 ;;
    -emptyout)
      : > "$out"
      exit 0 ;;
    -stdout)
      echo "progress=end" ;;
    -argv)
      for x; do printf '%s\n' "$x"; done
      cp "$in" "$out"
      exit 0 ;;
  esac
done
if [ "$1" = "-version" ]; then
  echo "ffmpeg version 6.1-fake Copyright (c) 2000-2023 the FFmpeg developers"
  echo "built with fake"
  exit 0
fi
echo "fake ffmpeg: $in -> $out" >&2
cp "$in" "$out"
`

// FakeFFmpeg writes an executable stand-in for ffmpeg into a temp dir and returns its path.
// Tests are skipped on platforms without /bin/sh.
func FakeFFmpeg(t testing.TB) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a POSIX shell script")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(fakeFFmpeg), 0o755); err != nil {
		t.Fatalf("writing fake ffmpeg: %v", err)
	}
	return path
}

// Logger returns a logger that discards everything below Error.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
