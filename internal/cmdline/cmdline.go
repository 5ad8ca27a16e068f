// Package cmdline turns the user-supplied options string into an argument vector.
//
// The string is split with POSIX shell word rules (whitespace separates words, single and
// double quotes group, backslash escapes) but nothing is ever expanded or interpreted:
// ";", "|", "&", "$" and backticks are ordinary characters that end up inside tokens.
// The resulting tokens are handed to the tool as literal argv entries, so no shell is
// involved at any point.
package cmdline

import (
	"errors"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/sakif/ffmpeg-api/internal/apperror"
)

// Field is the form field the options string arrives in.
const Field = "commands"

var errNulByte = errors.New("NUL byte in argument")

// Parse splits commands into tokens.
//
// It fails with an apperror.ErrValidation error when commands is empty or whitespace-only,
// and with apperror.ErrParse when the string cannot be tokenized (unbalanced quotes, a
// trailing backslash) or a token cannot be passed to a process (embedded NUL byte).
// Token meaning is not checked; the tool is the only authority on its flags.
func Parse(commands string) ([]string, error) {
	if strings.TrimSpace(commands) == "" {
		return nil, apperror.ValidationFailed(Field, "FFmpeg commands cannot be empty.")
	}

	args, err := shellquote.Split(commands)
	if err != nil {
		return nil, apperror.ParseFailed(Field, err)
	}

	for _, a := range args {
		if strings.IndexByte(a, 0) >= 0 {
			return nil, apperror.ParseFailed(Field, errNulByte)
		}
	}

	return args, nil
}

// Quote renders argv as a single shell-quoted line. Used for log output only.
func Quote(argv []string) string {
	return shellquote.Join(argv...)
}
