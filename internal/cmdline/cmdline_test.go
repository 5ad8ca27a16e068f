package cmdline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ffmpeg-api/internal/apperror"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		commands string
		want     []string
	}{
		{
			name:     "simple flags",
			commands: "-vf scale=640:-1 -c:a copy",
			want:     []string{"-vf", "scale=640:-1", "-c:a", "copy"},
		},
		{
			name:     "collapses runs of whitespace",
			commands: "  -c:v   libx264\t-crf 23\n",
			want:     []string{"-c:v", "libx264", "-crf", "23"},
		},
		{
			name:     "double quotes keep inner whitespace",
			commands: `-vf "drawtext=text='hello world':x=10"`,
			want:     []string{"-vf", "drawtext=text='hello world':x=10"},
		},
		{
			name:     "single quotes keep inner whitespace",
			commands: `-metadata 'title=My Clip'`,
			want:     []string{"-metadata", "title=My Clip"},
		},
		{
			name:     "backslash escapes a space",
			commands: `-metadata title=My\ Clip`,
			want:     []string{"-metadata", "title=My Clip"},
		},
		{
			name:     "shell metacharacters stay literal",
			commands: "-vf scale=640:-1; rm -rf /",
			want:     []string{"-vf", "scale=640:-1;", "rm", "-rf", "/"},
		},
		{
			name:     "no variable or command expansion",
			commands: "-metadata comment=$HOME `id` $(whoami)",
			want:     []string{"-metadata", "comment=$HOME", "`id`", "$(whoami)"},
		},
		{
			name:     "pipes and redirects are tokens",
			commands: "-f mp4 | cat > /etc/passwd",
			want:     []string{"-f", "mp4", "|", "cat", ">", "/etc/passwd"},
		},
		{
			name:     "hash is not a comment",
			commands: "-vf drawbox=color=#ff0000",
			want:     []string{"-vf", "drawbox=color=#ff0000"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.commands)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", " ", "\t\n  "} {
		_, err := Parse(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "input %q", in)

		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, Field, appErr.Field)
	}
}

func TestParse_Unparsable(t *testing.T) {
	tests := []struct {
		name     string
		commands string
	}{
		{name: "unterminated double quote", commands: `-vf "scale=640:-1`},
		{name: "unterminated single quote", commands: `-metadata 'title=x`},
		{name: "trailing escape", commands: `-c copy \`},
		{name: "NUL byte", commands: "-c copy\x00-y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.commands)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrParse))
			assert.False(t, errors.Is(err, apperror.ErrValidation))
		})
	}
}

func TestQuote(t *testing.T) {
	got := Quote([]string{"ffmpeg", "-i", "/tmp/my file.mov", "out.mp4"})
	assert.Equal(t, `ffmpeg -i '/tmp/my file.mov' out.mp4`, got)
}
