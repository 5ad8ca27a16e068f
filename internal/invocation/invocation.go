// Package invocation assembles the argument vector for the transcoding tool and decides
// what the produced file is called.
package invocation

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sakif/ffmpeg-api/internal/mediatype"
)

const (
	// Suffix is inserted before the extension of a derived output name.
	Suffix = "_transformed"

	// DefaultExtension is used when no extension can be inferred.
	DefaultExtension = ".bin"

	// DefaultUploadName stands in for an upload sent without a usable filename.
	DefaultUploadName = "input_file"
)

// PreFlags always lead the argument vector. "-y" overwrites the output without asking,
// so the tool never blocks on an interactive prompt.
var PreFlags = []string{"-y", "-hide_banner", "-nostdin"}

// Spec is everything needed to build an Invocation.
type Spec struct {
	Binary     string
	InputPath  string
	OutputPath string
	Args       []string // parsed user tokens
}

// Invocation is a finalized tool call. The zero value is not useful; use Build.
type Invocation struct {
	binary     string
	inputPath  string
	outputPath string
	args       []string
}

// Build copies spec into an Invocation. The user args are copied so later changes to the
// caller's slice cannot alter the call.
func Build(spec Spec) Invocation {
	args := make([]string, len(spec.Args))
	copy(args, spec.Args)
	return Invocation{
		binary:     spec.Binary,
		inputPath:  spec.InputPath,
		outputPath: spec.OutputPath,
		args:       args,
	}
}

// Binary returns the executable name or path.
func (inv Invocation) Binary() string { return inv.binary }

// InputPath returns the input file path on the host.
func (inv Invocation) InputPath() string { return inv.inputPath }

// OutputPath returns the output file path on the host.
func (inv Invocation) OutputPath() string { return inv.outputPath }

// Argv returns the arguments (without the binary) in the required order:
// pre-flags, "-i" input, user tokens, output.
func (inv Invocation) Argv() []string {
	return inv.ArgvWithPaths(inv.inputPath, inv.outputPath)
}

// ArgvWithPaths is Argv with the input and output paths replaced, for runners that see
// the workspace under a different path. User tokens are never rewritten.
func (inv Invocation) ArgvWithPaths(input, output string) []string {
	argv := make([]string, 0, len(PreFlags)+3+len(inv.args))
	argv = append(argv, PreFlags...)
	argv = append(argv, "-i", input)
	argv = append(argv, inv.args...)
	argv = append(argv, output)
	return argv
}

// CommandLine returns the binary followed by Argv.
func (inv Invocation) CommandLine() []string {
	return append([]string{inv.binary}, inv.Argv()...)
}

// SanitizeFilename keeps only the last path element of name and replaces every character
// other than a letter, a digit, '.', '_' or '-' with "_". Letters and digits may be any script. Leading dots are dropped so the result can never be
// "." or "..". It returns "" when nothing usable is left.
func SanitizeFilename(name string) string {
	// Browsers on Windows may send full paths; treat both separators alike.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if strings.Trim(out, "_") == "" {
		return ""
	}
	return out
}

// UploadName returns the sanitized upload filename, or DefaultUploadName.
func UploadName(original string) string {
	if s := SanitizeFilename(original); s != "" {
		return s
	}
	return DefaultUploadName
}

// OutputName resolves the user-facing name of the produced file.
//
// A requested name wins after sanitization. Otherwise the name is derived from the upload:
// "clip.mov" becomes "clip_transformed.mov". An upload without an extension takes one from
// a "-f <format>" token in args, then from the upload's content type, then DefaultExtension.
// The result depends only on these inputs, never on workspace paths.
func OutputName(original, requested string, args []string, uploadContentType string) string {
	if requested != "" {
		if s := SanitizeFilename(requested); s != "" {
			return s
		}
	}

	name := UploadName(original)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "." {
		ext = ""
	}
	if ext == "" {
		ext = inferExtension(args, uploadContentType)
	}
	return base + Suffix + ext
}

func inferExtension(args []string, uploadContentType string) string {
	// The last "-f" wins, as with the tool's own option parsing.
	format := ""
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-f" {
			format = args[i+1]
		}
	}
	if format != "" {
		if ext, ok := mediatype.ExtensionForFormat(format); ok {
			return ext
		}
	}
	if ext, ok := mediatype.ExtensionForType(uploadContentType); ok {
		return ext
	}
	return DefaultExtension
}
