package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/ffmpeg-api/internal/apperror"
	"github.com/sakif/ffmpeg-api/internal/auth"
	"github.com/sakif/ffmpeg-api/internal/cmdline"
	"github.com/sakif/ffmpeg-api/internal/invocation"
	"github.com/sakif/ffmpeg-api/internal/mediatype"
	"github.com/sakif/ffmpeg-api/internal/metrics"
	"github.com/sakif/ffmpeg-api/internal/runner"
	"github.com/sakif/ffmpeg-api/internal/workspace"
)

// Multipart field names of POST /process.
const (
	FieldFile           = "file"
	FieldCommands       = cmdline.Field
	FieldOutputFilename = "output_filename"
)

// DefaultMaxFieldBytes bounds each text field of the form.
const DefaultMaxFieldBytes = 64 << 10

// ProcessConfig holds the settings of the processing endpoint.
type ProcessConfig struct {
	// Binary is the tool placed at the head of every invocation.
	Binary string
	// TempDir is where workspaces are created; os.TempDir() when empty.
	TempDir string
	// MaxUploadBytes caps the whole request body; zero means unlimited.
	MaxUploadBytes int64
	// MaxFieldBytes caps each text field; DefaultMaxFieldBytes when zero.
	MaxFieldBytes int64
}

// ProcessHandler runs one uploaded file through the tool and streams back the result.
type ProcessHandler struct {
	runner  runner.Runner
	config  ProcessConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProcessHandler creates a new ProcessHandler.
func NewProcessHandler(r runner.Runner, cfg ProcessConfig, m *metrics.Metrics, logger *slog.Logger) *ProcessHandler {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.MaxFieldBytes <= 0 {
		cfg.MaxFieldBytes = DefaultMaxFieldBytes
	}
	return &ProcessHandler{
		runner:  r,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// upload is the file part of the form once it is on disk.
type upload struct {
	path        string
	name        string // as sent by the client, unsanitized
	contentType string
	size        int64
}

// processForm is the decoded multipart body.
type processForm struct {
	file           *upload
	commands       *string
	outputFilename string
}

// HandleProcess handles POST /process.
//
// REQUEST FLOW:
//  1. Acquire a private workspace; the deferred Release removes it on every path
//  2. Stream the "file" part to <workspace>/input<ext>, read the text fields
//  3. Tokenize "commands" and resolve the user-facing output name
//  4. Run <tool> -y -hide_banner -nostdin -i <input> <tokens...> <workspace>/output<ext>
//  5. Stream the output back, or a JSON error
func (h *ProcessHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("request_id", chimiddleware.GetReqID(r.Context())))
	if subject, ok := auth.SubjectFromContext(r.Context()); ok {
		logger = logger.With(slog.String("subject", subject))
	}

	if h.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	}

	ws, err := workspace.Acquire(h.config.TempDir, logger)
	if err != nil {
		logger.Error("failed to create workspace", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}
	defer ws.Release()

	form, err := h.readForm(r, ws)
	if err != nil {
		logger.Info("rejected upload", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}
	if form.file == nil {
		WriteError(w, apperror.MissingField(FieldFile))
		return
	}
	if form.commands == nil {
		WriteError(w, apperror.MissingField(FieldCommands))
		return
	}
	h.metrics.UploadBytes.Observe(float64(form.file.size))

	args, err := cmdline.Parse(*form.commands)
	if err != nil {
		logger.Info("rejected commands", slog.String("error", err.Error()))
		WriteError(w, err)
		return
	}

	name := invocation.OutputName(form.file.name, form.outputFilename, args, form.file.contentType)

	inv := invocation.Build(invocation.Spec{
		Binary:     h.config.Binary,
		InputPath:  form.file.path,
		OutputPath: ws.OutputPath(filepath.Ext(name)),
		Args:       args,
	})

	logger.Info("processing upload",
		slog.String("filename", form.file.name),
		slog.Int64("size", form.file.size),
		slog.String("output", name),
	)

	res, err := h.runner.Run(r.Context(), runner.Job{Invocation: inv, Dir: ws.Dir()})
	if res != nil {
		h.metrics.TranscodeDuration.Observe(res.Duration.Seconds())
	}
	if err != nil {
		h.recordOutcome(err)
		h.logFailure(logger, "ffmpeg run failed", err, res)
		WriteError(w, err)
		return
	}

	if res.ExitCode != 0 {
		h.recordOutcome(apperror.ErrToolExecution)
		h.logFailure(logger, "ffmpeg exited with an error", nil, res)
		WriteError(w, apperror.ToolFailed(res.ExitCode, res.Stdout, res.Stderr))
		return
	}

	out, info, err := openOutput(inv.OutputPath())
	if err != nil {
		h.recordOutcome(apperror.ErrOutputMissing)
		h.logFailure(logger, "ffmpeg produced no output", err, res)
		WriteError(w, apperror.OutputMissing(res.Stderr))
		return
	}
	defer out.Close()

	h.recordOutcome(nil)
	logger.Info("transform complete",
		slog.String("output", name),
		slog.Int64("size", info.Size()),
		slog.Duration("duration", res.Duration),
	)

	// The whole file is always sent: a POST never gets a partial or conditional reply.
	for _, h := range conditionalHeaders {
		r.Header.Del(h)
	}
	w.Header().Set("Content-Type", mediatype.ForName(name))
	w.Header().Set("Content-Disposition", contentDisposition(name))
	http.ServeContent(w, r, name, info.ModTime(), out)
}

// conditionalHeaders are the request headers http.ServeContent would act on.
var conditionalHeaders = []string{
	"Range",
	"If-Range",
	"If-Match",
	"If-None-Match",
	"If-Modified-Since",
	"If-Unmodified-Since",
}

// contentDisposition renders an attachment header. Names outside printable ASCII
// use the RFC 2231 filename* form.
func contentDisposition(name string) string {
	for _, r := range name {
		if r < 0x20 || r > 0x7e {
			return mime.FormatMediaType("attachment", map[string]string{"filename": name})
		}
	}
	return fmt.Sprintf("attachment; filename=%q", name)
}

// readForm walks the multipart body part by part. The file is copied straight
// to disk, never buffered whole in memory.
func (h *ProcessHandler) readForm(r *http.Request, ws *workspace.Workspace) (*processForm, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperror.ValidationFailed(FieldFile, "request body must be multipart/form-data")
	}

	form := &processForm{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return nil, h.bodyError(err)
		}

		switch part.FormName() {
		case FieldFile:
			if form.file != nil || part.FileName() == "" {
				// Only the first file counts; later ones and plain text
				// fields named "file" are drained by NextPart.
				break
			}
			up, err := h.saveUpload(part, ws)
			if err != nil {
				part.Close()
				return nil, err
			}
			form.file = up
		case FieldCommands:
			v, err := h.readField(part)
			if err != nil {
				part.Close()
				return nil, err
			}
			form.commands = &v
		case FieldOutputFilename:
			v, err := h.readField(part)
			if err != nil {
				part.Close()
				return nil, err
			}
			form.outputFilename = v
		}
		part.Close()
	}
}

// saveUpload streams the file part to the workspace input path.
func (h *ProcessHandler) saveUpload(part *multipart.Part, ws *workspace.Workspace) (*upload, error) {
	original := part.FileName()
	path := ws.InputPath(filepath.Ext(invocation.UploadName(original)))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating upload file: %w", err)
	}
	n, err := io.Copy(f, part)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, h.bodyError(err)
	}

	return &upload{
		path:        path,
		name:        original,
		contentType: part.Header.Get("Content-Type"),
		size:        n,
	}, nil
}

// readField reads one text field, refusing values over MaxFieldBytes.
func (h *ProcessHandler) readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, h.config.MaxFieldBytes+1))
	if err != nil {
		return "", h.bodyError(err)
	}
	if int64(len(b)) > h.config.MaxFieldBytes {
		return "", apperror.ValidationFailed(part.FormName(),
			fmt.Sprintf("field %q exceeds %d bytes", part.FormName(), h.config.MaxFieldBytes))
	}
	return string(b), nil
}

// bodyError classifies a failure while reading the request body.
func (h *ProcessHandler) bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperror.TooLarge(tooLarge.Limit)
	}
	return fmt.Errorf("reading multipart body: %w",
		apperror.ValidationFailed(FieldFile, "malformed multipart body: "+err.Error()))
}

// openOutput opens the produced file, treating an absent or empty file as missing.
func openOutput(path string) (*os.File, os.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		f.Close()
		return nil, nil, fmt.Errorf("output %s is empty or not a regular file", path)
	}
	return f, info, nil
}

func (h *ProcessHandler) recordOutcome(err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrToolExecution):
		outcome = metrics.OutcomeToolError
	case errors.Is(err, apperror.ErrOutputMissing):
		outcome = metrics.OutcomeOutputMissing
	case errors.Is(err, apperror.ErrTimeout):
		outcome = metrics.OutcomeTimeout
	case errors.Is(err, apperror.ErrCanceled):
		outcome = metrics.OutcomeCanceled
	case errors.Is(err, apperror.ErrToolUnavailable):
		outcome = metrics.OutcomeUnavailable
	default:
		outcome = metrics.OutcomeInternal
	}
	h.metrics.TranscodesTotal.WithLabelValues(outcome).Inc()
}

// logFailure records what the tool said; clients get the same text in the error body.
func (h *ProcessHandler) logFailure(logger *slog.Logger, msg string, err error, res *runner.Result) {
	attrs := []any{}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	if res != nil {
		attrs = append(attrs,
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", res.Stderr),
			slog.String("stdout", res.Stdout),
			slog.Duration("duration", res.Duration.Round(time.Millisecond)),
		)
	}
	if errors.Is(err, apperror.ErrCanceled) {
		logger.Info(msg, attrs...)
		return
	}
	logger.Warn(msg, attrs...)
}
