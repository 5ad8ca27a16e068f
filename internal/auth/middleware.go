package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/ffmpeg-api/internal/apperror"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the subject value.
type contextKey string

const subjectKey contextKey = "subject"

// RequireBearer is a middleware that enforces a valid bearer token.
//
// It reads "Authorization: Bearer <jwt>", validates it and stores the token
// subject in the request context. A missing or invalid token ends the request
// with an apperror.Unauthorized passed to writeError.
func RequireBearer(tokens *TokenService, logger *slog.Logger, writeError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ffmpeg-api"`)
				writeError(w, apperror.Unauthorized("valid authentication required"))
				return
			}

			subject, err := tokens.Validate(raw)
			if err != nil {
				logger.Info("rejected bearer token",
					slog.String("remote", r.RemoteAddr),
					slog.String("error", err.Error()),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="ffmpeg-api", error="invalid_token"`)
				writeError(w, apperror.Unauthorized("valid authentication required"))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated token subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

// bearerToken extracts the token from the Authorization header.
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
