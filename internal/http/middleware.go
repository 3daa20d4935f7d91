package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/example/lab-scheduler/internal/domain"
)

// TokenVerifier turns a bearer token into the acting user.
type TokenVerifier interface {
	Verify(token string) (domain.Actor, error)
}

// RequireActor rejects requests without a valid bearer token and stores the
// verified actor in the request context.
func RequireActor(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingToken)
				return
			}

			actor, err := verifier.Verify(token)
			if err != nil {
				if !errors.Is(err, ErrInvalidToken) {
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "token verification failed", "error", err)
				}
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidToken)
				return
			}

			ctx := ContextWithActor(r.Context(), actor)
			if logger := LoggerFromContext(ctx); logger != nil {
				ctx = ContextWithLogger(ctx, logger.With("actor_id", actor.UserID, "actor_role", actor.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractTokenFromRequest reads the bearer header, falling back to the
// access_token query parameter that browsers use for websocket upgrades.
func extractTokenFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// RequestLogger attaches a request-scoped logger tagged with chi's request id.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start))
		})
	}
}
