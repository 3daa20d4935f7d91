package http

import (
	"context"
	"log/slog"

	"github.com/example/lab-scheduler/internal/domain"
	"github.com/example/lab-scheduler/internal/logging"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ContextWithActor returns a derived context containing the authenticated actor.
func ContextWithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext extracts the authenticated actor from context if available.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	return actor, ok
}

// ContextWithLogger attaches a request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
