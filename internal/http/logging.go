package http

import (
	"context"
	"log/slog"

	"github.com/example/lab-scheduler/internal/logging"
)

func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logging.FromContextOr(ctx, fallback).With(pairs...)
}
