package http

import (
	"context"
	"log/slog"

	"github.com/villaclean/bookingcore/internal/logging"
)

type contextKey string

const (
	principalContextKey contextKey = "principal_id"
	resourceContextKey  contextKey = "resource_id"
)

// ContextWithLogger returns a derived context carrying the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request logger if one was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithPrincipal returns a derived context containing the caller's id.
func ContextWithPrincipal(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalContextKey, principalID)
}

// PrincipalFromContext extracts the caller's id if available.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalContextKey).(string)
	return id, ok && id != ""
}

// ContextWithResourceID injects the booking or property id resolved from the request path.
func ContextWithResourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resourceContextKey, id)
}

// ResourceIDFromContext extracts a path id previously associated with the context.
func ResourceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(resourceContextKey).(string)
	return id, ok && id != ""
}
