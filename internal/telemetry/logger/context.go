package logger

import "context"

type contextKey string

const (
	loggerKey    contextKey = "rosiels.logger"
	projectIDKey contextKey = "rosiels.project_id"
	syncIDKey    contextKey = "rosiels.sync_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithProjectID tags the context with the project a piece of work belongs to.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectIDKey, projectID)
}

// ProjectIDFromContext extracts the project ID from context.
func ProjectIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(projectIDKey).(string); ok {
		return id
	}
	return ""
}

// WithSyncID tags the context with the id of a synchronization sweep.
func WithSyncID(ctx context.Context, syncID string) context.Context {
	return context.WithValue(ctx, syncIDKey, syncID)
}

// SyncIDFromContext extracts the sync ID from context.
func SyncIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(syncIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also enriches the logger
// with the project and sync IDs found in the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if id := SyncIDFromContext(ctx); id != "" {
		l = l.With("sync_id", id)
	}
	if id := ProjectIDFromContext(ctx); id != "" {
		l = l.With("project_id", id)
	}

	return l
}
