package core

import "context"

// contextKey is a private type to avoid collisions with other packages'
// context values.
type contextKey string

const requestIDKey contextKey = "agentgate.request_id"

// WithRequestID returns a context carrying the given request ID.
// The HTTP surface sets it for every inbound request; loggers and error
// records pick it up via RequestIDFromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored in the context, or ""
// when none is set.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
