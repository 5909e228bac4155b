package dispatcher

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey contextKey = "dispatch_request_id"

// WithRequestID attaches a correlation id used in logs and audit records
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the correlation id, generating one when absent
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
