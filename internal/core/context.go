package core

import (
	"context"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID between client, bridge and logs.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx so the resolver can tag its logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// EnsureRequestID returns id unchanged when set, otherwise a fresh UUID.
func EnsureRequestID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
