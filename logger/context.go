package logger

import (
	"context"
)

// contextKey keeps the logger's context values from colliding with other
// packages' keys.
type contextKey string

// Request-scoped fields the ContextHandler lifts into every record logged
// with a *Context function.
const (
	// ContextKeyGameID identifies the game a record belongs to.
	ContextKeyGameID contextKey = "game_id"

	// ContextKeySessionID identifies the connected client session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyNamespace identifies the transport namespace a message arrived on.
	ContextKeyNamespace contextKey = "namespace"

	// ContextKeyChannel identifies the broker channel being served.
	ContextKeyChannel contextKey = "channel"

	// ContextKeyRequestID identifies an individual ops API request.
	ContextKeyRequestID contextKey = "request_id"
)

// allContextKeys is the extraction order used by the handler.
var allContextKeys = []contextKey{
	ContextKeyGameID,
	ContextKeySessionID,
	ContextKeyNamespace,
	ContextKeyChannel,
	ContextKeyRequestID,
}

// WithGameID returns a context carrying the game identifier for log enrichment.
func WithGameID(ctx context.Context, gameID string) context.Context {
	return context.WithValue(ctx, ContextKeyGameID, gameID)
}

// WithSessionID returns a context carrying the client session identifier.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithNamespace returns a context carrying the transport namespace.
func WithNamespace(ctx context.Context, namespace string) context.Context {
	return context.WithValue(ctx, ContextKeyNamespace, namespace)
}

// WithChannel returns a context carrying the broker channel name.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ContextKeyChannel, channel)
}

// WithRequestID returns a context carrying an ops API request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
