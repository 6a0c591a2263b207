// Package logging provides command correlation-id context propagation.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const commandIDKey contextKey = "commandId"

// GenerateCommandID creates an 8-character hex correlation ID.
func GenerateCommandID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// WithCommandID injects a correlation ID into the context.
func WithCommandID(ctx context.Context, commandID string) context.Context {
	return context.WithValue(ctx, commandIDKey, commandID)
}

// GetCommandID retrieves the correlation ID from the context.
// Returns empty string if not found.
func GetCommandID(ctx context.Context) string {
	if id, ok := ctx.Value(commandIDKey).(string); ok {
		return id
	}
	return ""
}
