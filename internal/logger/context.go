package logger

import (
	"context"
	"unicode/utf8"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// WithCorrelationID attaches a request correlation id that TraceHandler adds
// to every record logged with the returned context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// Truncate shortens s to at most maxLen bytes without splitting a rune,
// appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
