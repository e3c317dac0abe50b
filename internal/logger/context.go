package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns fallback (or zap.NewNop() when fallback is nil) if no logger is found.
func FromContext(ctx context.Context, fallback ...*zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return fallback[0]
	}
	return zap.NewNop()
}

// Detach returns a background context carrying only the logger of ctx.
// Used for work that must outlive the request that scheduled it.
func Detach(ctx context.Context) context.Context {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return ContextWithLogger(context.Background(), l)
	}
	return context.Background()
}
