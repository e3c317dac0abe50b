package domain

import (
	"context"
	"sync/atomic"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects embedding calls and token usage for a single HTTP request.
// The wide-event middleware puts it into the context; the embedding provider writes to it.
type EmbeddingUsage struct {
	calls  atomic.Int64
	tokens atomic.Int64
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// Record counts one embedding call with its token usage. Safe on a nil receiver.
func (u *EmbeddingUsage) Record(tokens int) {
	if u == nil {
		return
	}
	u.calls.Add(1)
	u.tokens.Add(int64(tokens))
}

// Calls returns the number of embedding calls recorded.
func (u *EmbeddingUsage) Calls() int {
	if u == nil {
		return 0
	}
	return int(u.calls.Load())
}

// Tokens returns the total tokens recorded.
func (u *EmbeddingUsage) Tokens() int {
	if u == nil {
		return 0
	}
	return int(u.tokens.Load())
}
