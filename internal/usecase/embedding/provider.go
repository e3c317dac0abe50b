package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	"github.com/kailas-cloud/songrec/internal/domain/song"
	"github.com/kailas-cloud/songrec/internal/metrics"
)

// probeText is embedded once at Init to verify the backend and its output size.
const probeText = "songrec readiness probe"

// Options describes the configured embedding model.
type Options struct {
	Provider   string
	Model      string
	Dimensions int
}

// Provider is the process-wide embedding service: text in, fixed-size vector out.
// It must be initialized once before use; a concurrent double Init is harmless.
type Provider struct {
	inner  domain.Embedder
	probe  domain.Embedder
	health domain.HealthChecker
	opts   Options
	ready  atomic.Bool
	logger *zap.Logger
}

// NewProvider wraps an embedding backend. health may be nil.
func NewProvider(inner domain.Embedder, health domain.HealthChecker, opts Options, logger *zap.Logger) *Provider {
	if opts.Dimensions <= 0 {
		opts.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{inner: inner, health: health, opts: opts, logger: logger}
}

// WithProbe sets the embedder Init probes instead of inner. Pass the raw backend
// when inner is cached.
func (p *Provider) WithProbe(e domain.Embedder) *Provider {
	p.probe = e
	return p
}

// Init probes the backend and marks the provider ready. Idempotent.
func (p *Provider) Init(ctx context.Context) error {
	if p.ready.Load() {
		return nil
	}

	probe := p.inner
	if p.probe != nil {
		probe = p.probe
	}
	start := time.Now()
	res, err := probe.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("init embedding provider %s: %w", p.opts.Model, err)
	}
	if len(res.Embedding) != p.opts.Dimensions {
		return fmt.Errorf("model %s returned %d dimensions, configured %d: %w",
			p.opts.Model, len(res.Embedding), p.opts.Dimensions, domain.ErrVectorDimMismatch)
	}

	if p.ready.CompareAndSwap(false, true) {
		metrics.EmbeddingProviderReady.Set(1)
		p.logger.Info("Embedding provider ready",
			zap.String("provider", p.opts.Provider),
			zap.String("model", p.opts.Model),
			zap.Int("dimensions", p.opts.Dimensions),
			zap.Duration("probe_duration", time.Since(start)),
		)
	}
	return nil
}

// Ready reports whether Init has succeeded.
func (p *Provider) Ready() bool { return p.ready.Load() }

// Dimensions returns the configured vector size.
func (p *Provider) Dimensions() int { return p.opts.Dimensions }

// BuildDescription returns the canonical embedding text for a song.
func (p *Provider) BuildDescription(name, artist, album, language string) string {
	return song.BuildDescription(name, artist, album, language)
}

// Embed maps text to a vector of the configured size.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embedding text is empty: %w", domain.ErrValidation)
	}
	if !p.ready.Load() {
		return nil, domain.ErrProviderNotReady
	}

	start := time.Now()
	res, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)
	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.opts.Provider),
			zap.String("model", p.opts.Model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embedding) != p.opts.Dimensions {
		return nil, fmt.Errorf("got %d dimensions, want %d: %w",
			len(res.Embedding), p.opts.Dimensions, domain.ErrVectorDimMismatch)
	}

	domain.UsageFromContext(ctx).Record(res.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("model", p.opts.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res.Embedding, nil
}

// HealthCheck reports backend availability. A provider that never passed Init is unhealthy.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if !p.ready.Load() {
		return domain.ErrProviderNotReady
	}
	if p.health == nil {
		return nil
	}
	if err := p.health.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding backend: %w", err)
	}
	return nil
}
