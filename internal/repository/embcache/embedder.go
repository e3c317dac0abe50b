package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/db"
	"github.com/kailas-cloud/songrec/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures the cache.
type Options struct {
	Namespace  string
	Model      string
	TTL        time.Duration
	Dimensions int                    // entries of another size are ignored; 0 accepts any
	Results    *prometheus.CounterVec // label "result": hit, miss, stale; may be nil
}

// CachedEmbedder serves song description embeddings from the KV store before calling the backend.
// Keys are "<namespace>:emb_cache:<model>:<sha256(text)>", values packed little-endian float32.
// Store failures only cost a backend call.
type CachedEmbedder struct {
	inner  domain.Embedder
	store  store
	opts   Options
	prefix string
	logger *zap.Logger
}

// New wraps inner with a cache.
func New(inner domain.Embedder, s store, opts Options, logger *zap.Logger) *CachedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:  inner,
		store:  s,
		opts:   opts,
		prefix: opts.Namespace + ":emb_cache:" + opts.Model + ":",
		logger: logger,
	}
}

// Embed returns the cached vector (with zero token usage) or embeds and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)

	vec, state := c.lookup(ctx, key)
	c.count(state)
	if state == "hit" {
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	if len(res.Embedding) > 0 {
		if err := c.store.SetWithTTL(ctx, key, pack(res.Embedding), c.opts.TTL); err != nil {
			c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
		}
	}
	return res, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.prefix + hex.EncodeToString(sum[:])
}

// lookup reports "hit", "miss" or "stale" (undecodable or wrong size).
func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, string) {
	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, "miss"
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, "miss"
	case len(data) == 0:
		return nil, "miss"
	}

	vec, err := unpack(data)
	if err != nil {
		c.logger.Warn("Dropping corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, "stale"
	}
	if c.opts.Dimensions > 0 && len(vec) != c.opts.Dimensions {
		c.logger.Debug("Cached embedding has other dimensions",
			zap.String("key", key), zap.Int("got", len(vec)), zap.Int("want", c.opts.Dimensions))
		return nil, "stale"
	}
	return vec, "hit"
}

func (c *CachedEmbedder) count(result string) {
	if c.opts.Results != nil {
		c.opts.Results.WithLabelValues(result).Inc()
	}
}

func pack(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func unpack(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("cached embedding length %d is not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
