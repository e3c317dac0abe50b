package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/config"
	"github.com/kailas-cloud/songrec/internal/db"
	dbRedis "github.com/kailas-cloud/songrec/internal/db/redis"
	dbValkey "github.com/kailas-cloud/songrec/internal/db/valkey"
	"github.com/kailas-cloud/songrec/internal/domain"
	logpkg "github.com/kailas-cloud/songrec/internal/logger"
	"github.com/kailas-cloud/songrec/internal/metrics"
	"github.com/kailas-cloud/songrec/internal/repository/embcache"
	songrepo "github.com/kailas-cloud/songrec/internal/repository/song"
	"github.com/kailas-cloud/songrec/internal/transport/openai"
	"github.com/kailas-cloud/songrec/internal/transport/saavn"
	embeddinguc "github.com/kailas-cloud/songrec/internal/usecase/embedding"
)

// app holds the pieces every command shares. Close releases the store and flushes logs.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
}

func bootstrap(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := openStore(cfg.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("namespace", cfg.Database.Name),
	)

	return &app{env: env, cfg: cfg, logger: logger, store: store}, nil
}

func (rt *app) Close() {
	rt.store.Close()
	_ = rt.logger.Sync()
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	dbCfg := dbRedis.Config{
		URI:      cfg.URI,
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	}

	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbCfg)
	case "redis":
		store, err = dbRedis.NewStore(dbCfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	return store, nil
}

func (rt *app) vectorConfig() domain.VectorConfig {
	vec := domain.DefaultVectorConfig()
	vec.Model = rt.cfg.Embedding.Model
	vec.Dimensions = rt.cfg.Embedding.Dimensions
	vec.HNSWM = rt.cfg.Database.HNSWM
	vec.EFConstruction = rt.cfg.Database.HNSWEFConstruct
	return vec
}

func (rt *app) songRepo() *songrepo.Repo {
	return songrepo.New(rt.store, songrepo.Options{
		Namespace:           rt.cfg.Database.Name,
		Vector:              rt.vectorConfig(),
		CandidateMultiplier: rt.cfg.Recommend.CandidateMultiplier,
	})
}

// embeddingProvider assembles backend -> cache -> provider and runs Init.
func (rt *app) embeddingProvider(ctx context.Context) (*embeddinguc.Provider, error) {
	cfg := rt.cfg.Embedding
	metrics.RegisterEmbeddingMetrics()

	backend := openai.NewEmbedder(&openai.Config{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Provider: cfg.Provider,
		Timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:   rt.logger,
	})

	var embedder domain.Embedder = backend
	if cfg.CacheEnabled() {
		embedder = embcache.New(backend, rt.store, embcache.Options{
			Namespace:  rt.cfg.Database.Name,
			Model:      cfg.Model,
			TTL:        time.Duration(cfg.CacheTTLHours) * time.Hour,
			Dimensions: cfg.Dimensions,
			Results:    metrics.EmbeddingCacheTotal,
		}, rt.logger)
	}

	provider := embeddinguc.NewProvider(embedder, backend, embeddinguc.Options{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
	}, rt.logger).WithProbe(backend)
	if err := provider.Init(ctx); err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}
	rt.logger.Debug("Embedding cache configured",
		zap.Bool("enabled", cfg.CacheEnabled()),
		zap.Int("ttl_hours", cfg.CacheTTLHours),
	)
	return provider, nil
}

func (rt *app) upstream(timeout time.Duration) *saavn.Client {
	metrics.RegisterUpstreamMetrics()
	b := rt.cfg.Upstream.Breaker
	return saavn.New(saavn.Config{
		BaseURL: rt.cfg.Upstream.BaseURL,
		Timeout: timeout,
		Breaker: saavn.BreakerConfig{
			FailureThreshold:    b.FailureThreshold,
			OpenTimeout:         time.Duration(b.OpenTimeoutSec) * time.Second,
			MaxHalfOpenRequests: b.MaxHalfOpenRequests,
		},
		Logger: rt.logger,
	})
}
