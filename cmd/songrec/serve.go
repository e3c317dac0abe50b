package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/config"
	"github.com/kailas-cloud/songrec/internal/metrics"
	"github.com/kailas-cloud/songrec/internal/supervisor"
	chiTransport "github.com/kailas-cloud/songrec/internal/transport/chi"
	"github.com/kailas-cloud/songrec/internal/usecase/catalog"
	"github.com/kailas-cloud/songrec/internal/usecase/health"
	"github.com/kailas-cloud/songrec/internal/usecase/ingest"
	"github.com/kailas-cloud/songrec/internal/usecase/recommend"
	"github.com/kailas-cloud/songrec/internal/usecase/stats"
	"github.com/kailas-cloud/songrec/internal/version"
)

func newServeCommand(env *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background ingest workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *env)
		},
	}
}

func runServe(ctx context.Context, env string) error {
	rt, err := bootstrap(ctx, env)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger
	logger.Info("Starting songrec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	metrics.RegisterHTTPMetrics()
	metrics.RegisterIngestMetrics()

	provider, err := rt.embeddingProvider(ctx)
	if err != nil {
		return err
	}

	songs := rt.songRepo()
	if err := songs.VerifyIndex(ctx); err != nil {
		logger.Warn("Song index not available; run `songrec index create`",
			zap.String("index", songs.IndexName()),
			zap.Error(err),
		)
	}

	upstream := rt.upstream(time.Duration(cfg.Upstream.TimeoutSec) * time.Second)

	ingestSvc := ingest.New(songs, provider, logger).
		WithItemTimeout(time.Duration(cfg.Ingest.ItemTimeoutSec) * time.Second)
	policy, err := ingest.ParsePolicy(cfg.Ingest.OverloadPolicy)
	if err != nil {
		return fmt.Errorf("ingest.overload_policy: %w", err)
	}
	queue := ingest.NewQueue(ingestSvc, ingest.QueueOptions{
		Workers:        cfg.Ingest.Workers,
		Size:           cfg.Ingest.QueueSize,
		Policy:         policy,
		EnqueueTimeout: time.Duration(cfg.Ingest.EnqueueTimeoutMs) * time.Millisecond,
	}, logger)

	recommendSvc := recommend.New(songs).WithMaxLimit(cfg.Recommend.MaxLimit)
	statsSvc := stats.New(songs, cfg.Stats.TopLanguages)
	catalogSvc := catalog.New(upstream, ingestSvc, queue, songs, logger)
	healthSvc := health.New(rt.store, provider, songs)

	server := chiTransport.NewServer(catalogSvc, recommendSvc, statsSvc, healthSvc, chiTransport.Options{
		DefaultRecommendLimit: cfg.Recommend.DefaultLimit,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(cfg.HTTP, cfg.Auth, server, logger),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	shutdown := time.Duration(cfg.HTTP.ShutdownSec) * time.Second
	supCfg := supervisor.DefaultConfig()
	supCfg.ShutdownTimeout = shutdown
	tree := supervisor.New("songrec", logger, supCfg)
	tree.Add(supervisor.NewHTTPService(srv, shutdown))
	tree.Add(queue)

	logger.Info("Starting HTTP server", zap.String("addr", addr))
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Supervisor stopped", zap.Error(err))
		return err
	}

	logger.Info("Server stopped gracefully", zap.Int("ingest_backlog_dropped", queue.Len()))
	return nil
}

// newRouter applies the middleware stack and mounts the API routes.
func newRouter(
	httpCfg config.HTTPConfig,
	authCfg config.AuthConfig,
	server *chiTransport.Server,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.CORS(httpCfg.CORSAllowedOrigins))
	r.Use(chiTransport.RateLimit(httpCfg.RateLimit.RequestsPerMinute))
	r.Use(chiTransport.BearerAuthMiddleware(authCfg.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)
	return r
}
