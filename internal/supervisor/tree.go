// Package supervisor runs long-lived services (HTTP server, ingest workers) under a suture tree.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// Config holds restart and shutdown policy.
type Config struct {
	FailureThreshold float64
	FailureDecay     float64 // seconds
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig matches suture's own defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor.
type Tree struct {
	root *suture.Supervisor
}

// New creates a supervisor tree that logs its events through log.
func New(name string, log *zap.Logger, cfg Config) *Tree {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay <= 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	return &Tree{root: suture.New(name, suture.Spec{
		EventHook:        EventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})}
}

// Add registers a service.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken { return t.root.Add(svc) }

// Serve blocks until ctx is cancelled or a service terminates the tree.
func (t *Tree) Serve(ctx context.Context) error { return t.root.Serve(ctx) }

// EventHook logs supervisor events with zap.
func EventHook(log *zap.Logger) suture.EventHook {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("supervisor")
	return func(e suture.Event) {
		m := e.Map()
		fields := make([]zap.Field, 0, len(m))
		for k, v := range m {
			fields = append(fields, zap.Any(k, v))
		}
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeStopTimeout:
			log.Error(e.String(), fields...)
		case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
			log.Warn(e.String(), fields...)
		default:
			log.Info(e.String(), fields...)
		}
	}
}
