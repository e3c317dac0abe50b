// Package db is the storage facade over Redis/Valkey with the search and JSON modules.
package db

import (
	"context"
	"time"
)

// Store is everything the service needs from the database. Consumers declare
// narrower interfaces of their own.
//
//nolint:interfacebloat // composite of the small interfaces below
type Store interface {
	Pinger
	Documents
	Cache
	Indexes
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Documents holds one RedisJSON document per key.
type Documents interface {
	// JSONSetNX writes only when key is free; false means the key existed and nothing changed.
	JSONSetNX(ctx context.Context, key, path string, data []byte) (bool, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Cache is plain string storage with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Indexes manages FT indexes.
type Indexes interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs queries against an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	AggregateCount(ctx context.Context, q *GroupCountQuery) ([]GroupCount, error)
}
