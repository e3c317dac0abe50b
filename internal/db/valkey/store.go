package valkey

import (
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/songrec/internal/db"
	"github.com/kailas-cloud/songrec/internal/db/redis"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Valkey store.
type Config = redis.Config

// Store implements db.Store for Valkey with valkey-search and valkey-json.
// Commands shared with Redis are inherited; search paths that valkey-search
// does not support are overridden with client-side fallbacks.
type Store struct {
	*redis.Store
}

// NewStore creates a Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	s, err := redis.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("valkey: %w", err)
	}
	return &Store{Store: s}, nil
}

// NewStoreFromClient wraps an existing rueidis client.
func NewStoreFromClient(c rueidis.Client) *Store {
	return &Store{Store: redis.NewStoreFromClient(c)}
}
