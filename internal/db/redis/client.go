package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/songrec/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Redis store.
// URI (redis://, rediss://, unix://) takes precedence over Addrs.
type Config struct {
	URI      string
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store via rueidis for Redis 8+ (search and JSON modules).
type Store struct {
	client rueidis.Client
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	opt, err := clientOption(cfg)
	if err != nil {
		return nil, err
	}

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreFromClient wraps an existing rueidis client.
func NewStoreFromClient(c rueidis.Client) *Store {
	return &Store{client: c}
}

func clientOption(cfg Config) (rueidis.ClientOption, error) {
	var opt rueidis.ClientOption
	switch {
	case cfg.URI != "":
		parsed, err := rueidis.ParseURL(cfg.URI)
		if err != nil {
			return rueidis.ClientOption{}, fmt.Errorf("parse database uri: %w", err)
		}
		opt = parsed
	case len(cfg.Addrs) > 0:
		opt = rueidis.ClientOption{
			InitAddress: cfg.Addrs,
			Username:    cfg.Username,
			Password:    cfg.Password,
			SelectDB:    cfg.DB,
		}
	default:
		return rueidis.ClientOption{}, fmt.Errorf("uri or addrs is required")
	}
	if opt.Password == "" && cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DisableCache = true
	opt.AlwaysRESP2 = true // FT.SEARCH/FT.AGGREGATE parsing expects RESP2 arrays
	return opt, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return containsIgnoreCase(re.Error(), substr)
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
