package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/songrec/internal/db"
)

// JSONSetNX stores a JSON document only if the key is absent (JSON.SET ... NX).
// A nil reply means the key already existed and nothing was written.
func (s *Store) JSONSetNX(ctx context.Context, key, path string, data []byte) (bool, error) {
	cmd := s.b().Arbitrary("JSON.SET").Keys(key).Args(path, string(data), "NX").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return true, nil
}

// JSONGet reads a document, or the given paths of it. Absent keys yield db.ErrKeyNotFound.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	cmd := s.b().Arbitrary("JSON.GET").Keys(key).Args(paths...).Build()
	raw, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if raw == "" {
		return nil, db.ErrKeyNotFound
	}
	return []byte(raw), nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}
