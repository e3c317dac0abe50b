package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/songrec/internal/domain"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// DefaultMaxLimit caps the number of recommendations per request.
const DefaultMaxLimit = 50

// List is the recommendation answer for one query song.
type List struct {
	QuerySongID   string
	QuerySongName string
	QueryArtist   string
	Items         []domsong.Similar
	Total         int
}

// Service answers "songs similar to X" queries.
type Service struct {
	songs    SongReader
	maxLimit int
}

// New creates a recommendation service.
func New(songs SongReader) *Service {
	return &Service{songs: songs, maxLimit: DefaultMaxLimit}
}

// WithMaxLimit overrides the upper bound for limit.
func (s *Service) WithMaxLimit(n int) *Service {
	if n > 0 {
		s.maxLimit = n
	}
	return s
}

// MaxLimit returns the configured upper bound.
func (s *Service) MaxLimit() int { return s.maxLimit }

// Recommend returns up to limit stored songs closest to songID, never songID itself.
func (s *Service) Recommend(ctx context.Context, songID string, limit int) (List, error) {
	if strings.TrimSpace(songID) == "" {
		return List{}, fmt.Errorf("song id is required: %w", domain.ErrValidation)
	}
	if limit < 1 || limit > s.maxLimit {
		return List{}, fmt.Errorf("limit must be between 1 and %d, got %d: %w", s.maxLimit, limit, domain.ErrValidation)
	}

	query, err := s.songs.Get(ctx, songID)
	if err != nil {
		return List{}, fmt.Errorf("get song %s: %w", songID, err)
	}
	if len(query.Embedding()) == 0 {
		return List{}, fmt.Errorf("song %s: %w", songID, domain.ErrEmbeddingMissing)
	}

	hits, err := s.songs.SimilaritySearch(ctx, query.Embedding(), limit)
	if err != nil {
		return List{}, fmt.Errorf("similarity search: %w", err)
	}

	items := make([]domsong.Similar, 0, min(len(hits), limit))
	for _, h := range hits {
		if h.Record.ID() == songID {
			continue
		}
		items = append(items, h)
		if len(items) == limit {
			break
		}
	}

	return List{
		QuerySongID:   songID,
		QuerySongName: query.Name(),
		QueryArtist:   query.PrimaryArtist(),
		Items:         items,
		Total:         len(items),
	}, nil
}
