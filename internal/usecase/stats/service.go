package stats

import (
	"context"
	"fmt"

	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// Summary describes the stored catalog.
type Summary struct {
	TotalSongs int
	Languages  []domsong.LanguageCount
}

// Service computes catalog statistics.
type Service struct {
	songs SongCounter
	topN  int
}

// New creates a stats service reporting the topN languages.
func New(songs SongCounter, topN int) *Service {
	if topN <= 0 {
		topN = 10
	}
	return &Service{songs: songs, topN: topN}
}

// Stats returns the total song count and the language distribution.
func (s *Service) Stats(ctx context.Context) (Summary, error) {
	total, err := s.songs.CountAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count songs: %w", err)
	}
	langs, err := s.songs.LanguageHistogram(ctx, s.topN)
	if err != nil {
		return Summary{}, fmt.Errorf("language histogram: %w", err)
	}
	if langs == nil {
		langs = []domsong.LanguageCount{}
	}
	return Summary{TotalSongs: total, Languages: langs}, nil
}
