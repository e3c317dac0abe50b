package stats

import (
	"context"

	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// SongCounter aggregates stored songs.
type SongCounter interface {
	CountAll(ctx context.Context) (int, error)
	LanguageHistogram(ctx context.Context, topN int) ([]domsong.LanguageCount, error)
}
