package recommend

import (
	"context"

	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// SongReader loads songs and their vector neighbours.
type SongReader interface {
	Get(ctx context.Context, id string) (domsong.Record, error)
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domsong.Similar, error)
}
