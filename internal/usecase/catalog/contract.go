package catalog

import (
	"context"

	"github.com/goccy/go-json"

	dombatch "github.com/kailas-cloud/songrec/internal/domain/batch"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// Upstream is the external music search API.
type Upstream interface {
	Search(ctx context.Context, query string, page, limit int) (domsong.SearchPage, error)
	Song(ctx context.Context, id string) ([]json.RawMessage, error)
}

// Ingester stores a single descriptor synchronously.
type Ingester interface {
	IngestOne(ctx context.Context, raw json.RawMessage) (dombatch.Outcome, error)
}

// Enqueuer schedules descriptors for background ingestion.
type Enqueuer interface {
	Enqueue(ctx context.Context, raws []json.RawMessage) error
}

// SongReader loads stored songs.
type SongReader interface {
	Get(ctx context.Context, id string) (domsong.Record, error)
}
