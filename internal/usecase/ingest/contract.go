package ingest

import (
	"context"

	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// SongStore checks and writes song records.
type SongStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	InsertIfAbsent(ctx context.Context, rec *domsong.Record) (bool, error)
}

// Embedder vectorizes song descriptions.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
