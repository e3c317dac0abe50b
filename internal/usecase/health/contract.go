package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding backend availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexVerifier checks that the song vector index exists.
type IndexVerifier interface {
	VerifyIndex(ctx context.Context) error
}
