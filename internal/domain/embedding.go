package domain

import "context"

// Embedder turns a song description into a vector. Implementations are decorated
// (cache, provider) around the HTTP backend.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one backend reply. Cache hits carry zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// VectorConfig describes the embedding space shared by the provider and the song index.
type VectorConfig struct {
	Model          string
	Dimensions     int
	HNSWM          int
	EFConstruction int
}

// DefaultVectorConfig is all-MiniLM-L6-v2 (384 dims) under the HNSW defaults.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "all-MiniLM-L6-v2",
		Dimensions:     384,
		HNSWM:          16,
		EFConstruction: 200,
	}
}
