package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation signals empty or malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingMissing signals a stored song without an embedding.
	ErrEmbeddingMissing = errors.New("embedding missing")

	// ErrUpstreamUnavailable signals a failed or timed-out call to the music search API.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrProviderNotReady signals use of the embedding provider before Init.
	ErrProviderNotReady = errors.New("embedding provider not ready")
	// ErrStoreUnavailable signals use of the song store before it is connected.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrQueueFull signals that the ingest queue rejected a batch.
	ErrQueueFull = errors.New("ingest queue full")
)
