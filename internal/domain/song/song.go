package song

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/songrec/internal/domain"
)

// Record is the persisted song aggregate (immutable value object).
type Record struct {
	id            string
	name          string
	language      string
	primaryArtist string
	albumName     string
	embedding     []float32
	raw           json.RawMessage
	createdAt     time.Time
}

// New validates and creates a Record from a parsed descriptor and its embedding.
func New(raw Raw, embedding []float32, dims int) (Record, error) {
	if raw.ID() == "" {
		return Record{}, fmt.Errorf("song id is required: %w", domain.ErrValidation)
	}
	if len(embedding) != dims {
		return Record{}, fmt.Errorf("embedding has %d dimensions, want %d: %w",
			len(embedding), dims, domain.ErrVectorDimMismatch)
	}

	return Record{
		id:            raw.ID(),
		name:          raw.Name(),
		language:      raw.Language(),
		primaryArtist: raw.PrimaryArtist(),
		albumName:     raw.AlbumName(),
		embedding:     append([]float32(nil), embedding...),
		raw:           raw.Payload(),
		createdAt:     time.Now().UTC(),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, name, language, primaryArtist, albumName string,
	embedding []float32, raw json.RawMessage, createdAt time.Time,
) Record {
	return Record{
		id: id, name: name, language: language, primaryArtist: primaryArtist, albumName: albumName,
		embedding: embedding, raw: raw, createdAt: createdAt,
	}
}

// ID returns the external song id.
func (r *Record) ID() string { return r.id }

// Name returns the display name.
func (r *Record) Name() string { return r.name }

// Language returns the language tag, empty when unknown.
func (r *Record) Language() string { return r.language }

// PrimaryArtist returns the primary artist name.
func (r *Record) PrimaryArtist() string { return r.primaryArtist }

// AlbumName returns the album name, empty when unknown.
func (r *Record) AlbumName() string { return r.albumName }

// Embedding returns the embedding vector.
func (r *Record) Embedding() []float32 { return r.embedding }

// Raw returns the upstream descriptor stored verbatim.
func (r *Record) Raw() json.RawMessage { return r.raw }

// CreatedAt returns the insertion time.
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// Similar is a neighbour returned by vector search.
type Similar struct {
	Record Record
	Score  float64
}

// LanguageCount is one row of the language histogram.
type LanguageCount struct {
	Language string
	Count    int
}
