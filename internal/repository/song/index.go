package song

import (
	"github.com/kailas-cloud/songrec/internal/db"
	"github.com/kailas-cloud/songrec/internal/domain"
)

// songIndex is the FT schema over song documents: song_id and language as TAG,
// created_at NUMERIC, embedding as an HNSW cosine vector.
func songIndex(ns string, vec domain.VectorConfig) *db.IndexDefinition {
	return db.NewIndex(indexName(ns), keyPrefix(ns)).
		Tag("$.song_id", "song_id").
		Tag("$.language", "language").
		Numeric("$.created_at", "created_at").
		Vector("$.embedding", "embedding", db.VectorSpec{
			Dim:            vec.Dimensions,
			Metric:         db.DistanceCosine,
			M:              vec.HNSWM,
			EFConstruction: vec.EFConstruction,
		})
}

func keyPrefix(ns string) string { return ns + ":song:" }

func indexName(ns string) string { return ns + ":song:idx" }

func songKey(ns, id string) string { return keyPrefix(ns) + id }
