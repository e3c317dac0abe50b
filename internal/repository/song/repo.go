package song

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/songrec/internal/db"
	"github.com/kailas-cloud/songrec/internal/domain"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// store is the consumer interface for songs (ISP).
//
//nolint:interfacebloat // song repo needs JSON, search and index operations
type store interface {
	JSONSetNX(ctx context.Context, key, path string, data []byte) (bool, error)
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	AggregateCount(ctx context.Context, q *db.GroupCountQuery) ([]db.GroupCount, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Options configures the song repository.
type Options struct {
	Namespace           string
	Vector              domain.VectorConfig
	CandidateMultiplier int // EF_RUNTIME = k * multiplier
}

// Repo stores songs as RedisJSON documents under one FT index.
type Repo struct {
	store store
	opts  Options
}

// New creates a song repository.
func New(s store, opts Options) *Repo {
	if opts.Namespace == "" {
		opts.Namespace = "songrec"
	}
	if opts.Vector.Dimensions <= 0 {
		opts.Vector = domain.DefaultVectorConfig()
	}
	if opts.CandidateMultiplier <= 0 {
		opts.CandidateMultiplier = 10
	}
	return &Repo{store: s, opts: opts}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return indexName(r.opts.Namespace) }

// Exists reports whether a song id is stored.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	if r.store == nil {
		return false, domain.ErrStoreUnavailable
	}
	key := songKey(r.opts.Namespace, id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return ok, nil
}

// InsertIfAbsent writes the record only when its key is free (JSON.SET ... NX).
// Returns false without error when the song already existed.
func (r *Repo) InsertIfAbsent(ctx context.Context, rec *domsong.Record) (bool, error) {
	if r.store == nil {
		return false, domain.ErrStoreUnavailable
	}
	if len(rec.Embedding()) != r.opts.Vector.Dimensions {
		return false, fmt.Errorf("song %s: %w", rec.ID(), domain.ErrVectorDimMismatch)
	}

	key := songKey(r.opts.Namespace, rec.ID())
	data, err := json.Marshal(toDoc(rec))
	if err != nil {
		return false, fmt.Errorf("marshal song: %w", err)
	}

	written, err := r.store.JSONSetNX(ctx, key, "$", data)
	if err != nil {
		return false, fmt.Errorf("json.set nx %s: %w", key, err)
	}
	return written, nil
}

// Get returns a stored song by id.
func (r *Repo) Get(ctx context.Context, id string) (domsong.Record, error) {
	if r.store == nil {
		return domsong.Record{}, domain.ErrStoreUnavailable
	}
	key := songKey(r.opts.Namespace, id)
	raw, err := r.store.JSONGet(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsong.Record{}, fmt.Errorf("song %s: %w", id, domain.ErrNotFound)
		}
		return domsong.Record{}, fmt.Errorf("json.get %s: %w", key, err)
	}
	doc, err := decodeDoc(raw)
	if err != nil {
		return domsong.Record{}, fmt.Errorf("song %s: %w", id, err)
	}
	if doc.SongID == "" {
		doc.SongID = id
	}
	return doc.toRecord(), nil
}

// SimilaritySearch returns up to k+1 nearest songs by descending cosine similarity.
// The query song itself is usually among them; callers exclude it.
func (r *Repo) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domsong.Similar, error) {
	if r.store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive: %w", domain.ErrValidation)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		Field:        "embedding",
		Vector:       vector,
		K:            k + 1,
		EFRuntime:    k * r.opts.CandidateMultiplier,
		ReturnFields: []string{"$", db.ScoreField},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	if res == nil {
		return nil, nil
	}

	prefix := keyPrefix(r.opts.Namespace)
	out := make([]domsong.Similar, 0, len(res.Entries))
	for _, e := range res.Entries {
		doc, err := decodeDoc([]byte(e.Fields["$"]))
		if err != nil {
			continue
		}
		if doc.SongID == "" {
			doc.SongID = strings.TrimPrefix(e.Key, prefix)
		}
		doc.Embedding = nil // not needed by callers
		out = append(out, domsong.Similar{Record: doc.toRecord(), Score: e.Score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// LanguageHistogram counts songs per language, top N by count. Absent languages share the "Unknown" bucket.
func (r *Repo) LanguageHistogram(ctx context.Context, topN int) ([]domsong.LanguageCount, error) {
	if r.store == nil {
		return nil, domain.ErrStoreUnavailable
	}
	rows, err := r.store.AggregateCount(ctx, &db.GroupCountQuery{
		IndexName: r.IndexName(),
		Field:     "language",
		JSONPath:  "$.language",
	})
	if err != nil {
		return nil, fmt.Errorf("language histogram: %w", err)
	}

	// "" and an explicit "Unknown" tag fall into the same bucket.
	for i := range rows {
		if rows[i].Value == "" {
			rows[i].Value = domsong.UnknownLabel
		}
	}
	rows = db.SortGroupCounts(rows, topN)

	out := make([]domsong.LanguageCount, len(rows))
	for i, row := range rows {
		out[i] = domsong.LanguageCount{Language: row.Value, Count: row.Count}
	}
	return out, nil
}

// CountAll returns the number of stored songs.
func (r *Repo) CountAll(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, domain.ErrStoreUnavailable
	}
	n, err := r.store.SearchCount(ctx, r.IndexName(), "*")
	if err != nil {
		return 0, fmt.Errorf("count songs: %w", err)
	}
	return n, nil
}

// VerifyIndex checks that the song index exists.
func (r *Repo) VerifyIndex(ctx context.Context) error {
	if r.store == nil {
		return domain.ErrStoreUnavailable
	}
	ok, err := r.store.IndexExists(ctx, r.IndexName())
	if err != nil {
		return fmt.Errorf("verify index %s: %w", r.IndexName(), err)
	}
	if !ok {
		return fmt.Errorf("index %s: %w", r.IndexName(), domain.ErrNotFound)
	}
	return nil
}

// EnsureIndex creates the song index. Returns created=false when it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	if r.store == nil {
		return false, domain.ErrStoreUnavailable
	}
	def := songIndex(r.opts.Namespace, r.opts.Vector)
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return true, nil
}
