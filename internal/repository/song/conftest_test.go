package song

import (
	"context"
	"testing"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/songrec/internal/db"
	"github.com/kailas-cloud/songrec/internal/domain"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetNXFn      func(ctx context.Context, key, path string, data []byte) (bool, error)
	jsonGetFn        func(ctx context.Context, key string, paths ...string) ([]byte, error)
	existsFn         func(ctx context.Context, key string) (bool, error)
	searchKNNFn      func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchCountFn    func(ctx context.Context, index, query string) (int, error)
	aggregateCountFn func(ctx context.Context, q *db.GroupCountQuery) ([]db.GroupCount, error)
	createIndexFn    func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn    func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) JSONSetNX(ctx context.Context, key, path string, data []byte) (bool, error) {
	if m.jsonSetNXFn != nil {
		return m.jsonSetNXFn(ctx, key, path, data)
	}
	return true, nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func (m *mockStore) AggregateCount(ctx context.Context, q *db.GroupCountQuery) ([]db.GroupCount, error) {
	if m.aggregateCountFn != nil {
		return m.aggregateCountFn(ctx, q)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

const testDims = 4

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	vec := domain.DefaultVectorConfig()
	vec.Dimensions = testDims
	repo := New(ms, Options{Namespace: "test", Vector: vec, CandidateMultiplier: 10})
	return repo, ms
}

func testRecord(t *testing.T, id, language string) domsong.Record {
	t.Helper()
	payload := `{"id":"` + id + `","name":"Song ` + id + `","language":"` + language +
		`","artists":{"primary":[{"name":"Artist"}]}}`
	raw, err := domsong.ParseRaw(json.RawMessage(payload))
	if err != nil {
		t.Fatalf("parse raw: %v", err)
	}
	rec, err := domsong.New(raw, []float32{0.1, 0.2, 0.3, 0.4}, testDims)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}
	return rec
}

func docJSON(t *testing.T, rec *domsong.Record) string {
	t.Helper()
	data, err := json.Marshal(toDoc(rec))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}
