package valkey

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/kailas-cloud/songrec/internal/db"
	"github.com/kailas-cloud/songrec/internal/db/redis"
)

// SearchKNN runs FT.SEARCH KNN without SORTBY (rejected by valkey-search)
// and orders hits by similarity on the client.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := redis.BuildKNNArgs(q)
	if err != nil {
		return nil, err
	}
	args = stripSortBy(args)

	raw, err := s.Search(ctx, args...)
	if err != nil {
		return nil, err
	}

	res, err := redis.ParseKNNResult(raw, q.RawScores)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(res.Entries, func(i, j int) bool {
		if q.RawScores {
			return res.Entries[i].Score < res.Entries[j].Score
		}
		return res.Entries[i].Score > res.Entries[j].Score
	})
	return res, nil
}

// SearchCount falls back to SCAN for query="*" because valkey-search
// does not support bare FT.SEARCH without KNN.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	if query != "*" {
		return s.Store.SearchCount(ctx, index, query)
	}
	keys, err := s.Scan(ctx, db.IndexKeyPrefix(index)+"*")
	if err != nil {
		return 0, fmt.Errorf("scan for count: %w", err)
	}
	return len(keys), nil
}

// AggregateCount counts values with SCAN + JSON.GET since valkey-search has no FT.AGGREGATE.
func (s *Store) AggregateCount(ctx context.Context, q *db.GroupCountQuery) ([]db.GroupCount, error) {
	if q.IndexName == "" || q.JSONPath == "" {
		return nil, fmt.Errorf("index name and json path are required")
	}

	keys, err := s.Scan(ctx, db.IndexKeyPrefix(q.IndexName)+"*")
	if err != nil {
		return nil, fmt.Errorf("scan for aggregate: %w", err)
	}

	counts := make(map[string]int)
	for _, key := range keys {
		data, err := s.JSONGet(ctx, key, q.JSONPath)
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue // deleted between SCAN and GET
			}
			return nil, err
		}
		counts[firstString(data)]++
	}

	rows := make([]db.GroupCount, 0, len(counts))
	for v, n := range counts {
		rows = append(rows, db.GroupCount{Value: v, Count: n})
	}
	return db.SortGroupCounts(rows, q.Limit), nil
}

// firstString reads the first element of a JSONPath reply like ["hindi"].
// Missing, null and non-string values yield "".
func firstString(data []byte) string {
	var values []any
	if err := json.Unmarshal(data, &values); err != nil || len(values) == 0 {
		return ""
	}
	s, _ := values[0].(string)
	return s
}

func stripSortBy(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "SORTBY" && i+2 < len(args) {
			i += 2
			continue
		}
		out = append(out, args[i])
	}
	return out
}
