package db

import (
	"sort"
	"strings"
)

// ScoreField is the alias KNN queries yield their distance under.
const ScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Field        string // vector field alias, default "embedding"
	Vector       []float32
	K            int
	EFRuntime    int // HNSW candidate list size at query time, 0 = server default
	ReturnFields []string
	RawScores    bool // return __vector_score as-is instead of 1-distance
}

// VectorField returns the queried vector field alias.
func (q *KNNQuery) VectorField() string {
	if q.Field == "" {
		return "embedding"
	}
	return q.Field
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// GroupCountQuery counts documents per distinct value of a TAG field.
type GroupCountQuery struct {
	IndexName string
	Field     string // index alias, e.g. "language"
	JSONPath  string // source path used by scan fallbacks, e.g. "$.language"
	Limit     int    // 0 = all groups
}

// GroupCount is one row of a grouped count. Value is empty when the field is absent.
type GroupCount struct {
	Value string
	Count int
}

// IndexKeyPrefix converts an index name to the key prefix it covers.
// "songrec:song:idx" -> "songrec:song:"
func IndexKeyPrefix(index string) string {
	if strings.HasSuffix(index, ":idx") {
		return index[:len(index)-3]
	}
	return index + ":"
}

// SortGroupCounts orders rows by count desc, then value asc, and truncates to limit (0 = no limit).
// Rows sharing a value (e.g. several "absent" groups) are merged first.
func SortGroupCounts(rows []GroupCount, limit int) []GroupCount {
	merged := make(map[string]int, len(rows))
	order := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := merged[r.Value]; !ok {
			order = append(order, r.Value)
		}
		merged[r.Value] += r.Count
	}

	out := make([]GroupCount, 0, len(order))
	for _, v := range order {
		out = append(out, GroupCount{Value: v, Count: merged[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
