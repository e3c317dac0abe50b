package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/songrec/internal/db"
)

// AggregateCount groups documents by a TAG field via FT.AGGREGATE ... GROUPBY ... REDUCE COUNT.
func (s *Store) AggregateCount(ctx context.Context, q *db.GroupCountQuery) ([]db.GroupCount, error) {
	if q.IndexName == "" || q.Field == "" {
		return nil, fmt.Errorf("index name and field are required")
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(
		q.IndexName, "*",
		"GROUPBY", "1", "@"+q.Field,
		"REDUCE", "COUNT", "0", "AS", "count",
	).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	rows, err := ParseGroupCounts(raw, q.Field)
	if err != nil {
		return nil, err
	}
	return db.SortGroupCounts(rows, q.Limit), nil
}

// ParseGroupCounts reads [n, [field, value, "count", c], ...] rows.
// A nil field value (documents without the field) becomes an empty Value.
func ParseGroupCounts(raw []rueidis.RedisMessage, field string) ([]db.GroupCount, error) {
	if len(raw) <= 1 {
		return nil, nil
	}

	rows := make([]db.GroupCount, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		pairs, err := msg.ToArray()
		if err != nil {
			continue
		}
		m := ParseFieldPairs(pairs)
		n, err := strconv.Atoi(m["count"])
		if err != nil {
			return nil, fmt.Errorf("parse group count: %w", err)
		}
		rows = append(rows, db.GroupCount{Value: m[field], Count: n})
	}
	return rows, nil
}
