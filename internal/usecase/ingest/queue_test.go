package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	dombatch "github.com/kailas-cloud/songrec/internal/domain/batch"
	"github.com/kailas-cloud/songrec/internal/logger"
)

type recordingIngester struct {
	mu      sync.Mutex
	batches [][]json.RawMessage
	done    chan struct{}
	started chan struct{}
	block   chan struct{}
	ctxErr  error
}

func (r *recordingIngester) IngestBatch(ctx context.Context, raws []json.RawMessage) dombatch.Summary {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			r.mu.Lock()
			r.ctxErr = ctx.Err()
			r.mu.Unlock()
		}
	}
	r.mu.Lock()
	r.batches = append(r.batches, raws)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return dombatch.Summary{}
}

func batchOf(ids ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		out[i] = rawSong(id)
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []string{"drop_newest", "drop_oldest", "block"} {
		if got, err := ParsePolicy(p); err != nil || string(got) != p {
			t.Errorf("ParsePolicy(%q) = %q, %v", p, got, err)
		}
	}
	if got, _ := ParsePolicy(""); got != DropNewest {
		t.Errorf("empty policy should default to drop_newest, got %q", got)
	}
	if _, err := ParsePolicy("drop_all"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestEnqueue_DropNewest(t *testing.T) {
	q := NewQueue(&recordingIngester{}, QueueOptions{Size: 1, Policy: DropNewest}, nil)

	if err := q.Enqueue(context.Background(), batchOf("a")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	err := q.Enqueue(context.Background(), batchOf("b"))
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 queued batch, got %d", q.Len())
	}
}

func TestEnqueue_DropOldest(t *testing.T) {
	ing := &recordingIngester{done: make(chan struct{}, 2)}
	q := NewQueue(ing, QueueOptions{Size: 1, Policy: DropOldest}, nil)

	if err := q.Enqueue(context.Background(), batchOf("a")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), batchOf("b")); err != nil {
		t.Fatalf("drop_oldest must accept, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	select {
	case <-ing.done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch not processed")
	}
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if len(ing.batches) != 1 || peekTestID(ing.batches[0][0]) != "b" {
		t.Errorf("expected only the newest batch to survive, got %d batches", len(ing.batches))
	}
}

func TestEnqueue_BlockTimesOut(t *testing.T) {
	q := NewQueue(&recordingIngester{}, QueueOptions{
		Size: 1, Policy: Block, EnqueueTimeout: 20 * time.Millisecond,
	}, nil)

	if err := q.Enqueue(context.Background(), batchOf("a")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	start := time.Now()
	err := q.Enqueue(context.Background(), batchOf("b"))
	if !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("block policy returned before the timeout")
	}
}

func TestEnqueue_BlockSucceedsWhenDrained(t *testing.T) {
	ing := &recordingIngester{done: make(chan struct{}, 4)}
	q := NewQueue(ing, QueueOptions{Size: 1, Workers: 1, Policy: Block, EnqueueTimeout: 2 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(context.Background(), batchOf(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	for range 3 {
		select {
		case <-ing.done:
		case <-time.After(2 * time.Second):
			t.Fatal("batch not processed")
		}
	}
}

func TestEnqueue_EmptyIsNoop(t *testing.T) {
	q := NewQueue(&recordingIngester{}, QueueOptions{Size: 1}, nil)
	if err := q.Enqueue(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Len() != 0 {
		t.Error("empty batch must not be queued")
	}
}

func TestQueue_JobOutlivesRequest(t *testing.T) {
	ing := &recordingIngester{done: make(chan struct{}, 1)}
	q := NewQueue(ing, QueueOptions{Size: 4}, nil)

	reqCtx, cancelReq := context.WithCancel(logger.ContextWithLogger(context.Background(), zap.NewNop()))
	if err := q.Enqueue(reqCtx, batchOf("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	cancelReq()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Serve(ctx) }()

	select {
	case <-ing.done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch not processed after request was cancelled")
	}
	if ing.ctxErr != nil {
		t.Errorf("job context inherited request cancellation: %v", ing.ctxErr)
	}
}

func TestQueue_ServeStopsInFlight(t *testing.T) {
	ing := &recordingIngester{
		done: make(chan struct{}, 1), started: make(chan struct{}, 1), block: make(chan struct{}),
	}
	q := NewQueue(ing, QueueOptions{Size: 1, Workers: 1}, nil)
	if err := q.Enqueue(context.Background(), batchOf("a")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- q.Serve(ctx) }()

	select {
	case <-ing.started:
	case <-time.After(2 * time.Second):
		t.Fatal("batch not picked up")
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	<-ing.done
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if !errors.Is(ing.ctxErr, context.Canceled) {
		t.Errorf("in-flight job should be cancelled, got %v", ing.ctxErr)
	}
}

func peekTestID(raw json.RawMessage) string {
	var v struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &v)
	return v.ID
}
