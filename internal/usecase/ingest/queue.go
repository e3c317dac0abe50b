package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	dombatch "github.com/kailas-cloud/songrec/internal/domain/batch"
	"github.com/kailas-cloud/songrec/internal/logger"
	"github.com/kailas-cloud/songrec/internal/metrics"
)

// Policy decides what Enqueue does when the queue is full.
type Policy string

// Overload policies.
const (
	DropNewest Policy = "drop_newest"
	DropOldest Policy = "drop_oldest"
	Block      Policy = "block"
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case DropNewest, DropOldest, Block:
		return p, nil
	case "":
		return DropNewest, nil
	default:
		return "", fmt.Errorf("unknown overload policy %q: %w", s, domain.ErrValidation)
	}
}

// BatchIngester processes one batch of descriptors.
type BatchIngester interface {
	IngestBatch(ctx context.Context, raws []json.RawMessage) dombatch.Summary
}

// QueueOptions configures a Queue.
type QueueOptions struct {
	Workers        int
	Size           int
	Policy         Policy
	EnqueueTimeout time.Duration // Block only
}

type job struct {
	ctx  context.Context
	raws []json.RawMessage
}

// Queue is a bounded backlog of ingest batches drained by a fixed worker pool.
// It runs as a suture service; batches still queued at shutdown are discarded.
type Queue struct {
	ingester BatchIngester
	opts     QueueOptions
	jobs     chan job
	log      *zap.Logger
}

// NewQueue creates a queue. Enqueue works before Serve starts; jobs wait in the buffer.
func NewQueue(ingester BatchIngester, opts QueueOptions, log *zap.Logger) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.Policy == "" {
		opts.Policy = DropNewest
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{
		ingester: ingester,
		opts:     opts,
		jobs:     make(chan job, opts.Size),
		log:      log,
	}
}

// Enqueue schedules raws for background ingestion and returns without waiting for it.
// The job keeps the request logger but not its cancellation.
func (q *Queue) Enqueue(ctx context.Context, raws []json.RawMessage) error {
	if len(raws) == 0 {
		return nil
	}
	j := job{ctx: logger.Detach(ctx), raws: raws}

	switch q.opts.Policy {
	case DropOldest:
		q.enqueueDropOldest(j)
		return nil
	case Block:
		return q.enqueueBlock(ctx, j)
	default:
		select {
		case q.jobs <- j:
			q.accepted()
			return nil
		default:
			metrics.IngestBatchesTotal.WithLabelValues("dropped_newest").Inc()
			return fmt.Errorf("%d songs rejected: %w", len(raws), domain.ErrQueueFull)
		}
	}
}

func (q *Queue) enqueueDropOldest(j job) {
	for {
		select {
		case q.jobs <- j:
			q.accepted()
			return
		default:
		}
		select {
		case old := <-q.jobs:
			metrics.IngestBatchesTotal.WithLabelValues("dropped_oldest").Inc()
			q.log.Warn("Ingest queue full, dropped oldest batch", zap.Int("songs", len(old.raws)))
		default:
		}
	}
}

func (q *Queue) enqueueBlock(ctx context.Context, j job) error {
	timer := time.NewTimer(q.opts.EnqueueTimeout)
	defer timer.Stop()

	select {
	case q.jobs <- j:
		q.accepted()
		return nil
	case <-timer.C:
		metrics.IngestBatchesTotal.WithLabelValues("timeout").Inc()
		return fmt.Errorf("no room after %s: %w", q.opts.EnqueueTimeout, domain.ErrQueueFull)
	case <-ctx.Done():
		return fmt.Errorf("enqueue: %w", ctx.Err())
	}
}

func (q *Queue) accepted() {
	metrics.IngestBatchesTotal.WithLabelValues("enqueued").Inc()
	metrics.IngestQueueDepth.Set(float64(len(q.jobs)))
}

// Len returns the number of batches waiting.
func (q *Queue) Len() int { return len(q.jobs) }

// Serve implements suture.Service. It returns ctx.Err() after every worker stopped.
func (q *Queue) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for range q.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			metrics.IngestQueueDepth.Set(float64(len(q.jobs)))
			q.run(ctx, j)
		}
	}
}

// run processes j under its own context, cancelled when the queue stops.
func (q *Queue) run(serveCtx context.Context, j job) {
	jobCtx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(serveCtx, cancel)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Ingest batch panicked", zap.Any("panic", r), zap.Int("songs", len(j.raws)))
		}
	}()
	q.ingester.IngestBatch(jobCtx, j.raws)
}

// String implements fmt.Stringer for supervisor logs.
func (q *Queue) String() string { return "ingest-queue" }
