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
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
	"github.com/kailas-cloud/songrec/internal/logger"
	"github.com/kailas-cloud/songrec/internal/metrics"
)

// Service turns upstream song descriptors into stored records.
type Service struct {
	songs       SongStore
	embed       Embedder
	log         *zap.Logger
	itemTimeout time.Duration
}

// New creates an ingest service.
func New(songs SongStore, embed Embedder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{songs: songs, embed: embed, log: log}
}

// WithItemTimeout bounds each song of a batch. Zero means no per-item deadline.
func (s *Service) WithItemTimeout(d time.Duration) *Service {
	if d > 0 {
		s.itemTimeout = d
	}
	return s
}

// IngestOne stores a single descriptor unless a record with its id already exists.
// The returned error is nil for both skip outcomes except an undecodable or id-less descriptor.
func (s *Service) IngestOne(ctx context.Context, raw json.RawMessage) (dombatch.Outcome, error) {
	_, outcome, err := s.ingestTimed(ctx, raw)
	return outcome, err
}

func (s *Service) ingestTimed(ctx context.Context, raw json.RawMessage) (id string, outcome dombatch.Outcome, err error) {
	start := time.Now()
	desc, err := domsong.ParseRaw(raw)
	if err != nil {
		metrics.IngestSongsTotal.WithLabelValues(string(dombatch.OutcomeSkippedInvalid)).Inc()
		return "", dombatch.OutcomeSkippedInvalid, err
	}
	id = desc.ID()

	// A panicking store or embedder fails this song only.
	defer func() {
		if r := recover(); r != nil {
			outcome, err = dombatch.OutcomeFailed, fmt.Errorf("ingest song %s: panic: %v", id, r)
		}
		metrics.IngestSongDuration.Observe(time.Since(start).Seconds())
		metrics.IngestSongsTotal.WithLabelValues(string(outcome)).Inc()
	}()

	outcome, err = s.ingest(ctx, desc)
	return id, outcome, err
}

func (s *Service) ingest(ctx context.Context, desc domsong.Raw) (dombatch.Outcome, error) {
	id := desc.ID()
	if id == "" {
		return dombatch.OutcomeSkippedInvalid, fmt.Errorf("song descriptor has no id: %w", domain.ErrValidation)
	}

	exists, err := s.songs.Exists(ctx, id)
	if err != nil {
		return dombatch.OutcomeFailed, fmt.Errorf("check song %s: %w", id, err)
	}
	if exists {
		return dombatch.OutcomeSkippedExisting, nil
	}

	vec, err := s.embed.Embed(ctx, desc.Description())
	if err != nil {
		return dombatch.OutcomeFailed, fmt.Errorf("embed song %s: %w", id, err)
	}

	rec, err := domsong.New(desc, vec, s.embed.Dimensions())
	if err != nil {
		return dombatch.OutcomeFailed, fmt.Errorf("build song %s: %w", id, err)
	}

	inserted, err := s.songs.InsertIfAbsent(ctx, &rec)
	if err != nil {
		return dombatch.OutcomeFailed, fmt.Errorf("insert song %s: %w", id, err)
	}
	if !inserted {
		// Another writer stored the same id between Exists and the insert.
		return dombatch.OutcomeSkippedExisting, nil
	}
	return dombatch.OutcomeInserted, nil
}

// IngestBatch processes every descriptor concurrently. Per-item failures are logged and counted, never returned.
func (s *Service) IngestBatch(ctx context.Context, raws []json.RawMessage) dombatch.Summary {
	results := make([]dombatch.Result, len(raws))
	log := logger.FromContext(ctx, s.log)

	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func() {
			defer wg.Done()
			itemCtx := ctx
			if s.itemTimeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(ctx, s.itemTimeout)
				defer cancel()
			}
			id, outcome, err := s.ingestTimed(itemCtx, raw)
			switch outcome {
			case dombatch.OutcomeFailed:
				log.Error("Song ingest failed", zap.String("song_id", id), zap.Error(err))
				results[i] = dombatch.NewError(id, err)
				return
			case dombatch.OutcomeSkippedExisting:
				log.Debug("Song already stored", zap.String("song_id", id))
			case dombatch.OutcomeSkippedInvalid:
				log.Warn("Song descriptor skipped", zap.Error(err))
			}
			results[i] = dombatch.NewResult(id, outcome)
		}()
	}
	wg.Wait()

	sum := dombatch.Summarize(results)
	log.Info("Ingest batch finished",
		zap.Int("songs", len(raws)),
		zap.Int("inserted", sum.Inserted),
		zap.Int("skipped", sum.Skipped),
		zap.Int("invalid", sum.Invalid),
		zap.Int("failed", sum.Failed),
	)
	return sum
}
