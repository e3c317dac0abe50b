package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	dombatch "github.com/kailas-cloud/songrec/internal/domain/batch"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
	"github.com/kailas-cloud/songrec/internal/logger"
)

// addSongSearchLimit is how many upstream candidates AddSong fetches before taking the first.
const addSongSearchLimit = 5

// Added describes a song stored (or found already stored) by AddSong or Process.
type Added struct {
	SongID        string
	Name          string
	PrimaryArtist string
	Album         string
	Language      string
	Outcome       dombatch.Outcome
}

// Service proxies upstream search and feeds results into the song store.
type Service struct {
	upstream Upstream
	ingest   Ingester
	queue    Enqueuer
	songs    SongReader
	log      *zap.Logger
}

// New creates a catalog service.
func New(upstream Upstream, ingest Ingester, queue Enqueuer, songs SongReader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{upstream: upstream, ingest: ingest, queue: queue, songs: songs, log: log}
}

// Search proxies an upstream search and schedules its results for ingestion.
// A full queue is logged; the search still succeeds.
func (s *Service) Search(ctx context.Context, query string, page, limit int) (domsong.SearchPage, error) {
	if strings.TrimSpace(query) == "" {
		return domsong.SearchPage{}, fmt.Errorf("query is required: %w", domain.ErrValidation)
	}
	if page < 0 {
		return domsong.SearchPage{}, fmt.Errorf("page must not be negative: %w", domain.ErrValidation)
	}
	if limit < 1 {
		return domsong.SearchPage{}, fmt.Errorf("limit must be positive: %w", domain.ErrValidation)
	}

	res, err := s.upstream.Search(ctx, query, page, limit)
	if err != nil {
		return domsong.SearchPage{}, fmt.Errorf("upstream search: %w", err)
	}

	if len(res.Results) > 0 {
		log := logger.FromContext(ctx, s.log)
		if err := s.queue.Enqueue(ctx, res.Results); err != nil {
			log.Warn("Search results not queued for ingestion",
				zap.Int("songs", len(res.Results)), zap.Error(err))
		} else {
			log.Debug("Search results queued for ingestion", zap.Int("songs", len(res.Results)))
		}
	}
	return res, nil
}

// AddSong searches upstream for "name artist", stores the first hit synchronously and describes it.
func (s *Service) AddSong(ctx context.Context, name, artist string) (Added, error) {
	name, artist = strings.TrimSpace(name), strings.TrimSpace(artist)
	if name == "" {
		return Added{}, fmt.Errorf("song name is required: %w", domain.ErrValidation)
	}
	query := name
	if artist != "" {
		query = name + " " + artist
	}

	res, err := s.upstream.Search(ctx, query, 0, addSongSearchLimit)
	if err != nil {
		return Added{}, fmt.Errorf("upstream search: %w", err)
	}
	if len(res.Results) == 0 {
		return Added{}, fmt.Errorf("no songs found for %q: %w", query, domain.ErrNotFound)
	}
	return s.store(ctx, res.Results[0])
}

// Process fetches a song by upstream id and stores it synchronously.
func (s *Service) Process(ctx context.Context, id string) (Added, error) {
	if strings.TrimSpace(id) == "" {
		return Added{}, fmt.Errorf("song id is required: %w", domain.ErrValidation)
	}
	songs, err := s.upstream.Song(ctx, id)
	if err != nil {
		return Added{}, fmt.Errorf("upstream song %s: %w", id, err)
	}
	if len(songs) == 0 {
		return Added{}, fmt.Errorf("upstream song %s: %w", id, domain.ErrNotFound)
	}
	return s.store(ctx, songs[0])
}

func (s *Service) store(ctx context.Context, raw json.RawMessage) (Added, error) {
	desc, err := domsong.ParseRaw(raw)
	if err != nil {
		return Added{}, err
	}
	outcome, err := s.ingest.IngestOne(ctx, raw)
	if err != nil {
		return Added{}, fmt.Errorf("ingest song: %w", err)
	}
	return Added{
		SongID:        desc.ID(),
		Name:          desc.Name(),
		PrimaryArtist: desc.PrimaryArtist(),
		Album:         desc.AlbumName(),
		Language:      desc.Language(),
		Outcome:       outcome,
	}, nil
}

// Song returns a stored record.
func (s *Service) Song(ctx context.Context, id string) (domsong.Record, error) {
	if strings.TrimSpace(id) == "" {
		return domsong.Record{}, fmt.Errorf("song id is required: %w", domain.ErrValidation)
	}
	rec, err := s.songs.Get(ctx, id)
	if err != nil {
		return domsong.Record{}, fmt.Errorf("get song %s: %w", id, err)
	}
	return rec, nil
}
