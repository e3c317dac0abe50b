package chi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	dombatch "github.com/kailas-cloud/songrec/internal/domain/batch"
	domsong "github.com/kailas-cloud/songrec/internal/domain/song"
	cataloguc "github.com/kailas-cloud/songrec/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/songrec/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/songrec/internal/usecase/recommend"
	statsuc "github.com/kailas-cloud/songrec/internal/usecase/stats"
	"github.com/kailas-cloud/songrec/internal/version"
)

// Catalog proxies upstream search and stores songs.
type Catalog interface {
	Search(ctx context.Context, query string, page, limit int) (domsong.SearchPage, error)
	AddSong(ctx context.Context, name, artist string) (cataloguc.Added, error)
	Process(ctx context.Context, id string) (cataloguc.Added, error)
	Song(ctx context.Context, id string) (domsong.Record, error)
}

// Recommender answers similar-song queries.
type Recommender interface {
	Recommend(ctx context.Context, songID string, limit int) (recommenduc.List, error)
	MaxLimit() int
}

// StatsReader reports catalog statistics.
type StatsReader interface {
	Stats(ctx context.Context) (statsuc.Summary, error)
}

// HealthChecker runs component health checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Options holds request defaults.
type Options struct {
	DefaultRecommendLimit int
	DefaultSearchLimit    int
}

// Server holds the HTTP handlers.
type Server struct {
	catalog       Catalog
	recommend     Recommender
	stats         StatsReader
	health        HealthChecker
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog Catalog,
	recommend Recommender,
	stats StatsReader,
	health HealthChecker,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.DefaultRecommendLimit <= 0 {
		opts.DefaultRecommendLimit = 10
	}
	if opts.DefaultSearchLimit <= 0 {
		opts.DefaultSearchLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:       catalog,
		recommend:     recommend,
		stats:         stats,
		health:        health,
		opts:          opts,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Root)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/proxy/search", s.ProxySearch)
	r.Get("/recommend/{song_id}", s.Recommend)
	r.Get("/songs/{song_id}", s.GetSong)
	r.Get("/stats", s.Stats)
	r.Post("/api/add-song", s.AddSong)
	r.Post("/api/process/{song_id}", s.ProcessSong)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": version.Service,
		"version": version.Version,
	})
}

// ProxySearch handles GET /proxy/search and returns the upstream body unmodified.
func (s *Server) ProxySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	limit, err := intParam(q.Get("limit"), "limit", s.opts.DefaultSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	p := searchParams{Query: strings.TrimSpace(q.Get("query")), Page: page, Limit: limit}
	if err := validateParams(p); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	res, err := s.catalog.Search(r.Context(), p.Query, p.Page, p.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}

// RecommendationItem is one similar song.
type RecommendationItem struct {
	SongID          string          `json:"song_id"`
	Name            string          `json:"name"`
	PrimaryArtist   string          `json:"primary_artist"`
	AlbumName       *string         `json:"album_name"`
	Language        *string         `json:"language"`
	SimilarityScore float64         `json:"similarity_score"`
	RawData         json.RawMessage `json:"raw_data"`
}

// RecommendationsResponse is the body of GET /recommend/{song_id}.
type RecommendationsResponse struct {
	QuerySongID     string               `json:"query_song_id"`
	QuerySongName   string               `json:"query_song_name"`
	QueryArtist     string               `json:"query_artist"`
	Recommendations []RecommendationItem `json:"recommendations"`
	Total           int                  `json:"total"`
}

// Recommend handles GET /recommend/{song_id}.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit", s.opts.DefaultRecommendLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	p := recommendParams{SongID: chi.URLParam(r, "song_id"), Limit: limit}
	if err := validateParams(p); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	if maxLimit := s.recommend.MaxLimit(); p.Limit > maxLimit {
		writeError(w, http.StatusBadRequest, codeValidation, "limit must be at most "+strconv.Itoa(maxLimit))
		return
	}

	list, err := s.recommend.Recommend(r.Context(), p.SongID, p.Limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]RecommendationItem, len(list.Items))
	for i := range list.Items {
		rec := &list.Items[i].Record
		items[i] = RecommendationItem{
			SongID:          rec.ID(),
			Name:            rec.Name(),
			PrimaryArtist:   rec.PrimaryArtist(),
			AlbumName:       optional(rec.AlbumName()),
			Language:        optional(rec.Language()),
			SimilarityScore: list.Items[i].Score,
			RawData:         rawOrEmpty(rec.Raw()),
		}
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{
		QuerySongID:     list.QuerySongID,
		QuerySongName:   list.QuerySongName,
		QueryArtist:     list.QueryArtist,
		Recommendations: items,
		Total:           list.Total,
	})
}

// SongResponse is a stored song without its embedding.
type SongResponse struct {
	SongID        string          `json:"song_id"`
	Name          string          `json:"name"`
	PrimaryArtist string          `json:"primary_artist"`
	AlbumName     *string         `json:"album_name"`
	Language      *string         `json:"language"`
	RawData       json.RawMessage `json:"raw_data"`
	CreatedAt     time.Time       `json:"created_at"`
}

type dataEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// GetSong handles GET /songs/{song_id}.
func (s *Server) GetSong(w http.ResponseWriter, r *http.Request) {
	p := songIDParams{SongID: chi.URLParam(r, "song_id")}
	if err := validateParams(p); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	rec, err := s.catalog.Song(r.Context(), p.SongID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Success: true, Data: SongResponse{
		SongID:        rec.ID(),
		Name:          rec.Name(),
		PrimaryArtist: rec.PrimaryArtist(),
		AlbumName:     optional(rec.AlbumName()),
		Language:      optional(rec.Language()),
		RawData:       rawOrEmpty(rec.Raw()),
		CreatedAt:     rec.CreatedAt(),
	}})
}

// LanguageCount is one language bucket.
type LanguageCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// StatsResponse is the data of GET /stats.
type StatsResponse struct {
	TotalSongs           int             `json:"total_songs"`
	LanguageDistribution []LanguageCount `json:"language_distribution"`
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	sum, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	dist := make([]LanguageCount, len(sum.Languages))
	for i, l := range sum.Languages {
		dist[i] = LanguageCount{Language: l.Language, Count: l.Count}
	}
	writeJSON(w, http.StatusOK, dataEnvelope{Success: true, Data: StatsResponse{
		TotalSongs:           sum.TotalSongs,
		LanguageDistribution: dist,
	}})
}

// AddedResponse is the body of the add-song and process endpoints.
type AddedResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	SongID        string  `json:"song_id"`
	Name          string  `json:"name"`
	PrimaryArtist string  `json:"primary_artist"`
	Album         *string `json:"album"`
	Language      *string `json:"language"`
	Status        string  `json:"status"`
}

// AddSong handles POST /api/add-song?song_name=&artist=.
func (s *Server) AddSong(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := addSongParams{SongName: strings.TrimSpace(q.Get("song_name")), Artist: strings.TrimSpace(q.Get("artist"))}
	if err := validateParams(p); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	added, err := s.catalog.AddSong(r.Context(), p.SongName, p.Artist)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeAdded(w, r, added)
}

// ProcessSong handles POST /api/process/{song_id}.
func (s *Server) ProcessSong(w http.ResponseWriter, r *http.Request) {
	p := songIDParams{SongID: chi.URLParam(r, "song_id")}
	if err := validateParams(p); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	added, err := s.catalog.Process(r.Context(), p.SongID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeAdded(w, r, added)
}

func (s *Server) writeAdded(w http.ResponseWriter, r *http.Request, a cataloguc.Added) {
	setEmbeddingHeaders(w, domain.UsageFromContext(r.Context()))
	msg := "Song '" + a.Name + "' added to database"
	if a.Outcome != dombatch.OutcomeInserted {
		msg = "Song '" + a.Name + "' already in database"
	}
	writeJSON(w, http.StatusOK, AddedResponse{
		Success:       true,
		Message:       msg,
		SongID:        a.SongID,
		Name:          a.Name,
		PrimaryArtist: a.PrimaryArtist,
		Album:         optional(a.Album),
		Language:      optional(a.Language),
		Status:        string(a.Outcome),
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Calls() > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.Tokens()))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
