package saavn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/songrec/internal/domain"
	"github.com/kailas-cloud/songrec/internal/metrics"
)

// maxBodyBytes caps upstream responses read into memory.
const maxBodyBytes = 8 << 20

// errUpstreamNotFound marks a 404 inside the breaker; it does not count as a failure.
var errUpstreamNotFound = errors.New("upstream 404")

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold    uint32        // consecutive failures before opening
	OpenTimeout         time.Duration // time spent open before a half-open probe
	MaxHalfOpenRequests uint32
}

// Config holds the music search API client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    BreakerConfig
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls a Saavn-compatible music search API.
// Every call goes through one circuit breaker; there are no internal retries.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// New creates an upstream client.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	threshold := cfg.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.Breaker.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	halfOpen := cfg.Breaker.MaxHalfOpenRequests
	if halfOpen == 0 {
		halfOpen = 1
	}

	metrics.UpstreamBreakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "saavn",
		MaxRequests: halfOpen,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUpstreamNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.UpstreamBreakerState.Set(stateToFloat(to))
			logger.Warn("Upstream circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		http:    httpClient,
		cb:      cb,
		logger:  logger,
	}
}

// Search calls GET /search/songs. The full response body is kept in SearchPage.Body.
func (c *Client) Search(ctx context.Context, query string, page, limit int) (SearchPage, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "search", "/search/songs", params)
	if err != nil {
		return SearchPage{}, err
	}
	return decodeSearch(body)
}

// Song calls GET /songs/{id} and returns the song descriptors (one or more).
func (c *Client) Song(ctx context.Context, id string) ([]RawSong, error) {
	body, err := c.get(ctx, "song", "/songs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	songs, err := decodeSongs(body)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("song %s: %w", id, domain.ErrNotFound)
	}
	return songs, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, reqURL)
	})
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
		return body, nil
	case errors.Is(err, errUpstreamNotFound):
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "not_found").Inc()
		return nil, fmt.Errorf("%s: %w", endpoint, domain.ErrNotFound)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "breaker_open").Inc()
		return nil, fmt.Errorf("%s: circuit open: %w", endpoint, domain.ErrUpstreamUnavailable)
	default:
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.logger.Warn("Upstream request failed",
			zap.String("endpoint", endpoint),
			zap.String("url", reqURL),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s: %w: %w", endpoint, domain.ErrUpstreamUnavailable, err)
	}
}

func (c *Client) do(ctx context.Context, reqURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errUpstreamNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
