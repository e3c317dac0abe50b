package saavn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/songrec/internal/domain"
	"github.com/kailas-cloud/songrec/internal/metrics"
)

func newTestClient(t *testing.T, h http.HandlerFunc, threshold uint32) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL: srv.URL + "/",
		Timeout: 2 * time.Second,
		Breaker: BreakerConfig{FailureThreshold: threshold, OpenTimeout: time.Minute},
	})
}

func TestSearch_DecodesPage(t *testing.T) {
	const body = `{"success":true,"data":{"total":42,"start":10,"results":[{"id":"a1","name":"Imagine"},{"id":"b2"}]}}`
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/songs" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(body))
	}, 5)

	page, err := c.Search(context.Background(), "john lennon", 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 42 || page.Start != 10 {
		t.Errorf("total/start = %d/%d", page.Total, page.Start)
	}
	if len(page.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page.Results))
	}
	if string(page.Results[0]) != `{"id":"a1","name":"Imagine"}` {
		t.Errorf("result not kept verbatim: %s", page.Results[0])
	}
	if string(page.Body) != body {
		t.Errorf("body not kept verbatim: %s", page.Body)
	}
	if !strings.Contains(gotQuery, "query=john+lennon") || !strings.Contains(gotQuery, "page=1") ||
		!strings.Contains(gotQuery, "limit=10") {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestSearch_SuccessFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"rate limited"}`))
	}, 5)

	_, err := c.Search(context.Background(), "x", 0, 10)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestSearch_Non2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 5)

	_, err := c.Search(context.Background(), "x", 0, 10)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestSong_ObjectAndList(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"object", `{"success":true,"data":{"song":{"id":"s1"}}}`, 1},
		{"list", `{"success":true,"data":{"song":[{"id":"s1"},{"id":"s2"}]}}`, 2},
		{"bare data list", `{"success":true,"data":[{"id":"s1"}]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/songs/s1" {
					t.Errorf("path = %q", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			}, 5)

			songs, err := c.Song(context.Background(), "s1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(songs) != tt.want {
				t.Fatalf("expected %d songs, got %d", tt.want, len(songs))
			}
		})
	}
}

func TestSong_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"song":[]}}`))
	}, 5)

	_, err := c.Song(context.Background(), "s1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSong_404DoesNotTrip(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, 2)

	for i := range 4 {
		_, err := c.Song(context.Background(), "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if calls.Load() != 4 {
		t.Errorf("expected every call to reach the server, got %d", calls.Load())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 3)

	for range 3 {
		if _, err := c.Search(context.Background(), "x", 0, 10); !errors.Is(err, domain.ErrUpstreamUnavailable) {
			t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
		}
	}
	if got := testutil.ToFloat64(metrics.UpstreamBreakerState); got != 2 {
		t.Errorf("breaker gauge = %v, want 2 (open)", got)
	}

	_, err := c.Search(context.Background(), "x", 0, 10)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "circuit open") {
		t.Errorf("expected fail-fast error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("open breaker must not reach the server, calls = %d", calls.Load())
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.Search(context.Background(), "x", 0, 10)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
