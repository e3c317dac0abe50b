package embedding

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/songrec/internal/domain"
	"github.com/kailas-cloud/songrec/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  atomic.Int32
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	return m.result, m.err
}

type mockHealth struct{ err error }

func (m *mockHealth) HealthCheck(context.Context) error { return m.err }

func newReadyProvider(t *testing.T, inner *mockEmbedder) *Provider {
	t.Helper()
	p := NewProvider(inner, nil, Options{Provider: "test", Model: "m", Dimensions: 3}, zap.NewNop())
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return p
}

func TestProvider_EmbedBeforeInit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	p := NewProvider(inner, nil, Options{Dimensions: 3}, zap.NewNop())

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrProviderNotReady) {
		t.Fatalf("expected ErrProviderNotReady, got %v", err)
	}
	if inner.calls.Load() != 0 {
		t.Error("backend must not be called before Init")
	}
}

func TestProvider_BlankText(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	p := newReadyProvider(t, inner)
	before := inner.calls.Load()

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := p.Embed(context.Background(), text); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Embed(%q) error = %v, want ErrValidation", text, err)
		}
	}
	if inner.calls.Load() != before {
		t.Error("backend must not be called for blank text")
	}
}

func TestProvider_Embed(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}, TotalTokens: 4}}
	p := newReadyProvider(t, inner)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	vec, err := p.Embed(ctx, "Imagine John Lennon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len = %d, want 3", len(vec))
	}
	if usage.Calls() != 1 || usage.Tokens() != 4 {
		t.Errorf("usage = %d calls / %d tokens", usage.Calls(), usage.Tokens())
	}
}

func TestProvider_InitDimMismatch(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	p := NewProvider(inner, nil, Options{Model: "m", Dimensions: 384}, zap.NewNop())

	if err := p.Init(context.Background()); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if p.Ready() {
		t.Error("provider must not be ready after failed Init")
	}
}

func TestProvider_InitBackendError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	p := NewProvider(inner, nil, Options{Dimensions: 3}, zap.NewNop())

	if err := p.Init(context.Background()); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestProvider_InitIdempotent(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	p := NewProvider(inner, nil, Options{Dimensions: 3}, zap.NewNop())

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Init(context.Background()); err != nil {
				t.Errorf("init: %v", err)
			}
		}()
	}
	wg.Wait()

	if !p.Ready() {
		t.Fatal("expected ready")
	}
	calls := inner.calls.Load()
	_ = p.Init(context.Background())
	if inner.calls.Load() != calls {
		t.Error("Init after ready must not probe again")
	}
}

func TestProvider_BackendDimMismatch(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	p := newReadyProvider(t, inner)
	inner.result.Embedding = []float32{1}

	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestProvider_BuildDescription(t *testing.T) {
	p := NewProvider(&mockEmbedder{}, nil, Options{}, nil)
	got := p.BuildDescription("Imagine", "John Lennon", "Imagine", "english")
	if got != "Imagine John Lennon Imagine english" {
		t.Errorf("BuildDescription() = %q", got)
	}
	if p.Dimensions() != 384 {
		t.Errorf("default dimensions = %d", p.Dimensions())
	}
}

func TestProvider_HealthCheck(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	health := &mockHealth{}
	p := NewProvider(inner, health, Options{Dimensions: 3}, zap.NewNop())

	if err := p.HealthCheck(context.Background()); !errors.Is(err, domain.ErrProviderNotReady) {
		t.Errorf("expected ErrProviderNotReady before Init, got %v", err)
	}
	_ = p.Init(context.Background())
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	health.err = errors.New("down")
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("expected backend error")
	}
}

func TestProvider_InitProbesBackendNotCache(t *testing.T) {
	cached := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	backend := &mockEmbedder{err: errors.New("backend down")}
	p := NewProvider(cached, nil, Options{Dimensions: 3}, zap.NewNop()).WithProbe(backend)

	if err := p.Init(context.Background()); err == nil {
		t.Fatal("expected Init to fail when the backend is down")
	}
	if cached.calls.Load() != 0 {
		t.Error("Init must not consult the cache")
	}
	if p.Ready() {
		t.Error("provider must not be ready")
	}

	backend.err = nil
	backend.result = domain.EmbeddingResult{Embedding: []float32{4, 5, 6}}
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := p.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if cached.calls.Load() != 1 || backend.calls.Load() != 2 {
		t.Errorf("calls cached=%d backend=%d", cached.calls.Load(), backend.calls.Load())
	}
}

func TestProvider_ReadyLoggedOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2, 3}}}
	p := NewProvider(inner, nil, Options{Dimensions: 3}, zap.New(core))

	for range 3 {
		if err := p.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}
	}
	if n := logs.FilterMessage("Embedding provider ready").Len(); n != 1 {
		t.Errorf("expected one ready line, got %d", n)
	}
}
