package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeServer struct {
	stop      chan struct{}
	listenErr error
	shutdown  atomic.Bool
}

func newFakeServer() *fakeServer { return &fakeServer{stop: make(chan struct{})} }

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdown.Store(true)
	close(f.stop)
	return nil
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if !srv.shutdown.Load() {
		t.Error("Shutdown was not called")
	}
}

func TestHTTPService_ListenError(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("address already in use")

	err := NewHTTPService(srv, time.Second).Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("expected listen error, got %v", err)
	}
}

type countingService struct {
	runs atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	if c.runs.Add(1) == 1 {
		return errors.New("first run fails")
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestTree_RestartsFailedServiceAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tree := New("test", zap.New(core), Config{FailureBackoff: 10 * time.Millisecond})

	svc := &countingService{}
	tree.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tree.Serve(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for svc.runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if svc.runs.Load() < 2 {
		t.Fatalf("service was not restarted, runs = %d", svc.runs.Load())
	}
	if logs.FilterLevelExact(zap.WarnLevel).Len() == 0 {
		t.Error("expected a warning for the terminated service")
	}
}
