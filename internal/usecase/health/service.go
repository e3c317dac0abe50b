package health

import (
	"context"
	"sync"
	"time"
)

// Status is the aggregated health status.
type Status string

const (
	// Healthy means every check passed.
	Healthy Status = "ok"
	// Degraded means at least one check failed.
	Degraded Status = "degraded"
)

// CheckResult is one component's outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service runs the component checks.
type Service struct {
	checks  map[string]func(context.Context) error
	timeout time.Duration
}

// New creates a Service. embedding and index may be nil and are then not reported.
func New(db DBPinger, embedding EmbeddingChecker, index IndexVerifier) *Service {
	checks := map[string]func(context.Context) error{"database": db.Ping}
	if embedding != nil {
		checks["embedding"] = embedding.HealthCheck
	}
	if index != nil {
		checks["song_index"] = index.VerifyIndex
	}
	return &Service{checks: checks, timeout: defaultCheckTimeout}
}

// WithTimeout bounds each check.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every check concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = make(map[string]CheckResult, len(s.checks))
	)
	for name, fn := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			r := CheckOK
			if err := fn(cctx); err != nil {
				r = CheckError
			}
			mu.Lock()
			res[name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := Healthy
	for _, v := range res {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	return Report{Status: status, Checks: res}
}
