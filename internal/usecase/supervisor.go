package usecase

import (
	"context"
	"sync"

	"P3Recon/internal/domain"
)

// Supervisor serializes refresh runs. A new request cancels the in-flight
// run and waits for it to unwind, so at most one run ever touches the
// sources or the store at a time.
type Supervisor struct {
	pipeline *Pipeline

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewSupervisor wraps a pipeline with run supervision.
func NewSupervisor(pipeline *Pipeline) *Supervisor {
	return &Supervisor{pipeline: pipeline}
}

// Refresh starts a run, superseding any in-flight one. The superseded run
// observes cancellation and returns without publishing results.
func (s *Supervisor) Refresh(ctx context.Context, lat, lng, radiusMiles float64, thresholds domain.Thresholds) (domain.RefreshResult, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Add(1)
	s.mu.Unlock()

	defer func() {
		cancel()
		s.running.Done()
	}()

	return s.pipeline.RunRefresh(runCtx, lat, lng, radiusMiles, thresholds)
}
