package shutdown

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker tracks background work so shutdown can wait for it
type InFlightTracker struct {
	mu         sync.Mutex
	wg         sync.WaitGroup
	closed     bool
	shutdownCh chan struct{}
	logger     *zap.Logger
	name       string
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Go runs fn in a tracked goroutine. It returns false, without running fn,
// once shutdown has started.
func (t *InFlightTracker) Go(fn func()) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		fn()
	}()
	return true
}

// Wait blocks until all tracked work has finished
func (t *InFlightTracker) Wait() {
	t.wg.Wait()
}

// Shutdown rejects new work and waits for tracked work or ctx
func (t *InFlightTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.shutdownCh)
	}
	t.mu.Unlock()

	t.logger.Info("Waiting for in-flight work to complete", zap.String("tracker", t.name))

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.logger.Warn("Shutdown timeout - some work may be incomplete", zap.String("tracker", t.name))
		return ctx.Err()
	}
}

// IsShuttingDown returns true if shutdown has been initiated
func (t *InFlightTracker) IsShuttingDown() bool {
	select {
	case <-t.shutdownCh:
		return true
	default:
		return false
	}
}
