// Package scheduler drives the engine's scheduled generation attempts.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Ticker is the work performed on every wakeup. NextInterval is asked after
// each tick so configuration changes take effect from the next one.
type Ticker interface {
	Tick(ctx context.Context) *types.ErrorEvent
	NextInterval() time.Duration
}

const minInterval = 10 * time.Millisecond

// Scheduler runs one background goroutine that ticks at the configured
// interval. Start and Stop are idempotent.
type Scheduler struct {
	ticker Ticker
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped Scheduler.
func New(t Ticker, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{ticker: t, logger: logger}
}

// Start launches the tick loop. It returns false when the loop is already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx, s.done)
	s.logger.Info("scheduler started")
	return true
}

// Stop cancels the loop and waits for an in-flight tick to finish, or for ctx
// to expire. It returns false when the loop was not running.
func (s *Scheduler) Stop(ctx context.Context) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
	return true
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Tick immediately on start.
	s.ticker.Tick(ctx)

	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if ctx.Err() != nil {
				return
			}
			s.ticker.Tick(ctx)
			timer.Reset(s.interval())
		}
	}
}

func (s *Scheduler) interval() time.Duration {
	d := s.ticker.NextInterval()
	if d < minInterval {
		return minInterval
	}
	return d
}
