package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dwsmith1983/faultline/internal/metrics"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// DefaultBuffer is the queue length used when none is configured.
const DefaultBuffer = 1024

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder for delivery counters.
func WithRecorder(r *metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithBuffer sets the queue length.
func WithBuffer(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.buffer = n
		}
	}
}

// Dispatcher fans records out to sinks on its own goroutine. Dispatch never
// blocks: when the queue is full the record is dropped and counted.
type Dispatcher struct {
	sinks    []Sink
	logger   *slog.Logger
	recorder *metrics.Recorder
	buffer   int

	mu      sync.RWMutex
	queue   chan types.LogRecord
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher creates a dispatcher over the given sinks.
func NewDispatcher(sinks []Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sinks:  sinks,
		logger: slog.Default(),
		buffer: DefaultBuffer,
	}
	for _, o := range opts {
		o(d)
	}
	d.queue = make(chan types.LogRecord, d.buffer)
	return d
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	out := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		out = append(out, s.Name())
	}
	return out
}

// Start launches the delivery goroutine. Calling it twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.run(ctx)
	d.logger.Info("sink dispatcher started", "sinks", d.Sinks(), "buffer", d.buffer)
}

// Dispatch queues an event for delivery.
func (d *Dispatcher) Dispatch(ev types.ErrorEvent) {
	rec := NewRecord(ev)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- rec:
	default:
		d.recorder.SinkDropped(context.Background())
		d.logger.Warn("sink queue full, dropping record", "correlation_id", rec.CorrelationID)
	}
}

// Close stops accepting records, drains the queue and closes sinks that hold
// resources. If ctx expires first, pending deliveries are cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started, cancel, done := d.started, d.cancel, d.done
	d.mu.Unlock()

	var errs []error
	if started {
		select {
		case <-done:
		case <-ctx.Done():
			cancel()
			<-done
			errs = append(errs, fmt.Errorf("draining sink queue: %w", ctx.Err()))
		}
		cancel()
	}

	for _, s := range d.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s sink: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for rec := range d.queue {
		d.deliver(ctx, rec)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, rec types.LogRecord) {
	for _, s := range d.sinks {
		if err := s.Send(ctx, rec); err != nil {
			d.recorder.SinkFailed(ctx, s.Name())
			d.logger.Error("sink delivery failed", "sink", s.Name(), "correlation_id", rec.CorrelationID, "error", err)
			continue
		}
		d.recorder.SinkSent(ctx, s.Name())
	}
}
