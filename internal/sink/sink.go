// Package sink delivers generated fault events to log destinations.
package sink

import (
	"context"
	"os"
	"time"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// Sink is a log record destination.
type Sink interface {
	Send(ctx context.Context, rec types.LogRecord) error
	Name() string
}

// Thread names carried in records, matching the simulated product's workers.
const (
	ThreadScheduled = "ErrorGenerationThread"
	ThreadManual    = "MainThread"
)

const defaultTimeout = 10 * time.Second

var hostname = func() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}()

// NewRecord encodes an event in the structured log format.
func NewRecord(ev types.ErrorEvent) types.LogRecord {
	thread := ThreadScheduled
	if ev.Source == types.SourceManual {
		thread = ThreadManual
	}
	rec := types.LogRecord{
		Timestamp:     ev.Timestamp.UTC().Format(time.RFC3339Nano),
		Level:         ev.Severity.Level(),
		Service:       ev.Service,
		Operation:     ev.Operation,
		Message:       ev.Message,
		Hostname:      hostname,
		Thread:        thread,
		ErrorType:     ev.FaultKind,
		Severity:      ev.Severity,
		CorrelationID: ev.ID,
		StackTrace:    ev.StackTrace,
		Source:        ev.Source,
		Pattern:       ev.Pattern,
	}

	payload := types.Payload{FaultKind: ev.FaultKind, Frames: ev.Frames}
	if f, ok := catalog.OperationFrame(payload, catalog.Site{Service: ev.Service, Operation: ev.Operation}); ok {
		rec.FunctionName = f.Function
		rec.LineNumber = f.Line
	}
	return rec
}

// minSeverity drops records below a severity threshold before they reach the
// wrapped sink.
type minSeverity struct {
	Sink
	min types.Severity
}

// WithMinSeverity wraps s so records below min are silently skipped.
// An empty min returns s unchanged.
func WithMinSeverity(s Sink, min types.Severity) Sink {
	if min == "" || min == types.SeverityInfo {
		return s
	}
	return &minSeverity{Sink: s, min: min}
}

func (m *minSeverity) Send(ctx context.Context, rec types.LogRecord) error {
	if rec.Severity.Rank() < m.min.Rank() {
		return nil
	}
	return m.Sink.Send(ctx, rec)
}

// Close forwards to the wrapped sink when it holds resources.
func (m *minSeverity) Close() error {
	if c, ok := m.Sink.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func parseTimeout(s string) time.Duration {
	if s == "" {
		return defaultTimeout
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}
