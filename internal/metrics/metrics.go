// Package metrics records faultline runtime instruments through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"

	"github.com/dwsmith1983/faultline/pkg/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName scopes every faultline instrument.
const MeterName = "github.com/dwsmith1983/faultline"

// Recorder holds the instruments. A nil *Recorder is a valid no-op.
type Recorder struct {
	attempts     metric.Int64Counter
	events       metric.Int64Counter
	rejected     metric.Int64Counter
	probability  metric.Float64Gauge
	sinkSent     metric.Int64Counter
	sinkFailures metric.Int64Counter
	sinkDropped  metric.Int64Counter
}

// NewRecorder creates the instruments on mp.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	m := mp.Meter(MeterName)
	r := &Recorder{}
	var err error

	if r.attempts, err = m.Int64Counter("faultline.attempts",
		metric.WithDescription("Generation attempts evaluated")); err != nil {
		return nil, fmt.Errorf("creating attempts counter: %w", err)
	}
	if r.events, err = m.Int64Counter("faultline.events",
		metric.WithDescription("Fault events emitted")); err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	if r.rejected, err = m.Int64Counter("faultline.triggers.rejected",
		metric.WithDescription("Manual triggers rejected before generation")); err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}
	if r.probability, err = m.Float64Gauge("faultline.effective_probability",
		metric.WithDescription("Effective fault probability of the latest attempt")); err != nil {
		return nil, fmt.Errorf("creating probability gauge: %w", err)
	}
	if r.sinkSent, err = m.Int64Counter("faultline.sink.sent",
		metric.WithDescription("Records delivered to a sink")); err != nil {
		return nil, fmt.Errorf("creating sink sent counter: %w", err)
	}
	if r.sinkFailures, err = m.Int64Counter("faultline.sink.failures",
		metric.WithDescription("Records a sink failed to deliver")); err != nil {
		return nil, fmt.Errorf("creating sink failure counter: %w", err)
	}
	if r.sinkDropped, err = m.Int64Counter("faultline.sink.dropped",
		metric.WithDescription("Records dropped because the dispatch queue was full")); err != nil {
		return nil, fmt.Errorf("creating sink dropped counter: %w", err)
	}
	return r, nil
}

// NewNop returns a recorder backed by a no-op meter provider.
func NewNop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider())
	return r
}

// Attempt counts one generation attempt and records its effective probability.
func (r *Recorder) Attempt(ctx context.Context, source types.EventSource, pattern types.PatternType, phase types.Phase, p float64, fired bool) {
	if r == nil {
		return
	}
	r.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", string(source)),
		attribute.Bool("fired", fired),
	))
	r.probability.Record(ctx, p, metric.WithAttributes(
		attribute.String("pattern", string(pattern)),
		attribute.String("phase", string(phase)),
	))
}

// Event counts one emitted fault event.
func (r *Recorder) Event(ctx context.Context, ev types.ErrorEvent) {
	if r == nil {
		return
	}
	r.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", ev.Service),
		attribute.String("fault_kind", string(ev.FaultKind)),
		attribute.String("severity", string(ev.Severity)),
		attribute.String("source", string(ev.Source)),
	))
}

// TriggerRejected counts a manual trigger that failed validation or lookup.
func (r *Recorder) TriggerRejected(ctx context.Context, reason string) {
	if r == nil {
		return
	}
	r.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SinkSent counts a delivered record.
func (r *Recorder) SinkSent(ctx context.Context, sink string) {
	if r == nil {
		return
	}
	r.sinkSent.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// SinkFailed counts a failed delivery.
func (r *Recorder) SinkFailed(ctx context.Context, sink string) {
	if r == nil {
		return
	}
	r.sinkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}

// SinkDropped counts a record dropped on a full queue.
func (r *Recorder) SinkDropped(ctx context.Context) {
	if r == nil {
		return
	}
	r.sinkDropped.Add(ctx, 1)
}
