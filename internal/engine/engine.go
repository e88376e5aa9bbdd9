// Package engine implements the fault generation attempt shared by scheduled
// ticks and manual triggers.
package engine

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/internal/config"
	"github.com/dwsmith1983/faultline/internal/metrics"
	"github.com/dwsmith1983/faultline/internal/pattern"
	"github.com/dwsmith1983/faultline/internal/registry"
	"github.com/dwsmith1983/faultline/internal/stats"
	"github.com/dwsmith1983/faultline/pkg/types"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Emitter receives every generated event. Implementations must not block.
type Emitter interface {
	Dispatch(types.ErrorEvent)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed makes every random choice reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = &seed }
}

// WithEmitter sets where events are pushed after they are recorded.
func WithEmitter(em Emitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer sets the tracer used for attempt spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// Engine owns the generation attempt. All shared state lives in injected
// components that are individually safe for concurrent use.
type Engine struct {
	registry *registry.Registry
	catalog  *catalog.Catalog
	store    *config.Store
	pattern  *pattern.Controller
	stats    *stats.Aggregator

	emitter  Emitter
	recorder *metrics.Recorder
	tracer   trace.Tracer
	logger   *slog.Logger
	now      func() time.Time
	seed     *uint64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates an Engine over the given fleet, catalog and configuration store.
func New(reg *registry.Registry, cat *catalog.Catalog, store *config.Store, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		catalog:  cat,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		tracer:   noop.NewTracerProvider().Tracer(metrics.TracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	var s1, s2 uint64
	if e.seed != nil {
		s1, s2 = *e.seed, *e.seed^0x9e3779b97f4a7c15
	} else {
		s1, s2 = rand.Uint64(), rand.Uint64()
	}
	e.rng = rand.New(rand.NewPCG(s1, s2))
	// The walk gets its own stream so pattern steps do not shift selection draws.
	e.pattern = pattern.NewController(rand.New(rand.NewPCG(s2, s1)))

	now := e.now()
	e.stats = stats.New(now)
	e.pattern.Reset(*store.Snapshot(), now)
	return e
}

// Interval returns the configured scheduler period.
func (e *Engine) Interval() time.Duration {
	return e.store.Snapshot().Interval()
}

// NextInterval returns the delay before the next scheduled tick: the
// configured period, shaped by time of day when time shaping is enabled.
func (e *Engine) NextInterval() time.Duration {
	cfg := e.store.Snapshot()
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return pattern.ShapeInterval(cfg.Interval(), cfg.TimeShaping, e.now(), e.rng)
}

// Tick runs one scheduled attempt. It never fails outward: an empty
// selection or an internal inconsistency is a no-event tick.
func (e *Engine) Tick(ctx context.Context) *types.ErrorEvent {
	ctx, span := e.tracer.Start(ctx, "engine.tick")
	defer span.End()

	cfg := e.store.Snapshot()
	service, op, ok := e.pickScheduled(cfg)
	if !ok {
		e.logger.Debug("no service eligible for generation", "enabled", cfg.EnabledServices)
		return nil
	}

	now := e.now()
	base := baseProbability(cfg, service, op.FaultKind)
	reading := e.pattern.EffectiveProbability(*cfg, base, now)

	fired := e.draw() < reading.Probability
	e.recorder.Attempt(ctx, types.SourceScheduled, reading.Pattern, reading.Phase, reading.Probability, fired)
	if !fired {
		e.record(reading, nil)
		return nil
	}

	ev, err := e.build(cfg, service, op, types.SourceScheduled, reading, now)
	if err != nil {
		e.record(reading, nil)
		e.logger.Debug("scheduled generation skipped", "service", service, "operation", op.Name, "error", err)
		return nil
	}
	e.record(reading, &ev)
	e.publish(ctx, ev)
	return &ev
}

// Trigger forces one fault. Unset request fields are chosen at random.
// Malformed requests fail before any state is touched.
func (e *Engine) Trigger(ctx context.Context, req types.TriggerRequest) (*types.ErrorEvent, error) {
	ctx, span := e.tracer.Start(ctx, "engine.trigger")
	defer span.End()

	cfg := e.store.Snapshot()
	service, op, err := e.resolve(cfg, req)
	if err != nil {
		span.RecordError(err)
		reason := "validation"
		if isNotFound(err) {
			reason = "not_found"
		}
		e.recorder.TriggerRejected(ctx, reason)
		e.logger.Warn("trigger rejected", "service", req.Service, "operation", req.Operation, "fault_kind", req.FaultKind, "error", err)
		return nil, err
	}

	now := e.now()
	base := baseProbability(cfg, service, op.FaultKind)
	reading := e.pattern.EffectiveProbability(*cfg, base, now)
	e.recorder.Attempt(ctx, types.SourceManual, reading.Pattern, reading.Phase, reading.Probability, true)

	ev, err := e.build(cfg, service, op, types.SourceManual, reading, now)
	if err != nil {
		e.record(reading, nil)
		return nil, err
	}
	e.record(reading, &ev)
	e.publish(ctx, ev)
	return &ev, nil
}

// record counts the attempt and its event, if any, in one aggregator call.
func (e *Engine) record(reading pattern.Reading, ev *types.ErrorEvent) {
	e.stats.RecordAttempt(stats.Attempt{
		BurstStarted: reading.Phase == types.PhaseBurst && reading.Entered,
		Event:        ev,
	})
}

func (e *Engine) build(cfg *types.GenerationConfig, service string, op types.OperationDescriptor, source types.EventSource, reading pattern.Reading, now time.Time) (types.ErrorEvent, error) {
	site := catalog.Site{Service: service, Operation: op.Name}

	e.rngMu.Lock()
	sev := severity(cfg, e.rng)
	payload, err := e.catalog.Generate(op.FaultKind, site, e.rng)
	e.rngMu.Unlock()
	if err != nil {
		return types.ErrorEvent{}, err
	}

	return types.ErrorEvent{
		ID:                   newID(now),
		Timestamp:            now.UTC(),
		Service:              service,
		Operation:            op.Name,
		FaultKind:            payload.FaultKind,
		Severity:             sev,
		Message:              payload.Message,
		StackTrace:           payload.StackTrace,
		Frames:               payload.Frames,
		Source:               source,
		Pattern:              reading.Pattern,
		Phase:                reading.Phase,
		EffectiveProbability: reading.Probability,
	}, nil
}

func (e *Engine) publish(ctx context.Context, ev types.ErrorEvent) {
	if e.emitter != nil {
		e.emitter.Dispatch(ev)
	}
	e.recorder.Event(ctx, ev)
	e.logger.Debug("fault generated",
		"id", ev.ID,
		"service", ev.Service,
		"operation", ev.Operation,
		"fault_kind", ev.FaultKind,
		"severity", ev.Severity,
		"source", ev.Source,
		"probability", ev.EffectiveProbability,
	)
}

// severity draws critical first, then warning, else error.
func severity(cfg *types.GenerationConfig, rng *rand.Rand) types.Severity {
	if rng.Float64() < cfg.CriticalProbability {
		return types.SeverityCritical
	}
	if rng.Float64() < cfg.WarningProbability {
		return types.SeverityWarning
	}
	return types.SeverityError
}

// baseProbability applies the fault override, then the service override,
// then the global rate.
func baseProbability(cfg *types.GenerationConfig, service string, kind types.FaultKind) float64 {
	if p, ok := cfg.FaultOverrides[kind]; ok {
		return p
	}
	if p, ok := cfg.ServiceOverrides[service]; ok {
		return p
	}
	return cfg.ErrorProbability
}

func (e *Engine) intN(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}

func (e *Engine) draw() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}
