// Package stats aggregates counters over emitted fault events.
package stats

import (
	"sync"
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// FailingWindow is how recently an operation must have fired to be reported as failing.
const FailingWindow = time.Minute

// Aggregator keeps running totals since the last reset. A single mutex makes
// record, reset and snapshot linearizable.
type Aggregator struct {
	mu          sync.Mutex
	total       int64
	attempts    int64
	byService   map[string]int64
	byOperation map[string]int64
	byKind      map[types.FaultKind]int64
	bySeverity  map[types.Severity]int64
	bySource    map[types.EventSource]int64
	byPattern   map[types.PatternType]int64
	bursts      int64
	burstEvents int64
	lastByOp    map[string]time.Time
	startedAt   time.Time
	lastEventAt time.Time
}

// New creates an aggregator whose elapsed-time origin is now.
func New(now time.Time) *Aggregator {
	a := &Aggregator{}
	a.resetLocked(now)
	return a
}

// OperationKey joins service and operation as used in ByOperation.
func OperationKey(service, operation string) string {
	return service + "." + operation
}

// Attempt is one evaluated generation attempt.
type Attempt struct {
	// BurstStarted marks the first attempt seen in a new burst phase.
	BurstStarted bool
	// Event is what the attempt produced, nil when nothing fired.
	Event *types.ErrorEvent
}

// RecordAttempt counts one attempt together with its event, so a concurrent
// Reset never separates the two and TotalEvents never exceeds Attempts.
func (a *Aggregator) RecordAttempt(at Attempt) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.attempts++
	if at.BurstStarted {
		a.bursts++
	}
	if at.Event != nil {
		a.recordLocked(*at.Event)
	}
}

func (a *Aggregator) recordLocked(ev types.ErrorEvent) {
	key := OperationKey(ev.Service, ev.Operation)
	a.total++
	a.byService[ev.Service]++
	a.byOperation[key]++
	a.byKind[ev.FaultKind]++
	a.bySeverity[ev.Severity]++
	a.bySource[ev.Source]++
	a.byPattern[ev.Pattern]++
	if ev.Phase == types.PhaseBurst {
		a.burstEvents++
	}
	a.lastByOp[key] = ev.Timestamp
	if ev.Timestamp.After(a.lastEventAt) {
		a.lastEventAt = ev.Timestamp
	}
}

// Reset zeroes every counter and restarts the elapsed-time origin at now.
func (a *Aggregator) Reset(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked(now)
}

func (a *Aggregator) resetLocked(now time.Time) {
	a.total = 0
	a.attempts = 0
	a.byService = make(map[string]int64)
	a.byOperation = make(map[string]int64)
	a.byKind = make(map[types.FaultKind]int64)
	a.bySeverity = make(map[types.Severity]int64)
	a.bySource = make(map[types.EventSource]int64)
	a.byPattern = make(map[types.PatternType]int64)
	a.bursts = 0
	a.burstEvents = 0
	a.lastByOp = make(map[string]time.Time)
	a.startedAt = now
	a.lastEventAt = time.Time{}
}

// Snapshot returns a deep copy of the counters as of now.
func (a *Aggregator) Snapshot(now time.Time) types.Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := types.Statistics{
		TotalEvents: a.total,
		Attempts:    a.attempts,
		ByService:   make(map[string]int64, len(a.byService)),
		ByOperation: make(map[string]int64, len(a.byOperation)),
		ByFaultKind: make(map[types.FaultKind]int64, len(a.byKind)),
		BySeverity:  make(map[types.Severity]int64, len(a.bySeverity)),
		BySource:    make(map[types.EventSource]int64, len(a.bySource)),
		ByPattern:   make(map[types.PatternType]int64, len(a.byPattern)),
		StartedAt:   a.startedAt,

		BurstsTriggered: a.bursts,
		BurstEvents:     a.burstEvents,
	}
	for k, v := range a.byService {
		s.ByService[k] = v
	}
	for k, v := range a.byOperation {
		s.ByOperation[k] = v
	}
	for k, v := range a.byKind {
		s.ByFaultKind[k] = v
	}
	for k, v := range a.bySeverity {
		s.BySeverity[k] = v
	}
	for k, v := range a.bySource {
		s.BySource[k] = v
	}
	for k, v := range a.byPattern {
		s.ByPattern[k] = v
	}
	if !a.lastEventAt.IsZero() {
		last := a.lastEventAt
		s.LastEventAt = &last
	}

	elapsed := now.Sub(a.startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	s.ElapsedSeconds = elapsed
	if elapsed > 0 {
		s.EventsPerMinute = float64(a.total) / elapsed * 60
	}
	return s
}

// OperationStats reports per-operation counts and health for one service.
func (a *Aggregator) OperationStats(service string, operations []string, now time.Time) map[string]types.OperationStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]types.OperationStats, len(operations))
	for _, op := range operations {
		key := OperationKey(service, op)
		st := types.OperationStats{Events: a.byOperation[key], Health: types.HealthHealthy}
		if last, ok := a.lastByOp[key]; ok {
			l := last
			st.LastEventAt = &l
			if now.Sub(last) < FailingWindow {
				st.Health = types.HealthFailing
			}
		}
		out[op] = st
	}
	return out
}
