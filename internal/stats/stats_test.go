package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func event(svc, op string, kind types.FaultKind, sev types.Severity, at time.Time) types.ErrorEvent {
	return types.ErrorEvent{
		Service:   svc,
		Operation: op,
		FaultKind: kind,
		Severity:  sev,
		Source:    types.SourceScheduled,
		Timestamp: at,
	}
}

func fire(a *Aggregator, ev types.ErrorEvent) {
	a.RecordAttempt(Attempt{Event: &ev})
}

func TestRecordAndSnapshot(t *testing.T) {
	a := New(t0)
	fire(a, event("UserService", "authenticate_user", types.FaultNameError, types.SeverityError, t0.Add(10*time.Second)))
	fire(a, event("UserService", "authenticate_user", types.FaultNameError, types.SeverityCritical, t0.Add(20*time.Second)))
	fire(a, event("AuthService", "refresh_session", types.FaultConnectionError, types.SeverityWarning, t0.Add(30*time.Second)))
	for i := 0; i < 7; i++ {
		a.RecordAttempt(Attempt{})
	}

	s := a.Snapshot(t0.Add(60 * time.Second))
	assert.Equal(t, int64(3), s.TotalEvents)
	assert.Equal(t, int64(10), s.Attempts)
	assert.Equal(t, int64(2), s.ByService["UserService"])
	assert.Equal(t, int64(2), s.ByOperation["UserService.authenticate_user"])
	assert.Equal(t, int64(1), s.ByFaultKind[types.FaultConnectionError])
	assert.Equal(t, int64(1), s.BySeverity[types.SeverityCritical])
	assert.Equal(t, int64(3), s.BySource[types.SourceScheduled])
	require.NotNil(t, s.LastEventAt)
	assert.Equal(t, t0.Add(30*time.Second), *s.LastEventAt)
	assert.InDelta(t, 60.0, s.ElapsedSeconds, 1e-9)
	assert.InDelta(t, 3.0, s.EventsPerMinute, 1e-9)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	a := New(t0)
	fire(a, event("UserService", "get_user_profile", types.FaultKeyError, types.SeverityError, t0))
	s := a.Snapshot(t0)
	s.ByService["UserService"] = 99

	assert.Equal(t, int64(1), a.Snapshot(t0).ByService["UserService"])
}

func TestReset(t *testing.T) {
	a := New(t0)
	fire(a, event("UserService", "get_user_profile", types.FaultKeyError, types.SeverityError, t0))
	a.RecordAttempt(Attempt{BurstStarted: true})

	now := t0.Add(time.Hour)
	a.Reset(now)
	s := a.Snapshot(now)
	assert.Zero(t, s.TotalEvents)
	assert.Zero(t, s.Attempts)
	assert.Empty(t, s.ByService)
	assert.Empty(t, s.ByOperation)
	assert.Empty(t, s.ByPattern)
	assert.Zero(t, s.BurstsTriggered)
	assert.Nil(t, s.LastEventAt)
	assert.Equal(t, now, s.StartedAt)
	assert.Zero(t, s.ElapsedSeconds)
	assert.Zero(t, s.EventsPerMinute)
}

func TestResetUnderConcurrentRecords(t *testing.T) {
	a := New(t0)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					fire(a, event("PaymentService", "validate_card", types.FaultIndexError, types.SeverityError, t0))
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		a.Reset(t0)
		s := a.Snapshot(t0)
		// Snapshots never observe a partial record: every per-dimension sum matches the total.
		var byService int64
		for _, v := range s.ByService {
			byService += v
		}
		assert.Equal(t, s.TotalEvents, byService)
		// Each attempt fires, so a reset can never leave more events than attempts.
		assert.Equal(t, s.Attempts, s.TotalEvents)
	}
	close(stop)
	wg.Wait()

	a.Reset(t0)
	s := a.Snapshot(t0)
	assert.Zero(t, s.TotalEvents)
	assert.Zero(t, s.Attempts)
	assert.Zero(t, s.ElapsedSeconds)
}

func TestPatternAndBurstCounters(t *testing.T) {
	a := New(t0)
	steady := event("UserService", "authenticate_user", types.FaultNameError, types.SeverityError, t0)
	steady.Pattern, steady.Phase = types.PatternSteady, types.PhaseSteady
	quiet := event("AuthService", "refresh_session", types.FaultConnectionError, types.SeverityError, t0)
	quiet.Pattern, quiet.Phase = types.PatternBurst, types.PhaseQuiet
	burst := quiet
	burst.Phase = types.PhaseBurst

	fire(a, steady)
	fire(a, quiet)
	a.RecordAttempt(Attempt{BurstStarted: true, Event: &burst})
	fire(a, burst)
	a.RecordAttempt(Attempt{BurstStarted: true})
	a.RecordAttempt(Attempt{})

	s := a.Snapshot(t0)
	assert.Equal(t, map[types.PatternType]int64{types.PatternSteady: 1, types.PatternBurst: 3}, s.ByPattern)
	assert.Equal(t, int64(2), s.BurstsTriggered)
	assert.Equal(t, int64(2), s.BurstEvents)
	assert.Equal(t, int64(6), s.Attempts)
	assert.Equal(t, int64(4), s.TotalEvents)
}

func TestOperationStats(t *testing.T) {
	a := New(t0)
	fire(a, event("UserService", "authenticate_user", types.FaultNameError, types.SeverityError, t0))
	fire(a, event("UserService", "get_user_profile", types.FaultKeyError, types.SeverityError, t0.Add(-2*time.Minute)))

	ops := []string{"authenticate_user", "get_user_profile", "update_user_data"}
	got := a.OperationStats("UserService", ops, t0.Add(30*time.Second))

	assert.Equal(t, types.HealthFailing, got["authenticate_user"].Health)
	assert.Equal(t, int64(1), got["authenticate_user"].Events)
	assert.Equal(t, types.HealthHealthy, got["get_user_profile"].Health)
	require.NotNil(t, got["get_user_profile"].LastEventAt)
	assert.Equal(t, types.HealthHealthy, got["update_user_data"].Health)
	assert.Nil(t, got["update_user_data"].LastEventAt)
	assert.Zero(t, got["update_user_data"].Events)
}
