package config

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceSet map[string]bool

func (s serviceSet) Has(name string) bool { return s[name] }

var fleet = serviceSet{"UserService": true, "PaymentService": true, "AuthService": true}

func ptr[T any](v T) *T { return &v }

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(types.DefaultGenerationConfig(), fleet)
	require.NoError(t, err)
	return s
}

func TestNewStore_RejectsInvalid(t *testing.T) {
	cfg := types.DefaultGenerationConfig()
	cfg.EnabledServices = []string{"GhostService"}
	_, err := NewStore(cfg, fleet)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestUpdate_Partial(t *testing.T) {
	s := newStore(t)
	cfg, changed, err := s.Update(types.ConfigPatch{
		ErrorProbability: ptr(0.4),
		EnabledServices:  ptr([]string{"UserService", "AuthService", "UserService"}),
		Burst:            &types.BurstPatch{BurstSeconds: ptr(4.0)},
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0.4, cfg.ErrorProbability)
	assert.Equal(t, 0.15, cfg.WarningProbability)
	assert.Equal(t, []string{"AuthService", "UserService"}, cfg.EnabledServices)
	assert.Equal(t, 4.0, cfg.Burst.BurstSeconds)
	assert.Equal(t, 10.0, cfg.Burst.QuietSeconds)
	assert.Equal(t, cfg, s.Get())
}

func TestUpdate_PatternChange(t *testing.T) {
	s := newStore(t)
	_, changed, err := s.Update(types.ConfigPatch{PatternType: ptr(types.PatternRamp)})
	require.NoError(t, err)
	assert.True(t, changed)

	_, changed, err = s.Update(types.ConfigPatch{PatternType: ptr(types.PatternRamp)})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestUpdate_RejectsOutOfRangeAndKeepsPrior(t *testing.T) {
	s := newStore(t)
	before := s.Get()

	_, _, err := s.Update(types.ConfigPatch{ErrorProbability: ptr(1.5)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Equal(t, 0.05, s.Get().ErrorProbability)
	assert.Equal(t, before, s.Get())
}

func TestRevisionAdvancesOnAcceptedChanges(t *testing.T) {
	s := newStore(t)
	assert.Zero(t, s.Snapshot().Revision)

	cfg, _, err := s.Update(types.ConfigPatch{ErrorProbability: ptr(0.2)})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.Revision)

	_, _, err = s.Update(types.ConfigPatch{ErrorProbability: ptr(2.0)})
	require.Error(t, err)
	assert.Equal(t, uint64(1), s.Snapshot().Revision)

	cfg, _, err = s.Replace(types.DefaultGenerationConfig())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cfg.Revision)
}

func TestUpdate_RejectsIntervalPastDurationRange(t *testing.T) {
	s := newStore(t)
	before := s.Get()

	_, _, err := s.Update(types.ConfigPatch{IntervalSeconds: ptr(1e12)})
	require.Error(t, err)
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "generation_interval_seconds", verr.Fields[0].Field)
	assert.Equal(t, before, s.Get())
	assert.Equal(t, 2*time.Second, s.Snapshot().Interval())

	_, _, err = s.Update(types.ConfigPatch{Burst: &types.BurstPatch{QuietSeconds: ptr(types.MaxIntervalSeconds)}})
	require.Error(t, err)

	// The longest representable period is still accepted.
	cfg, _, err := s.Update(types.ConfigPatch{IntervalSeconds: ptr(86400.0 * 365)})
	require.NoError(t, err)
	assert.Equal(t, 365*24*time.Hour, cfg.Interval())
}

func TestInterval_Saturates(t *testing.T) {
	cfg := types.DefaultGenerationConfig()
	cfg.IntervalSeconds = 1e12
	assert.Equal(t, time.Duration(math.MaxInt64), cfg.Interval())
	cfg.IntervalSeconds = math.Inf(1)
	assert.Equal(t, time.Duration(math.MaxInt64), cfg.Interval())
	cfg.IntervalSeconds = 0.25
	assert.Equal(t, 250*time.Millisecond, cfg.Interval())
}

func TestUpdate_ListsEveryOffendingField(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Update(types.ConfigPatch{
		ErrorProbability:    ptr(-0.1),
		CriticalProbability: ptr(math.NaN()),
		IntervalSeconds:     ptr(0.0),
		PatternType:         ptr(types.PatternType("sawtooth")),
		EnabledServices:     ptr([]string{"GhostService"}),
		ServiceOverrides:    ptr(map[string]float64{"UserService": 2}),
		FaultOverrides:      ptr(map[types.FaultKind]float64{"Boom": 0.5}),
		Ramp:                &types.RampPatch{DurationSeconds: ptr(-1.0)},
	})
	require.Error(t, err)

	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{
		"error_probability",
		"critical_probability",
		"generation_interval_seconds",
		"pattern_type",
		"enabled_services",
		"service_overrides.UserService",
		"fault_overrides.Boom",
		"ramp.duration_seconds",
	}, fields)
	assert.Equal(t, types.DefaultGenerationConfig().ErrorProbability, s.Get().ErrorProbability)
}

func TestUpdate_TimeShaping(t *testing.T) {
	s := newStore(t)
	cfg, _, err := s.Update(types.ConfigPatch{TimeShaping: &types.TimeShapingPatch{Enabled: ptr(true), Jitter: ptr(0.1)}})
	require.NoError(t, err)
	assert.True(t, cfg.TimeShaping.Enabled)
	assert.Equal(t, 0.1, cfg.TimeShaping.Jitter)
	assert.Equal(t, 0.7, cfg.TimeShaping.PeakFactor)
	assert.Len(t, cfg.TimeShaping.PeakHours, 2)

	_, _, err = s.Update(types.ConfigPatch{TimeShaping: &types.TimeShapingPatch{
		PeakHours:  ptr([]types.HourRange{{Start: 12, End: 9}}),
		PeakFactor: ptr(0.0),
		Jitter:     ptr(1.0),
	}})
	require.Error(t, err)
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"time_shaping.peak_hours[0]", "time_shaping.peak_factor", "time_shaping.jitter"}, fields)
	assert.Equal(t, 0.1, s.Get().TimeShaping.Jitter)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Update(types.ConfigPatch{ServiceOverrides: ptr(map[string]float64{"UserService": 0.5})})
	require.NoError(t, err)

	cfg := s.Get()
	cfg.ServiceOverrides["UserService"] = 0.9
	cfg.EnabledServices = append(cfg.EnabledServices, "x")

	assert.Equal(t, 0.5, s.Get().ServiceOverrides["UserService"])
	assert.Empty(t, s.Get().EnabledServices)
}

func TestUpdate_AtomicUnderConcurrentReaders(t *testing.T) {
	s := newStore(t)

	// Writers flip between two internally consistent configurations; readers
	// must never observe a mix of the two.
	a := types.ConfigPatch{ErrorProbability: ptr(0.1), WarningProbability: ptr(0.1), CriticalProbability: ptr(0.1)}
	b := types.ConfigPatch{ErrorProbability: ptr(0.9), WarningProbability: ptr(0.9), CriticalProbability: ptr(0.9)}
	_, _, err := s.Update(a)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					cfg := s.Get()
					if cfg.ErrorProbability != cfg.WarningProbability || cfg.WarningProbability != cfg.CriticalProbability {
						t.Errorf("torn read: %+v", cfg)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		p := a
		if i%2 == 0 {
			p = b
		}
		_, _, err := s.Update(p)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestReplace(t *testing.T) {
	s := newStore(t)
	next := types.DefaultGenerationConfig()
	next.PatternType = types.PatternRandom
	next.EnabledServices = []string{"UserService"}

	cfg, changed, err := s.Replace(next)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"UserService"}, cfg.EnabledServices)

	bad := types.DefaultGenerationConfig()
	bad.WarningProbability = 3
	_, _, err = s.Replace(bad)
	require.Error(t, err)
	assert.Equal(t, types.PatternRandom, s.Get().PatternType)
}
