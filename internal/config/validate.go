package config

import (
	"fmt"
	"sort"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// ServiceSet reports whether a service name is known.
type ServiceSet interface {
	Has(service string) bool
}

// ValidateGeneration checks every field of cfg and returns a
// *types.ValidationError listing all offending fields, or nil. Service
// names are only checked when services is non-nil.
func ValidateGeneration(cfg types.GenerationConfig, services ServiceSet) error {
	verr := &types.ValidationError{}

	probability(verr, "error_probability", cfg.ErrorProbability)
	probability(verr, "warning_probability", cfg.WarningProbability)
	probability(verr, "critical_probability", cfg.CriticalProbability)

	period(verr, "generation_interval_seconds", cfg.IntervalSeconds, types.MaxIntervalSeconds)
	if !cfg.PatternType.Valid() {
		verr.Add("pattern_type", "unknown pattern %q", cfg.PatternType)
	}

	if services != nil {
		for _, s := range cfg.EnabledServices {
			if !services.Has(s) {
				verr.Add("enabled_services", "unknown service %q", s)
			}
		}
	}
	for _, svc := range sortedKeys(cfg.ServiceOverrides) {
		p := cfg.ServiceOverrides[svc]
		if services != nil && !services.Has(svc) {
			verr.Add("service_overrides."+svc, "unknown service")
		}
		probability(verr, "service_overrides."+svc, p)
	}
	for _, kind := range sortedKeys(cfg.FaultOverrides) {
		p := cfg.FaultOverrides[kind]
		if !kind.Valid() {
			verr.Add("fault_overrides."+string(kind), "unknown fault kind")
		}
		probability(verr, "fault_overrides."+string(kind), p)
	}

	// Half the range each, so a full quiet plus burst cycle still fits.
	period(verr, "burst.quiet_seconds", cfg.Burst.QuietSeconds, types.MaxIntervalSeconds/2)
	period(verr, "burst.burst_seconds", cfg.Burst.BurstSeconds, types.MaxIntervalSeconds/2)
	probability(verr, "burst.quiet_probability", cfg.Burst.QuietProbability)
	probability(verr, "burst.burst_probability", cfg.Burst.BurstProbability)

	probability(verr, "ramp.floor_probability", cfg.Ramp.FloorProbability)
	probability(verr, "ramp.ceiling_probability", cfg.Ramp.CeilingProbability)
	period(verr, "ramp.duration_seconds", cfg.Ramp.DurationSeconds, types.MaxIntervalSeconds)

	if !(cfg.RandomWalk.Step >= 0) {
		verr.Add("random_walk.step", "must not be negative, got %v", cfg.RandomWalk.Step)
	}
	probability(verr, "random_walk.max_deviation", cfg.RandomWalk.MaxDeviation)

	ts := cfg.TimeShaping
	for i, r := range ts.PeakHours {
		if !(r.Start >= 0 && r.Start < r.End && r.End <= 24) {
			verr.Add(fmt.Sprintf("time_shaping.peak_hours[%d]", i), "must satisfy 0 <= start < end <= 24, got [%d, %d)", r.Start, r.End)
		}
	}
	if !(ts.PeakFactor > 0 && ts.PeakFactor <= maxShapingFactor) {
		verr.Add("time_shaping.peak_factor", "must be within (0, %v], got %v", maxShapingFactor, ts.PeakFactor)
	}
	reduction(verr, "time_shaping.night_reduction", ts.NightReduction)
	reduction(verr, "time_shaping.weekend_reduction", ts.WeekendReduction)
	if !(ts.Jitter >= 0 && ts.Jitter < 1) {
		verr.Add("time_shaping.jitter", "must be within [0, 1), got %v", ts.Jitter)
	}

	return verr.OrNil()
}

// maxShapingFactor bounds each time shaping multiplier.
const maxShapingFactor = 10

func reduction(verr *types.ValidationError, field string, r float64) {
	if !(r >= 0 && r <= maxShapingFactor) {
		verr.Add(field, "must be within [0, %v], got %v", maxShapingFactor, r)
	}
}

// period rejects non-positive lengths and those too long for a time.Duration.
func period(verr *types.ValidationError, field string, s, limit float64) {
	switch {
	case !(s > 0):
		verr.Add(field, "must be greater than 0, got %v", s)
	case s > limit:
		verr.Add(field, "must be at most %v, got %v", limit, s)
	}
}

// probability rejects values outside [0, 1], NaN included.
func probability(verr *types.ValidationError, field string, p float64) {
	if !(p >= 0 && p <= 1) {
		verr.Add(field, "must be within [0, 1], got %v", p)
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
