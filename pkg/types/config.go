package types

import (
	"math"
	"sort"
	"time"
)

// MaxIntervalSeconds is the longest scheduler period a time.Duration can hold.
const MaxIntervalSeconds = float64(math.MaxInt64) / float64(time.Second)

// BurstConfig shapes the burst pattern: long quiet phases broken by short bursts.
type BurstConfig struct {
	QuietSeconds     float64 `yaml:"quiet_seconds" json:"quiet_seconds"`
	BurstSeconds     float64 `yaml:"burst_seconds" json:"burst_seconds"`
	QuietProbability float64 `yaml:"quiet_probability" json:"quiet_probability"`
	BurstProbability float64 `yaml:"burst_probability" json:"burst_probability"`
}

// RampConfig shapes the ramp pattern: linear rise from floor to ceiling, then hold.
type RampConfig struct {
	FloorProbability   float64 `yaml:"floor_probability" json:"floor_probability"`
	CeilingProbability float64 `yaml:"ceiling_probability" json:"ceiling_probability"`
	DurationSeconds    float64 `yaml:"duration_seconds" json:"duration_seconds"`
}

// RandomWalkConfig bounds the random pattern's drift around the base probability.
type RandomWalkConfig struct {
	Step         float64 `yaml:"step" json:"step"`
	MaxDeviation float64 `yaml:"max_deviation" json:"max_deviation"`
}

// HourRange is a half-open span of hours of the day, [Start, End).
type HourRange struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// TimeShapingConfig stretches or compresses the scheduler period by the
// local wall-clock time, the way production traffic peaks and idles.
type TimeShapingConfig struct {
	Enabled   bool        `yaml:"enabled" json:"enabled"`
	PeakHours []HourRange `yaml:"peak_hours" json:"peak_hours"`
	// PeakFactor multiplies the period during peak hours.
	PeakFactor float64 `yaml:"peak_factor" json:"peak_factor"`
	// The period grows by 1+NightReduction between 22:00 and 06:00, and by
	// 1+WeekendReduction on Saturday and Sunday.
	NightReduction   float64 `yaml:"night_reduction" json:"night_reduction"`
	WeekendReduction float64 `yaml:"weekend_reduction" json:"weekend_reduction"`
	// Jitter spreads the period uniformly over [1-Jitter, 1+Jitter].
	Jitter float64 `yaml:"jitter" json:"jitter"`
}

// DefaultTimeShaping returns the shaping used once enabled without tuning.
func DefaultTimeShaping() TimeShapingConfig {
	return TimeShapingConfig{
		PeakHours:        []HourRange{{Start: 9, End: 12}, {Start: 14, End: 17}},
		PeakFactor:       0.7,
		NightReduction:   0.7,
		WeekendReduction: 0.5,
		Jitter:           0.2,
	}
}

// GenerationConfig is the live tuning of the generation engine.
type GenerationConfig struct {
	ErrorProbability    float64               `yaml:"error_probability" json:"error_probability"`
	WarningProbability  float64               `yaml:"warning_probability" json:"warning_probability"`
	CriticalProbability float64               `yaml:"critical_probability" json:"critical_probability"`
	IntervalSeconds     float64               `yaml:"generation_interval_seconds" json:"generation_interval_seconds"`
	EnabledServices     []string              `yaml:"enabled_services" json:"enabled_services"`
	PatternType         PatternType           `yaml:"pattern_type" json:"pattern_type"`
	ServiceOverrides    map[string]float64    `yaml:"service_overrides,omitempty" json:"service_overrides,omitempty"`
	FaultOverrides      map[FaultKind]float64 `yaml:"fault_overrides,omitempty" json:"fault_overrides,omitempty"`
	Burst               BurstConfig           `yaml:"burst" json:"burst"`
	Ramp                RampConfig            `yaml:"ramp" json:"ramp"`
	RandomWalk          RandomWalkConfig      `yaml:"random_walk" json:"random_walk"`
	TimeShaping         TimeShapingConfig     `yaml:"time_shaping" json:"time_shaping"`

	// Revision increases with every change the store accepts.
	Revision uint64 `yaml:"-" json:"-"`
}

// DefaultGenerationConfig returns the out-of-the-box tuning.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		ErrorProbability:    0.05,
		WarningProbability:  0.15,
		CriticalProbability: 0.01,
		IntervalSeconds:     2,
		EnabledServices:     []string{},
		PatternType:         PatternSteady,
		Burst: BurstConfig{
			QuietSeconds:     10,
			BurstSeconds:     2,
			QuietProbability: 0.01,
			BurstProbability: 0.9,
		},
		Ramp: RampConfig{
			FloorProbability:   0,
			CeilingProbability: 0.5,
			DurationSeconds:    300,
		},
		RandomWalk: RandomWalkConfig{
			Step:         0.02,
			MaxDeviation: 0.1,
		},
		TimeShaping: DefaultTimeShaping(),
	}
}

// Interval returns the scheduler period as a duration, saturating at the
// largest representable one.
func (c GenerationConfig) Interval() time.Duration {
	return SecondsToDuration(c.IntervalSeconds)
}

// SecondsToDuration converts s to a duration without overflowing. Values past
// either end of the range saturate; NaN maps to zero.
func SecondsToDuration(s float64) time.Duration {
	switch {
	case s != s:
		return 0
	case s >= MaxIntervalSeconds:
		return time.Duration(math.MaxInt64)
	case s <= -MaxIntervalSeconds:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(s * float64(time.Second))
}

// Clone returns a deep copy so callers never share map or slice storage.
func (c GenerationConfig) Clone() GenerationConfig {
	out := c
	out.EnabledServices = append([]string{}, c.EnabledServices...)
	if c.ServiceOverrides != nil {
		out.ServiceOverrides = make(map[string]float64, len(c.ServiceOverrides))
		for k, v := range c.ServiceOverrides {
			out.ServiceOverrides[k] = v
		}
	}
	if c.FaultOverrides != nil {
		out.FaultOverrides = make(map[FaultKind]float64, len(c.FaultOverrides))
		for k, v := range c.FaultOverrides {
			out.FaultOverrides[k] = v
		}
	}
	out.TimeShaping.PeakHours = append([]HourRange(nil), c.TimeShaping.PeakHours...)
	return out
}

// ServiceEnabled reports whether service participates in scheduled selection.
func (c GenerationConfig) ServiceEnabled(service string) bool {
	if len(c.EnabledServices) == 0 {
		return true
	}
	for _, s := range c.EnabledServices {
		if s == service {
			return true
		}
	}
	return false
}

// NormalizeServices sorts and deduplicates a service list.
func NormalizeServices(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// BurstPatch is a partial BurstConfig.
type BurstPatch struct {
	QuietSeconds     *float64 `json:"quiet_seconds,omitempty" yaml:"quiet_seconds,omitempty"`
	BurstSeconds     *float64 `json:"burst_seconds,omitempty" yaml:"burst_seconds,omitempty"`
	QuietProbability *float64 `json:"quiet_probability,omitempty" yaml:"quiet_probability,omitempty"`
	BurstProbability *float64 `json:"burst_probability,omitempty" yaml:"burst_probability,omitempty"`
}

// RampPatch is a partial RampConfig.
type RampPatch struct {
	FloorProbability   *float64 `json:"floor_probability,omitempty" yaml:"floor_probability,omitempty"`
	CeilingProbability *float64 `json:"ceiling_probability,omitempty" yaml:"ceiling_probability,omitempty"`
	DurationSeconds    *float64 `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
}

// RandomWalkPatch is a partial RandomWalkConfig.
type RandomWalkPatch struct {
	Step         *float64 `json:"step,omitempty" yaml:"step,omitempty"`
	MaxDeviation *float64 `json:"max_deviation,omitempty" yaml:"max_deviation,omitempty"`
}

// TimeShapingPatch is a partial TimeShapingConfig. PeakHours replaces the
// existing ranges wholesale when present.
type TimeShapingPatch struct {
	Enabled          *bool        `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	PeakHours        *[]HourRange `json:"peak_hours,omitempty" yaml:"peak_hours,omitempty"`
	PeakFactor       *float64     `json:"peak_factor,omitempty" yaml:"peak_factor,omitempty"`
	NightReduction   *float64     `json:"night_reduction,omitempty" yaml:"night_reduction,omitempty"`
	WeekendReduction *float64     `json:"weekend_reduction,omitempty" yaml:"weekend_reduction,omitempty"`
	Jitter           *float64     `json:"jitter,omitempty" yaml:"jitter,omitempty"`
}

// ConfigPatch is a partial update to GenerationConfig. Nil fields are left untouched.
// Override maps replace the existing maps wholesale when present.
type ConfigPatch struct {
	ErrorProbability    *float64               `json:"error_probability,omitempty" yaml:"error_probability,omitempty"`
	WarningProbability  *float64               `json:"warning_probability,omitempty" yaml:"warning_probability,omitempty"`
	CriticalProbability *float64               `json:"critical_probability,omitempty" yaml:"critical_probability,omitempty"`
	IntervalSeconds     *float64               `json:"generation_interval_seconds,omitempty" yaml:"generation_interval_seconds,omitempty"`
	EnabledServices     *[]string              `json:"enabled_services,omitempty" yaml:"enabled_services,omitempty"`
	PatternType         *PatternType           `json:"pattern_type,omitempty" yaml:"pattern_type,omitempty"`
	ServiceOverrides    *map[string]float64    `json:"service_overrides,omitempty" yaml:"service_overrides,omitempty"`
	FaultOverrides      *map[FaultKind]float64 `json:"fault_overrides,omitempty" yaml:"fault_overrides,omitempty"`
	Burst               *BurstPatch            `json:"burst,omitempty" yaml:"burst,omitempty"`
	Ramp                *RampPatch             `json:"ramp,omitempty" yaml:"ramp,omitempty"`
	RandomWalk          *RandomWalkPatch       `json:"random_walk,omitempty" yaml:"random_walk,omitempty"`
	TimeShaping         *TimeShapingPatch      `json:"time_shaping,omitempty" yaml:"time_shaping,omitempty"`
}

// Apply returns a copy of base with every non-nil patch field applied.
func (p ConfigPatch) Apply(base GenerationConfig) GenerationConfig {
	out := base.Clone()
	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setF(&out.ErrorProbability, p.ErrorProbability)
	setF(&out.WarningProbability, p.WarningProbability)
	setF(&out.CriticalProbability, p.CriticalProbability)
	setF(&out.IntervalSeconds, p.IntervalSeconds)
	if p.EnabledServices != nil {
		out.EnabledServices = NormalizeServices(*p.EnabledServices)
	}
	if p.PatternType != nil {
		out.PatternType = *p.PatternType
	}
	if p.ServiceOverrides != nil {
		out.ServiceOverrides = make(map[string]float64, len(*p.ServiceOverrides))
		for k, v := range *p.ServiceOverrides {
			out.ServiceOverrides[k] = v
		}
	}
	if p.FaultOverrides != nil {
		out.FaultOverrides = make(map[FaultKind]float64, len(*p.FaultOverrides))
		for k, v := range *p.FaultOverrides {
			out.FaultOverrides[k] = v
		}
	}
	if b := p.Burst; b != nil {
		setF(&out.Burst.QuietSeconds, b.QuietSeconds)
		setF(&out.Burst.BurstSeconds, b.BurstSeconds)
		setF(&out.Burst.QuietProbability, b.QuietProbability)
		setF(&out.Burst.BurstProbability, b.BurstProbability)
	}
	if r := p.Ramp; r != nil {
		setF(&out.Ramp.FloorProbability, r.FloorProbability)
		setF(&out.Ramp.CeilingProbability, r.CeilingProbability)
		setF(&out.Ramp.DurationSeconds, r.DurationSeconds)
	}
	if w := p.RandomWalk; w != nil {
		setF(&out.RandomWalk.Step, w.Step)
		setF(&out.RandomWalk.MaxDeviation, w.MaxDeviation)
	}
	if ts := p.TimeShaping; ts != nil {
		if ts.Enabled != nil {
			out.TimeShaping.Enabled = *ts.Enabled
		}
		if ts.PeakHours != nil {
			out.TimeShaping.PeakHours = append([]HourRange(nil), *ts.PeakHours...)
		}
		setF(&out.TimeShaping.PeakFactor, ts.PeakFactor)
		setF(&out.TimeShaping.NightReduction, ts.NightReduction)
		setF(&out.TimeShaping.WeekendReduction, ts.WeekendReduction)
		setF(&out.TimeShaping.Jitter, ts.Jitter)
	}
	return out
}

// SinkConfig defines one log sink.
type SinkConfig struct {
	Type        SinkType          `yaml:"type" json:"type"`
	Path        string            `yaml:"path,omitempty" json:"path,omitempty"`
	URL         string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Addr        string            `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password    string            `yaml:"password,omitempty" json:"password,omitempty"`
	DB          int               `yaml:"db,omitempty" json:"db,omitempty"`
	Stream      string            `yaml:"stream,omitempty" json:"stream,omitempty"`
	MaxLen      int64             `yaml:"max_len,omitempty" json:"max_len,omitempty"`
	Region      string            `yaml:"region,omitempty" json:"region,omitempty"`
	LogGroup    string            `yaml:"log_group,omitempty" json:"log_group,omitempty"`
	LogStream   string            `yaml:"log_stream,omitempty" json:"log_stream,omitempty"`
	QueueURL    string            `yaml:"queue_url,omitempty" json:"queue_url,omitempty"`
	EventBus    string            `yaml:"event_bus,omitempty" json:"event_bus,omitempty"`
	Source      string            `yaml:"source,omitempty" json:"source,omitempty"`
	MinSeverity Severity          `yaml:"min_severity,omitempty" json:"min_severity,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr" json:"addr"`
	APIKey         string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	MaxRequestBody int64  `yaml:"max_request_body,omitempty" json:"max_request_body,omitempty"`
}

// SchedulerConfig controls the background generator.
type SchedulerConfig struct {
	Autostart bool `yaml:"autostart" json:"autostart"`
}

// MetricsConfig selects the metrics exporter.
type MetricsConfig struct {
	Exporter     string `yaml:"exporter" json:"exporter"` // prometheus, otlp or none
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
}

// TracingConfig selects the trace exporter.
type TracingConfig struct {
	Exporter     string `yaml:"exporter" json:"exporter"` // otlp or none
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" json:"otlp_endpoint,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DispatchConfig sizes the sink dispatcher queue.
type DispatchConfig struct {
	Buffer int `yaml:"buffer" json:"buffer"`
}

// ProjectConfig represents the top-level faultline.yaml configuration.
type ProjectConfig struct {
	Server     *ServerConfig    `yaml:"server,omitempty"`
	Seed       *uint64          `yaml:"seed,omitempty"`
	FleetDirs  []string         `yaml:"fleet_dirs,omitempty"`
	Generation GenerationConfig `yaml:"generation"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Sinks      []SinkConfig     `yaml:"sinks,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Log        LogConfig        `yaml:"log"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
}

// DefaultProjectConfig returns the configuration used when no file is present.
func DefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Server:     &ServerConfig{Addr: ":8080"},
		Generation: DefaultGenerationConfig(),
		Scheduler:  SchedulerConfig{Autostart: true},
		Sinks:      []SinkConfig{{Type: SinkConsole}},
		Metrics:    MetricsConfig{Exporter: "prometheus"},
		Tracing:    TracingConfig{Exporter: "none"},
		Log:        LogConfig{Level: "info", Format: "text"},
		Dispatch:   DispatchConfig{Buffer: 1024},
	}
}
