// Package pattern modulates the base fault probability over time.
package pattern

import (
	"math"
	"sync"
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Rand supplies the random walk's steps.
type Rand interface {
	Float64() float64
}

// Reading is the result of one modulation step.
type Reading struct {
	Probability float64           `json:"probability"`
	Pattern     types.PatternType `json:"pattern"`
	Phase       types.Phase       `json:"phase"`
	// Entered is set on the first reading taken in a new phase.
	Entered bool `json:"entered,omitempty"`
}

// State is a snapshot of the controller.
type State struct {
	Pattern        types.PatternType `json:"pattern"`
	Phase          types.Phase       `json:"phase"`
	PhaseStartedAt time.Time         `json:"phase_started_at"`
	WalkOffset     float64           `json:"walk_offset,omitempty"`
}

// Controller tracks the temporal pattern state. Safe for concurrent use.
type Controller struct {
	mu         sync.Mutex
	rng        Rand
	pattern    types.PatternType
	phase      types.Phase
	phaseStart time.Time
	offset     float64
	started    bool
	revision   uint64
	observed   time.Time
}

// NewController creates a controller that is reset lazily on its first reading.
func NewController(rng Rand) *Controller {
	return &Controller{rng: rng}
}

// Reset puts the controller into the initial phase of cfg's pattern at now
// and remembers cfg's revision. Readings from older snapshots no longer move
// the controller to another pattern.
func (c *Controller) Reset(cfg types.GenerationConfig, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(cfg.PatternType, now)
	c.revision = max(c.revision, cfg.Revision)
}

func (c *Controller) resetLocked(p types.PatternType, now time.Time) {
	c.pattern = p
	c.phase = InitialPhase(p)
	c.phaseStart = now
	c.offset = 0
	c.started = true
	c.observed = time.Time{}
}

// State returns the current pattern state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Pattern:        c.pattern,
		Phase:          c.phase,
		PhaseStartedAt: c.phaseStart,
		WalkOffset:     c.offset,
	}
}

// EffectiveProbability advances the pattern to now and returns the modulated
// probability for base. A pattern type that differs from the current one
// resets the controller first, unless cfg is older than the configuration
// the controller was last reset for; such a stale reading uses the current
// pattern.
//
// Burst and ramp set their own levels. When base differs from
// cfg.ErrorProbability, because an override applies, their output is scaled
// by base/cfg.ErrorProbability, or capped at base when the global rate is 0.
func (c *Controller) EffectiveProbability(cfg types.GenerationConfig, base float64, now time.Time) Reading {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || (cfg.PatternType != c.pattern && cfg.Revision >= c.revision) {
		c.resetLocked(cfg.PatternType, now)
	}
	c.revision = max(c.revision, cfg.Revision)

	var p float64
	switch c.pattern {
	case types.PatternBurst:
		p = scaleToBase(c.burst(cfg.Burst, now), base, cfg.ErrorProbability)
	case types.PatternRamp:
		p = scaleToBase(c.ramp(cfg.Ramp, now), base, cfg.ErrorProbability)
	case types.PatternRandom:
		p = c.walk(cfg.RandomWalk, base)
	default:
		p = base
	}

	entered := !c.phaseStart.Equal(c.observed)
	c.observed = c.phaseStart
	return Reading{Probability: Clamp(p), Pattern: c.pattern, Phase: c.phase, Entered: entered}
}

func scaleToBase(p, base, global float64) float64 {
	switch {
	case base == global:
		return p
	case global > 0:
		return p * base / global
	default:
		return math.Min(p, base)
	}
}

func (c *Controller) burst(cfg types.BurstConfig, now time.Time) float64 {
	quiet := seconds(cfg.QuietSeconds)
	burst := seconds(cfg.BurstSeconds)
	if cycle := quiet + burst; cycle > 0 {
		// Skip whole cycles first so a long gap between ticks costs O(1).
		if elapsed := now.Sub(c.phaseStart); elapsed >= cycle {
			c.phaseStart = c.phaseStart.Add(elapsed / cycle * cycle)
		}
		for i := 0; i < 2; i++ {
			length := quiet
			if c.phase == types.PhaseBurst {
				length = burst
			}
			end := c.phaseStart.Add(length)
			if now.Before(end) {
				break
			}
			c.advance(otherBurstPhase(c.phase), end)
		}
	}
	if c.phase == types.PhaseBurst {
		return cfg.BurstProbability
	}
	return cfg.QuietProbability
}

func otherBurstPhase(p types.Phase) types.Phase {
	if p == types.PhaseBurst {
		return types.PhaseQuiet
	}
	return types.PhaseBurst
}

func (c *Controller) ramp(cfg types.RampConfig, now time.Time) float64 {
	if c.phase == types.PhasePlateau {
		return cfg.CeilingProbability
	}
	frac := 1.0
	if d := seconds(cfg.DurationSeconds); d > 0 {
		frac = float64(now.Sub(c.phaseStart)) / float64(d)
	}
	if frac < 0 {
		frac = 0
	}
	if frac >= 1 {
		frac = 1
		c.advance(types.PhasePlateau, now)
	}
	return cfg.FloorProbability + (cfg.CeilingProbability-cfg.FloorProbability)*frac
}

func (c *Controller) walk(cfg types.RandomWalkConfig, base float64) float64 {
	if cfg.Step > 0 {
		c.offset += (c.rng.Float64()*2 - 1) * cfg.Step
	}
	if c.offset > cfg.MaxDeviation {
		c.offset = cfg.MaxDeviation
	}
	if c.offset < -cfg.MaxDeviation {
		c.offset = -cfg.MaxDeviation
	}
	return base + c.offset
}

// advance moves to the next phase, anchoring it at start. An invalid move
// means the state was corrupted, so the pattern restarts instead.
func (c *Controller) advance(to types.Phase, start time.Time) {
	if err := Transition(c.phase, to); err != nil {
		c.resetLocked(c.pattern, start)
		return
	}
	c.phase = to
	c.phaseStart = start
}

// Clamp bounds p to [0, 1].
func Clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func seconds(s float64) time.Duration {
	return types.SecondsToDuration(s)
}
