package pattern

import (
	"time"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Night hours run from nightStart until nightEnd the next morning.
const (
	nightStart = 22
	nightEnd   = 6
)

// ShapeInterval adjusts the scheduler period for the wall-clock time now,
// read in now's location. Factors multiply: weekend, then night, then the
// first matching peak range, then jitter drawn from rng. A disabled config
// returns period unchanged and draws nothing.
func ShapeInterval(period time.Duration, cfg types.TimeShapingConfig, now time.Time, rng Rand) time.Duration {
	if !cfg.Enabled {
		return period
	}

	f := 1.0
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		f *= 1 + cfg.WeekendReduction
	}
	h := now.Hour()
	if h < nightEnd || h >= nightStart {
		f *= 1 + cfg.NightReduction
	}
	for _, r := range cfg.PeakHours {
		if r.Start <= h && h < r.End {
			f *= cfg.PeakFactor
			break
		}
	}
	if cfg.Jitter > 0 {
		f *= 1 - cfg.Jitter + 2*cfg.Jitter*rng.Float64()
	}
	return types.SecondsToDuration(period.Seconds() * f)
}
