package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvErrorRate    = "FAULTLINE_ERROR_RATE"
	EnvWarningRate  = "FAULTLINE_WARNING_RATE"
	EnvCriticalRate = "FAULTLINE_CRITICAL_RATE"
	EnvInterval     = "FAULTLINE_INTERVAL"
	EnvServices     = "FAULTLINE_SERVICES"
	EnvPattern      = "FAULTLINE_PATTERN"
	EnvLogFile      = "FAULTLINE_LOG_FILE"
	EnvLogLevel     = "FAULTLINE_LOG_LEVEL"
	EnvAddr         = "FAULTLINE_ADDR"
	EnvSeed         = "FAULTLINE_SEED"
)

// ApplyEnv overlays environment overrides onto cfg. lookup is usually os.LookupEnv.
func ApplyEnv(cfg *types.ProjectConfig, lookup func(string) (string, bool)) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{EnvErrorRate, &cfg.Generation.ErrorProbability},
		{EnvWarningRate, &cfg.Generation.WarningProbability},
		{EnvCriticalRate, &cfg.Generation.CriticalProbability},
		{EnvInterval, &cfg.Generation.IntervalSeconds},
	}
	for _, f := range floats {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = n
	}

	if v, ok := lookup(EnvServices); ok && v != "" {
		var services []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				services = append(services, s)
			}
		}
		cfg.Generation.EnabledServices = types.NormalizeServices(services)
	}
	if v, ok := lookup(EnvPattern); ok && v != "" {
		cfg.Generation.PatternType = types.PatternType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvLogFile); ok && v != "" {
		if !hasFileSink(cfg.Sinks, v) {
			cfg.Sinks = append(cfg.Sinks, types.SinkConfig{Type: types.SinkFile, Path: v})
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		if cfg.Server == nil {
			cfg.Server = &types.ServerConfig{}
		}
		cfg.Server.Addr = v
	}
	if v, ok := lookup(EnvSeed); ok && v != "" {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeed, err)
		}
		cfg.Seed = &seed
	}
	return nil
}

func hasFileSink(sinks []types.SinkConfig, path string) bool {
	for _, s := range sinks {
		if s.Type == types.SinkFile && s.Path == path {
			return true
		}
	}
	return false
}
