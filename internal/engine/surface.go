package engine

import (
	"github.com/dwsmith1983/faultline/internal/pattern"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// ListServices maps each service to its operation names in declaration order.
func (e *Engine) ListServices() map[string][]string {
	out := make(map[string][]string, e.registry.Len())
	for _, svc := range e.registry.ListServices() {
		ops := make([]string, 0, len(svc.Operations))
		for _, op := range svc.Operations {
			ops = append(ops, op.Name)
		}
		out[svc.Name] = ops
	}
	return out
}

// Services returns the full fleet in registration order.
func (e *Engine) Services() []types.ServiceDescriptor {
	return e.registry.ListServices()
}

// ServiceDetail describes one service with per-operation statistics.
func (e *Engine) ServiceDetail(service string) (types.ServiceDetail, error) {
	svc, err := e.registry.Get(service)
	if err != nil {
		return types.ServiceDetail{}, err
	}

	names := make([]string, 0, len(svc.Operations))
	for _, op := range svc.Operations {
		names = append(names, op.Name)
	}
	opStats := e.stats.OperationStats(svc.Name, names, e.now())

	detail := types.ServiceDetail{
		Name:        svc.Name,
		Description: svc.Description,
		Enabled:     e.store.Snapshot().ServiceEnabled(svc.Name),
		Operations:  make([]types.OperationDetail, 0, len(svc.Operations)),
	}
	for _, op := range svc.Operations {
		st := opStats[op.Name]
		detail.TotalEvents += st.Events
		detail.Operations = append(detail.Operations, types.OperationDetail{
			Name:        op.Name,
			FaultKind:   op.FaultKind,
			Description: op.Description,
			Stats:       st,
		})
	}
	return detail, nil
}

// ListFaultKinds returns every fault kind with its description.
func (e *Engine) ListFaultKinds() []types.FaultKindInfo {
	kinds := e.catalog.Kinds()
	out := make([]types.FaultKindInfo, 0, len(kinds))
	for _, k := range kinds {
		desc, _ := e.catalog.Describe(k)
		out = append(out, types.FaultKindInfo{Kind: k, Description: desc})
	}
	return out
}

// Config returns a copy of the live configuration.
func (e *Engine) Config() types.GenerationConfig {
	return e.store.Get()
}

// UpdateConfig applies a partial update. A pattern type change restarts the
// pattern in its initial phase.
func (e *Engine) UpdateConfig(patch types.ConfigPatch) (types.GenerationConfig, error) {
	cfg, changed, err := e.store.Update(patch)
	if err != nil {
		return cfg, err
	}
	e.afterConfigChange(cfg, changed)
	return cfg, nil
}

// ReplaceConfig installs a complete configuration, as loaded from a file.
func (e *Engine) ReplaceConfig(next types.GenerationConfig) error {
	cfg, changed, err := e.store.Replace(next)
	if err != nil {
		return err
	}
	e.afterConfigChange(cfg, changed)
	return nil
}

func (e *Engine) afterConfigChange(cfg types.GenerationConfig, patternChanged bool) {
	if patternChanged {
		e.pattern.Reset(cfg, e.now())
	}
	e.logger.Info("generation config updated",
		"error_probability", cfg.ErrorProbability,
		"interval_seconds", cfg.IntervalSeconds,
		"pattern", cfg.PatternType,
		"pattern_reset", patternChanged,
	)
}

// ResetPattern restarts the current pattern from its initial phase, the only
// way to leave a ramp's plateau.
func (e *Engine) ResetPattern() pattern.State {
	e.pattern.Reset(*e.store.Snapshot(), e.now())
	return e.pattern.State()
}

// PatternState reports the pattern controller's current state.
func (e *Engine) PatternState() pattern.State {
	return e.pattern.State()
}

// Statistics returns a snapshot of the counters.
func (e *Engine) Statistics() types.Statistics {
	return e.stats.Snapshot(e.now())
}

// ResetStatistics zeroes the counters and restarts the elapsed-time origin.
func (e *Engine) ResetStatistics() {
	e.stats.Reset(e.now())
	e.logger.Info("statistics reset")
}
