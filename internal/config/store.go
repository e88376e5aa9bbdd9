package config

import (
	"sync"
	"sync/atomic"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Store holds the live generation configuration. Readers load an immutable
// snapshot without locking; writers serialize, validate a full candidate and
// swap it in only when every field passes.
type Store struct {
	mu       sync.Mutex
	current  atomic.Pointer[types.GenerationConfig]
	services ServiceSet
}

// NewStore validates initial against the known services and returns a store holding it.
func NewStore(initial types.GenerationConfig, services ServiceSet) (*Store, error) {
	cfg := initial.Clone()
	cfg.EnabledServices = types.NormalizeServices(cfg.EnabledServices)
	if err := ValidateGeneration(cfg, services); err != nil {
		return nil, err
	}
	s := &Store{services: services}
	s.current.Store(&cfg)
	return s, nil
}

// Get returns a deep copy of the current configuration.
func (s *Store) Get() types.GenerationConfig {
	return s.current.Load().Clone()
}

// Snapshot returns the current immutable snapshot without copying.
// Callers must not modify its maps or slices.
func (s *Store) Snapshot() *types.GenerationConfig {
	return s.current.Load()
}

// Update applies patch atomically and bumps the revision. It returns the new configuration and
// whether the pattern type changed. On a validation failure the store is
// left unchanged and the error is a *types.ValidationError.
func (s *Store) Update(patch types.ConfigPatch) (types.GenerationConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	next := patch.Apply(*prev)
	if err := ValidateGeneration(next, s.services); err != nil {
		return prev.Clone(), false, err
	}
	next.Revision = prev.Revision + 1
	s.current.Store(&next)
	return next.Clone(), next.PatternType != prev.PatternType, nil
}

// Replace swaps in a complete configuration, as on a file reload.
func (s *Store) Replace(cfg types.GenerationConfig) (types.GenerationConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cfg.Clone()
	next.EnabledServices = types.NormalizeServices(next.EnabledServices)
	prev := s.current.Load()
	if err := ValidateGeneration(next, s.services); err != nil {
		return prev.Clone(), false, err
	}
	next.Revision = prev.Revision + 1
	s.current.Store(&next)
	return next.Clone(), next.PatternType != prev.PatternType, nil
}
