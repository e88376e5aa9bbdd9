package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dwsmith1983/faultline/internal/testutil"
	"github.com/dwsmith1983/faultline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.1\n"), 0o644))

	s := newStore(t)
	w := NewWatcher(path, func(cfg types.GenerationConfig) error {
		_, _, err := s.Replace(cfg)
		return err
	}, nil)
	w.debounce = 20 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.7\n"), 0o644))
	testutil.WaitFor(t, 5*time.Second, func() bool { return s.Get().ErrorProbability == 0.7 }, "reloaded error_probability")
}

func TestWatcher_ReloadKeepsEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvErrorRate, "0.5")
	t.Setenv(EnvInterval, "0.25")

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.05\n  warning_probability: 0.3\n"), 0o644))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 0.5, loaded.Generation.ErrorProbability)

	s, err := NewStore(loaded.Generation, fleet)
	require.NoError(t, err)
	w := NewWatcher(path, func(cfg types.GenerationConfig) error {
		_, _, err := s.Replace(cfg)
		return err
	}, nil)

	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.05\n  warning_probability: 0.4\n"), 0o644))
	require.NoError(t, w.Reload())

	got := s.Get()
	assert.Equal(t, 0.5, got.ErrorProbability)
	assert.Equal(t, 0.4, got.WarningProbability)
	assert.Equal(t, 0.25, got.IntervalSeconds)
}

func TestWatcher_RejectedReloadKeepsStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.1\n"), 0o644))

	s := newStore(t)
	var mu sync.Mutex
	var attempts int
	w := NewWatcher(path, func(cfg types.GenerationConfig) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		_, _, err := s.Replace(cfg)
		return err
	}, nil)
	w.debounce = 20 * time.Millisecond

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 1.5\n"), 0o644))
	testutil.WaitFor(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts > 0
	}, "reload attempted")
	assert.Equal(t, 0.05, s.Get().ErrorProbability)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("generation: {}\n"), 0o644))

	called := make(chan struct{}, 1)
	w := NewWatcher(path, func(types.GenerationConfig) error {
		called <- struct{}{}
		return nil
	}, nil)
	w.debounce = 10 * time.Millisecond
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop(context.Background())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	select {
	case <-called:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  pattern_type: ramp\n"), 0o644))

	var got types.GenerationConfig
	w := NewWatcher(path, func(cfg types.GenerationConfig) error {
		got = cfg
		return nil
	}, nil)
	require.NoError(t, w.Reload())
	assert.Equal(t, types.PatternRamp, got.PatternType)

	require.NoError(t, os.Remove(path))
	assert.Error(t, w.Reload())
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing", FileName), func(types.GenerationConfig) error { return nil }, nil)
	assert.Error(t, w.Start(context.Background()))
}
