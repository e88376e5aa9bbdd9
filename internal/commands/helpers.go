// Package commands implements the CLI subcommands for the faultline binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/internal/config"
	"github.com/dwsmith1983/faultline/internal/engine"
	"github.com/dwsmith1983/faultline/internal/metrics"
	"github.com/dwsmith1983/faultline/internal/registry"
	"github.com/dwsmith1983/faultline/internal/scheduler"
	"github.com/dwsmith1983/faultline/internal/sink"
	"github.com/dwsmith1983/faultline/pkg/types"
)

// Version is reported by the health endpoint and telemetry resources. main
// overwrites it at startup.
var Version = "dev"

// loadConfig reads the project file. An empty path means faultline.yaml in
// the working directory, and running without that file falls back to
// defaults. The returned path is empty when no file was read. Relative
// fleet directories are resolved against the file's directory.
func loadConfig(path string) (*types.ProjectConfig, string, error) {
	explicit := path != ""
	if !explicit {
		path = config.FileName
	}
	cfg, err := config.LoadFile(path)
	if err == nil {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		base := filepath.Dir(abs)
		for i, dir := range cfg.FleetDirs {
			if !filepath.IsAbs(dir) {
				cfg.FleetDirs[i] = filepath.Join(base, dir)
			}
		}
		return cfg, abs, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	cfg, err = config.Defaults()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, "", nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// runtime is the wired set of components behind serve and run.
type runtime struct {
	cfg        *types.ProjectConfig
	logger     *slog.Logger
	registry   *registry.Registry
	telemetry  *metrics.Telemetry
	dispatcher *sink.Dispatcher
	engine     *engine.Engine
	scheduler  *scheduler.Scheduler
}

// buildRuntime wires registry, config store, telemetry, sinks, engine and
// scheduler. extra sinks are appended to the configured ones. Nothing is
// started.
func buildRuntime(ctx context.Context, cfg *types.ProjectConfig, logger *slog.Logger, extra ...sink.Sink) (*runtime, error) {
	reg, err := loadRegistry(cfg.FleetDirs)
	if err != nil {
		return nil, err
	}

	store, err := config.NewStore(cfg.Generation, reg)
	if err != nil {
		return nil, fmt.Errorf("validating generation config: %w", err)
	}

	tel, err := metrics.Init(ctx, Version, cfg.Metrics, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	sinks, err := sink.Build(ctx, cfg.Sinks, logger)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	sinks = append(sinks, extra...)

	disp := sink.NewDispatcher(sinks,
		sink.WithLogger(logger),
		sink.WithRecorder(tel.Recorder),
		sink.WithBuffer(cfg.Dispatch.Buffer),
	)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRecorder(tel.Recorder),
		engine.WithTracer(tel.Tracer),
		engine.WithEmitter(disp),
	}
	if cfg.Seed != nil {
		opts = append(opts, engine.WithSeed(*cfg.Seed))
	}
	eng := engine.New(reg, catalog.New(), store, opts...)

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		telemetry:  tel,
		dispatcher: disp,
		engine:     eng,
		scheduler:  scheduler.New(eng, logger),
	}, nil
}

// loadRegistry returns the built-in fleet extended by every fleet directory.
func loadRegistry(dirs []string) (*registry.Registry, error) {
	reg := registry.Default()
	for _, dir := range dirs {
		if err := reg.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("loading fleet from %s: %w", dir, err)
		}
	}
	return reg, nil
}

// shutdown stops generation, drains sinks and flushes telemetry.
func (rt *runtime) shutdown(ctx context.Context) error {
	rt.scheduler.Stop(ctx)
	var errs []error
	if err := rt.dispatcher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("closing sinks: %w", err))
	}
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// stderr is where the process logger writes.
var stderr io.Writer = os.Stderr
