// Package config handles loading and validation of faultline.yaml and the
// live generation configuration store.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dwsmith1983/faultline/pkg/types"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up by Load.
const FileName = "faultline.yaml"

// Load reads and parses faultline.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads, parses and validates a project configuration file.
// Fields absent from the file keep their defaults; FAULTLINE_* environment
// variables are applied on top.
func LoadFile(path string) (*types.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := types.DefaultProjectConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns the default project configuration with environment
// overrides applied, for running without a file.
func Defaults() (*types.ProjectConfig, error) {
	cfg := types.DefaultProjectConfig()
	if err := finish(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func finish(cfg *types.ProjectConfig) error {
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return fmt.Errorf("applying environment: %w", err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// ParseGeneration decodes only the generation section of a project file and
// applies the same FAULTLINE_* overrides LoadFile does, so a reload never
// reverts settings supplied through the environment.
func ParseGeneration(data []byte) (types.GenerationConfig, error) {
	return parseGeneration(data, os.LookupEnv)
}

func parseGeneration(data []byte, lookup func(string) (string, bool)) (types.GenerationConfig, error) {
	var raw struct {
		Generation types.GenerationConfig `yaml:"generation"`
	}
	raw.Generation = types.DefaultGenerationConfig()
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return types.GenerationConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	// Only the generation section of this scratch config is kept.
	scratch := types.ProjectConfig{Generation: raw.Generation}
	if err := ApplyEnv(&scratch, lookup); err != nil {
		return types.GenerationConfig{}, fmt.Errorf("applying environment: %w", err)
	}
	gen := scratch.Generation
	gen.EnabledServices = types.NormalizeServices(gen.EnabledServices)
	return gen, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Server == nil {
		cfg.Server = &types.ServerConfig{}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxRequestBody <= 0 {
		cfg.Server.MaxRequestBody = 1 << 20
	}
	if cfg.Metrics.Exporter == "" {
		cfg.Metrics.Exporter = "prometheus"
	}
	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = "none"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Dispatch.Buffer <= 0 {
		cfg.Dispatch.Buffer = 1024
	}
	cfg.Generation.EnabledServices = types.NormalizeServices(cfg.Generation.EnabledServices)
}

func validate(cfg *types.ProjectConfig) error {
	if err := ValidateGeneration(cfg.Generation, nil); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	for i, s := range cfg.Sinks {
		if err := validateSink(s); err != nil {
			return fmt.Errorf("sinks[%d]: %w", i, err)
		}
	}
	switch cfg.Metrics.Exporter {
	case "prometheus", "otlp", "none":
	default:
		return fmt.Errorf("metrics.exporter %q must be prometheus, otlp or none", cfg.Metrics.Exporter)
	}
	switch cfg.Tracing.Exporter {
	case "otlp", "none":
	default:
		return fmt.Errorf("tracing.exporter %q must be otlp or none", cfg.Tracing.Exporter)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be debug, info, warn or error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Log.Format)
	}
	return nil
}

func validateSink(s types.SinkConfig) error {
	switch s.Type {
	case types.SinkConsole:
	case types.SinkFile:
		if s.Path == "" {
			return fmt.Errorf("file sink requires path")
		}
	case types.SinkWebhook:
		if s.URL == "" {
			return fmt.Errorf("webhook sink requires url")
		}
	case types.SinkRedis:
		if s.Addr == "" {
			return fmt.Errorf("redis sink requires addr")
		}
	case types.SinkCloudWatch:
		if s.LogGroup == "" {
			return fmt.Errorf("cloudwatch sink requires log_group")
		}
	case types.SinkSQS:
		if s.QueueURL == "" {
			return fmt.Errorf("sqs sink requires queue_url")
		}
	case types.SinkEventBridge:
		if s.EventBus == "" {
			return fmt.Errorf("eventbridge sink requires event_bus")
		}
	default:
		return fmt.Errorf("unknown sink type %q", s.Type)
	}
	switch s.MinSeverity {
	case "", types.SeverityInfo, types.SeverityWarning, types.SeverityError, types.SeverityCritical:
	default:
		return fmt.Errorf("unknown min_severity %q", s.MinSeverity)
	}
	return nil
}
