package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Build creates sinks from their configs, each wrapped with its severity
// filter. On failure any sinks already created are closed.
func Build(ctx context.Context, configs []types.SinkConfig, logger *slog.Logger) ([]Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks []Sink
	for i, cfg := range configs {
		s, err := newSink(ctx, cfg, logger)
		if err != nil {
			closeAll(sinks)
			return nil, fmt.Errorf("creating sinks[%d] (%s): %w", i, cfg.Type, err)
		}
		sinks = append(sinks, WithMinSeverity(s, cfg.MinSeverity))
	}
	return sinks, nil
}

func newSink(ctx context.Context, cfg types.SinkConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case types.SinkConsole:
		return NewConsoleSink(), nil
	case types.SinkFile:
		return NewFileSink(cfg.Path)
	case types.SinkWebhook:
		return NewWebhookSink(cfg.URL, parseTimeout(cfg.Timeout),
			WithHeaders(cfg.Headers), WithWebhookLogger(logger))
	case types.SinkRedis:
		return NewRedisSink(cfg)
	case types.SinkCloudWatch:
		return NewCloudWatchSink(ctx, cfg)
	case types.SinkSQS:
		return NewSQSSink(ctx, cfg)
	case types.SinkEventBridge:
		return NewEventBridgeSink(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
}
