package sink

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Redis stream defaults.
const (
	DefaultStream = "faultline:events"
	defaultMaxLen = 10000
)

// StreamAdder is the subset of the Redis client used by RedisSink.
type StreamAdder interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// RedisSink appends records to a Redis stream, trimmed approximately to a
// maximum length.
type RedisSink struct {
	client StreamAdder
	closer func() error
	stream string
	maxLen int64
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithStreamClient sets a custom client (useful for testing).
func WithStreamClient(c StreamAdder) RedisOption {
	return func(s *RedisSink) { s.client = c }
}

// NewRedisSink creates a stream sink from its config.
func NewRedisSink(cfg types.SinkConfig, opts ...RedisOption) (*RedisSink, error) {
	s := &RedisSink{stream: cfg.Stream, maxLen: cfg.MaxLen}
	if s.stream == "" {
		s.stream = DefaultStream
	}
	if s.maxLen <= 0 {
		s.maxLen = defaultMaxLen
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis addr required")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		s.client = client
		s.closer = client.Close
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *RedisSink) Name() string { return "redis" }

// Send adds the record to the stream. Indexable fields are stored alongside
// the full JSON document.
func (s *RedisSink) Send(ctx context.Context, rec types.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	err = s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"correlation_id": rec.CorrelationID,
			"service":        rec.Service,
			"severity":       string(rec.Severity),
			"error_type":     string(rec.ErrorType),
			"data":           string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("XADD %s: %w", s.stream, err)
	}
	return nil
}

// Close releases the client connection if this sink created it.
func (s *RedisSink) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}
