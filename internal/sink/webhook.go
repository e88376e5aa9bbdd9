package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Circuit breaker defaults for webhook delivery.
const (
	breakerMaxRequests  = 1
	breakerInterval     = time.Minute
	breakerOpenTimeout  = 30 * time.Second
	breakerFailureTrips = 5
)

// WebhookSink POSTs records as JSON. Consecutive failures open a circuit so
// an unreachable receiver does not stall the delivery goroutine.
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// WebhookOption configures a WebhookSink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient sets the HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSink) { s.client = c }
}

// WithHeaders adds static request headers.
func WithHeaders(h map[string]string) WebhookOption {
	return func(s *WebhookSink) { s.headers = h }
}

// WithWebhookLogger sets the logger used for circuit state changes.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(s *WebhookSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(url string, timeout time.Duration, opts ...WebhookOption) (*WebhookSink, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	s := &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook:" + url,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= breakerFailureTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("webhook circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return s, nil
}

// Name returns the sink identifier.
func (s *WebhookSink) Name() string { return "webhook" }

// State reports the circuit breaker state.
func (s *WebhookSink) State() gobreaker.State { return s.breaker.State() }

// Send posts the record. While the circuit is open it fails fast with
// gobreaker.ErrOpenState.
func (s *WebhookSink) Send(ctx context.Context, rec types.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, data)
	})
	if err != nil {
		return fmt.Errorf("webhook POST failed: %w", err)
	}
	return nil
}

func (s *WebhookSink) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
