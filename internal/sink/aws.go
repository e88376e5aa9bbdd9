package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// DefaultEventSource is the EventBridge source used when none is configured.
const DefaultEventSource = "faultline"

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// CloudWatchLogsAPI is the subset of the CloudWatch Logs client used by CloudWatchSink.
type CloudWatchLogsAPI interface {
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchSink writes each record as one log event. The log stream is
// created on first use.
type CloudWatchSink struct {
	client    CloudWatchLogsAPI
	group     string
	stream    string
	timeout   time.Duration
	mu        sync.Mutex
	streamSet bool
}

// CloudWatchOption configures a CloudWatchSink.
type CloudWatchOption func(*CloudWatchSink)

// WithCloudWatchClient sets a custom client (useful for testing).
func WithCloudWatchClient(c CloudWatchLogsAPI) CloudWatchOption {
	return func(s *CloudWatchSink) { s.client = c }
}

// NewCloudWatchSink creates a CloudWatch Logs sink.
func NewCloudWatchSink(ctx context.Context, cfg types.SinkConfig, opts ...CloudWatchOption) (*CloudWatchSink, error) {
	if cfg.LogGroup == "" {
		return nil, fmt.Errorf("cloudwatch log_group required")
	}
	s := &CloudWatchSink{
		group:   cfg.LogGroup,
		stream:  cfg.LogStream,
		timeout: parseTimeout(cfg.Timeout),
	}
	if s.stream == "" {
		s.stream = hostname
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		s.client = cloudwatchlogs.NewFromConfig(awsCfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *CloudWatchSink) Name() string { return "cloudwatch" }

// Send puts the record as a JSON log event.
func (s *CloudWatchSink) Send(ctx context.Context, rec types.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		ts = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureStreamLocked(ctx); err != nil {
		return err
	}

	_, err = s.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
		LogEvents: []cwtypes.InputLogEvent{{
			Message:   aws.String(string(data)),
			Timestamp: aws.Int64(ts.UnixMilli()),
		}},
	})
	if err != nil {
		return fmt.Errorf("putting log events: %w", err)
	}
	return nil
}

func (s *CloudWatchSink) ensureStreamLocked(ctx context.Context) error {
	if s.streamSet {
		return nil
	}
	_, err := s.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(s.group),
		LogStreamName: aws.String(s.stream),
	})
	var exists *cwtypes.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("creating log stream %s/%s: %w", s.group, s.stream, err)
	}
	s.streamSet = true
	return nil
}

// SQSAPI is the subset of the SQS client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink sends each record as one queue message with routing attributes.
type SQSSink struct {
	client   SQSAPI
	queueURL string
	timeout  time.Duration
}

// SQSOption configures an SQSSink.
type SQSOption func(*SQSSink)

// WithSQSClient sets a custom client (useful for testing).
func WithSQSClient(c SQSAPI) SQSOption {
	return func(s *SQSSink) { s.client = c }
}

// NewSQSSink creates an SQS sink.
func NewSQSSink(ctx context.Context, cfg types.SinkConfig, opts ...SQSOption) (*SQSSink, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs queue_url required")
	}
	s := &SQSSink{queueURL: cfg.QueueURL, timeout: parseTimeout(cfg.Timeout)}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		s.client = sqs.NewFromConfig(awsCfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SQSSink) Name() string { return "sqs" }

// Send enqueues the record.
func (s *SQSSink) Send(ctx context.Context, rec types.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"severity":   stringAttr(string(rec.Severity)),
			"service":    stringAttr(rec.Service),
			"error_type": stringAttr(string(rec.ErrorType)),
		},
	}
	if strings.HasSuffix(s.queueURL, ".fifo") {
		in.MessageGroupId = aws.String(rec.Service)
		in.MessageDeduplicationId = aws.String(rec.CorrelationID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sending to SQS: %w", err)
	}
	return nil
}

func stringAttr(v string) sqstypes.MessageAttributeValue {
	return sqstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

// EventBridgeAPI is the subset of the EventBridge client used by EventBridgeSink.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeSink publishes each record as an event whose detail type is the
// fault kind, so rules can route on it.
type EventBridgeSink struct {
	client  EventBridgeAPI
	bus     string
	source  string
	timeout time.Duration
}

// EventBridgeOption configures an EventBridgeSink.
type EventBridgeOption func(*EventBridgeSink)

// WithEventBridgeClient sets a custom client (useful for testing).
func WithEventBridgeClient(c EventBridgeAPI) EventBridgeOption {
	return func(s *EventBridgeSink) { s.client = c }
}

// NewEventBridgeSink creates an EventBridge sink.
func NewEventBridgeSink(ctx context.Context, cfg types.SinkConfig, opts ...EventBridgeOption) (*EventBridgeSink, error) {
	if cfg.EventBus == "" {
		return nil, fmt.Errorf("eventbridge event_bus required")
	}
	s := &EventBridgeSink{bus: cfg.EventBus, source: cfg.Source, timeout: parseTimeout(cfg.Timeout)}
	if s.source == "" {
		s.source = DefaultEventSource
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		awsCfg, err := loadAWSConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		s.client = eventbridge.NewFromConfig(awsCfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *EventBridgeSink) Name() string { return "eventbridge" }

// Send puts the record as a single event.
func (s *EventBridgeSink) Send(ctx context.Context, rec types.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(s.bus),
			Source:       aws.String(s.source),
			DetailType:   aws.String(string(rec.ErrorType)),
			Detail:       aws.String(string(data)),
		}},
	})
	if err != nil {
		return fmt.Errorf("putting events: %w", err)
	}
	for _, e := range out.Entries {
		if e.ErrorCode != nil {
			return fmt.Errorf("event rejected: %s: %s", aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
		}
	}
	return nil
}
