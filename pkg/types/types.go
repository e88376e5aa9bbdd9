// Package types defines the public domain types for the faultline fault-injection harness.
package types

import "time"

// OperationDescriptor binds a named operation to the single fault kind it produces.
type OperationDescriptor struct {
	Name        string    `yaml:"name" json:"name"`
	FaultKind   FaultKind `yaml:"fault_kind" json:"fault_kind"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// ServiceDescriptor describes one simulated service and its operations.
type ServiceDescriptor struct {
	Name        string                `yaml:"name" json:"name"`
	Description string                `yaml:"description,omitempty" json:"description,omitempty"`
	Operations  []OperationDescriptor `yaml:"operations" json:"operations"`
}

// Frame is one synthetic stack frame, innermost last.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
	Code     string `json:"code,omitempty"`
}

// Payload is what the fault catalog builds for one fault.
type Payload struct {
	FaultKind  FaultKind `json:"fault_kind"`
	Message    string    `json:"message"`
	Frames     []Frame   `json:"frames"`
	StackTrace string    `json:"stack_trace"`
}

// ErrorEvent is the product of one successful generation attempt.
type ErrorEvent struct {
	ID                   string      `json:"id"`
	Timestamp            time.Time   `json:"timestamp"`
	Service              string      `json:"service"`
	Operation            string      `json:"operation"`
	FaultKind            FaultKind   `json:"fault_kind"`
	Severity             Severity    `json:"severity"`
	Message              string      `json:"message"`
	StackTrace           string      `json:"stack_trace"`
	Frames               []Frame     `json:"frames,omitempty"`
	Source               EventSource `json:"source"`
	Pattern              PatternType `json:"pattern"`
	Phase                Phase       `json:"phase,omitempty"`
	EffectiveProbability float64     `json:"effective_probability"`
}

// TriggerRequest asks for a forced fault. Empty fields are chosen by the engine.
type TriggerRequest struct {
	Service   string    `json:"service,omitempty"`
	Operation string    `json:"operation,omitempty"`
	FaultKind FaultKind `json:"fault_kind,omitempty"`
}

// Statistics is a point-in-time copy of the aggregated counters.
type Statistics struct {
	TotalEvents     int64                 `json:"total_events"`
	Attempts        int64                 `json:"attempts"`
	ByService       map[string]int64      `json:"by_service"`
	ByOperation     map[string]int64      `json:"by_operation"`
	ByFaultKind     map[FaultKind]int64   `json:"by_fault_kind"`
	BySeverity      map[Severity]int64    `json:"by_severity"`
	BySource        map[EventSource]int64 `json:"by_source"`
	ByPattern       map[PatternType]int64 `json:"by_pattern"`
	BurstsTriggered int64                 `json:"bursts_triggered"`
	BurstEvents     int64                 `json:"burst_events"`
	StartedAt       time.Time             `json:"started_at"`
	LastEventAt     *time.Time            `json:"last_event_at,omitempty"`
	ElapsedSeconds  float64               `json:"elapsed_seconds"`
	EventsPerMinute float64               `json:"events_per_minute"`
}

// OperationHealth values reported by service detail.
const (
	HealthHealthy = "healthy"
	HealthFailing = "failing"
)

// OperationStats summarizes one operation's fault history since the last reset.
type OperationStats struct {
	Events      int64      `json:"events"`
	LastEventAt *time.Time `json:"last_event_at,omitempty"`
	Health      string     `json:"health"`
}

// OperationDetail is an operation with its binding and stats.
type OperationDetail struct {
	Name        string         `json:"name"`
	FaultKind   FaultKind      `json:"fault_kind"`
	Description string         `json:"description,omitempty"`
	Stats       OperationStats `json:"stats"`
}

// ServiceDetail is the per-service view returned by the control surface.
type ServiceDetail struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled"`
	Operations  []OperationDetail `json:"operations"`
	TotalEvents int64             `json:"total_events"`
}

// FaultKindInfo pairs a fault kind with its description.
type FaultKindInfo struct {
	Kind        FaultKind `json:"kind"`
	Description string    `json:"description"`
}

// LogRecord is the structured encoding of one event handed to sinks.
type LogRecord struct {
	Timestamp     string      `json:"timestamp"`
	Level         string      `json:"level"`
	Service       string      `json:"service"`
	Operation     string      `json:"operation"`
	Message       string      `json:"message"`
	Hostname      string      `json:"hostname"`
	Thread        string      `json:"thread"`
	ErrorType     FaultKind   `json:"error_type"`
	Severity      Severity    `json:"severity"`
	CorrelationID string      `json:"correlation_id"`
	StackTrace    string      `json:"stack_trace"`
	FunctionName  string      `json:"function_name,omitempty"`
	LineNumber    int         `json:"line_number,omitempty"`
	Source        EventSource `json:"source"`
	Pattern       PatternType `json:"pattern,omitempty"`
}
