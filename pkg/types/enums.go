package types

// FaultKind identifies a category of simulated failure.
type FaultKind string

// FaultKind values enumerate the failure modes the fleet can produce.
const (
	FaultNameError         FaultKind = "NameError"
	FaultKeyError          FaultKind = "KeyError"
	FaultAttributeError    FaultKind = "AttributeError"
	FaultZeroDivisionError FaultKind = "ZeroDivisionError"
	FaultTypeError         FaultKind = "TypeError"
	FaultIndexError        FaultKind = "IndexError"
	FaultFileNotFoundError FaultKind = "FileNotFoundError"
	FaultValueError        FaultKind = "ValueError"
	FaultMemoryError       FaultKind = "MemoryError"
	FaultImportError       FaultKind = "ImportError"
	FaultRecursionError    FaultKind = "RecursionError"
	FaultConnectionError   FaultKind = "ConnectionError"
)

var allFaultKinds = []FaultKind{
	FaultNameError,
	FaultKeyError,
	FaultAttributeError,
	FaultZeroDivisionError,
	FaultTypeError,
	FaultIndexError,
	FaultFileNotFoundError,
	FaultValueError,
	FaultMemoryError,
	FaultImportError,
	FaultRecursionError,
	FaultConnectionError,
}

// AllFaultKinds returns every known fault kind in catalog order.
func AllFaultKinds() []FaultKind {
	out := make([]FaultKind, len(allFaultKinds))
	copy(out, allFaultKinds)
	return out
}

// Valid reports whether k is a known fault kind.
func (k FaultKind) Valid() bool {
	for _, known := range allFaultKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Severity is the tier assigned to an emitted event.
type Severity string

// Severity values, lowest first.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Level returns the upper-case log level used in structured records.
func (s Severity) Level() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	default:
		return "INFO"
	}
}

// Rank orders severities from info (0) to critical (3). Unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// PatternType selects the temporal shape applied to the fault probability.
type PatternType string

// PatternType values enumerate the supported temporal patterns.
const (
	PatternSteady PatternType = "steady"
	PatternBurst  PatternType = "burst"
	PatternRamp   PatternType = "ramp"
	PatternRandom PatternType = "random"
)

// Valid reports whether p is a known pattern type.
func (p PatternType) Valid() bool {
	switch p {
	case PatternSteady, PatternBurst, PatternRamp, PatternRandom:
		return true
	}
	return false
}

// Phase is the sub-state of a pattern at a point in time.
type Phase string

const (
	PhaseSteady  Phase = "steady"
	PhaseQuiet   Phase = "quiet"
	PhaseBurst   Phase = "burst"
	PhaseRamping Phase = "ramping"
	PhasePlateau Phase = "plateau"
	PhaseWalking Phase = "walking"
)

// EventSource records which path produced an event.
type EventSource string

const (
	SourceScheduled EventSource = "scheduled"
	SourceManual    EventSource = "manual"
)

// SinkType defines the log sink backend.
type SinkType string

// SinkType values enumerate the supported sink backends.
const (
	SinkConsole     SinkType = "console"
	SinkFile        SinkType = "file"
	SinkWebhook     SinkType = "webhook"
	SinkRedis       SinkType = "redis"
	SinkCloudWatch  SinkType = "cloudwatch"
	SinkSQS         SinkType = "sqs"
	SinkEventBridge SinkType = "eventbridge"
)
