package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// ConsoleSink writes one colour-coded line per record to the terminal.
type ConsoleSink struct {
	out io.Writer
	mu  sync.Mutex
}

// NewConsoleSink creates a console sink writing to color.Output.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: color.Output}
}

// NewConsoleSinkTo creates a console sink writing to w.
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send prints the record with a severity prefix and the first trace line
// that names the operation.
func (s *ConsoleSink) Send(_ context.Context, rec types.LogRecord) error {
	var prefix string
	switch rec.Severity {
	case types.SeverityCritical:
		prefix = color.New(color.FgHiRed, color.Bold).Sprint("[CRITICAL]")
	case types.SeverityError:
		prefix = color.RedString("[ERROR]")
	case types.SeverityWarning:
		prefix = color.YellowString("[WARNING]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	site := rec.Service
	if rec.Operation != "" {
		site += "." + rec.Operation
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] %s: %s", prefix, rec.Timestamp, site, rec.ErrorType, rec.Message)
	if rec.FunctionName != "" {
		fmt.Fprintf(&b, " (%s:%d)", rec.FunctionName, rec.LineNumber)
	}
	b.WriteString(" " + color.HiBlackString(rec.CorrelationID) + "\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.out, b.String())
	return err
}
