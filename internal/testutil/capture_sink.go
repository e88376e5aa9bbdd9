// Package testutil provides shared test utilities for faultline.
package testutil

import (
	"context"
	"sync"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// CaptureSink is an in-memory log sink for tests. It records every record it
// is sent and optionally fails or blocks on demand.
type CaptureSink struct {
	mu      sync.Mutex
	name    string
	records []types.LogRecord
	err     error
	block   chan struct{}
}

// NewCaptureSink creates a capture sink with the given name.
func NewCaptureSink(name string) *CaptureSink {
	return &CaptureSink{name: name}
}

func (s *CaptureSink) Name() string { return s.name }

// Send stores rec, or returns the configured error.
func (s *CaptureSink) Send(ctx context.Context, rec types.LogRecord) error {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

// FailWith makes subsequent sends return err. A nil err restores success.
func (s *CaptureSink) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Block makes sends wait until the returned function is called.
func (s *CaptureSink) Block() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.block = nil
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Records returns a copy of everything captured so far.
func (s *CaptureSink) Records() []types.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of captured records.
func (s *CaptureSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
