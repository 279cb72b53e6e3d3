// Package sink persists experiment results as they complete. Sinks are
// append-only and streamable: writing a row never requires reading earlier
// rows back.
package sink

import (
	"context"
	"fmt"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// Sink receives one record per repetition, in completion order. Consumers
// must not assume row order reflects RunID order.
type Sink interface {
	Append(ctx context.Context, r domain.ExperimentResult) error
	Close() error
}

// Multi fans each record out to several sinks. A failure in any sink is a
// run-level failure; partial writes across sinks are acceptable because every
// sink is individually append-only.
type Multi struct {
	sinks []Sink
}

// NewMulti combines sinks into one.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Append implements Sink.
func (m *Multi) Append(ctx context.Context, r domain.ExperimentResult) error {
	for _, s := range m.sinks {
		if err := s.Append(ctx, r); err != nil {
			return fmt.Errorf("sink append: %w", err)
		}
	}
	return nil
}

// Close closes every sink, returning the first error.
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
