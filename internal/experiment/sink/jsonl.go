package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// JSONL appends one JSON object per line to a file. Serialized by a mutex:
// the runner's consumer goroutine is the only writer in practice, the lock
// just keeps the sink safe if that ever changes.
type JSONL struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

// NewJSONL opens (or creates) the file at path for appending.
func NewJSONL(path string) (*JSONL, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sink dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", path, err)
	}
	return &JSONL{f: f, w: bufio.NewWriter(f), path: path}, nil
}

// Append implements Sink. Each record is flushed through to the file before
// returning, so a record reported as written is on its way to disk before the
// aggregator ever sees it.
func (s *JSONL) Append(ctx context.Context, r domain.ExperimentResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result %d: %w", r.RunID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write sink %s: %w", s.path, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write sink %s: %w", s.path, err)
	}
	return s.w.Flush()
}

// Close flushes and closes the file.
func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Path returns the sink's file path.
func (s *JSONL) Path() string { return s.path }
