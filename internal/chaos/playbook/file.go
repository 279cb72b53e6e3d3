package playbook

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// document is the on-disk shape of the playbook file.
type document struct {
	Procedures []domain.Procedure `json:"procedures"`
}

// FileStore is a JSON-backed Store. Read-mostly: concurrent lookups share a
// RWMutex; saves rewrite the whole document atomically (temp file + rename),
// so a crash mid-write never corrupts the previous document.
type FileStore struct {
	path string

	mu         sync.RWMutex
	procedures map[string]domain.Procedure

	now func() time.Time
}

// Load opens the playbook at path. A missing or empty file yields an empty,
// valid store with no error; absence of learned knowledge is a normal startup
// state. A malformed file also yields an empty usable store, but the
// PersistenceError is returned so the caller can log it.
func Load(path string) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		procedures: make(map[string]domain.Procedure),
		now:        time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, &domain.PersistenceError{Op: "load", Path: path, Err: err}
	}
	if len(data) == 0 {
		return s, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return s, &domain.PersistenceError{Op: "load", Path: path, Err: err}
	}
	for _, p := range doc.Procedures {
		s.procedures[p.ID] = p
	}
	return s, nil
}

// Lookup implements Store. Bookkeeping mutations are held in memory and
// written out on the next Save or Flush; lookups themselves never touch disk.
func (s *FileStore) Lookup(
	ctx context.Context,
	callIdentity string,
	kind domain.FailureKind,
) (domain.Procedure, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []domain.Procedure
	for _, p := range s.procedures {
		if p.Pattern.CallIdentity == callIdentity && p.Pattern.FailureKind == kind {
			matches = append(matches, p)
		}
	}

	winner, ok := best(matches)
	if !ok {
		return domain.Procedure{}, false, nil
	}

	winner.UsageCount++
	winner.LastUsedAt = s.now()
	s.procedures[winner.ID] = winner

	return winner.Clone(), true, nil
}

// Save implements Store. Assigns an ID and CreatedAt if missing, then
// persists the full document.
func (s *FileStore) Save(ctx context.Context, p domain.Procedure) error {
	if err := validate(&p, s.now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.procedures[p.ID] = p
	return s.persist()
}

// All implements Store.
func (s *FileStore) All(ctx context.Context) ([]domain.Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Procedure, 0, len(s.procedures))
	for _, p := range s.procedures {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Flush writes the current in-memory state (including lookup bookkeeping)
// back to disk.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// persist must be called with s.mu held for writing.
func (s *FileStore) persist() error {
	doc := document{Procedures: make([]domain.Procedure, 0, len(s.procedures))}
	for _, p := range s.procedures {
		doc.Procedures = append(doc.Procedures, p)
	}
	sort.Slice(doc.Procedures, func(i, j int) bool {
		return doc.Procedures[i].ID < doc.Procedures[j].ID
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	// Write-temp-then-rename keeps the previous document intact on crash.
	tmp, err := os.CreateTemp(dir, ".playbook-*.json")
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

// validate normalizes and checks a procedure before storage.
func validate(p *domain.Procedure, now func() time.Time) error {
	if p.Pattern.CallIdentity == "" {
		return fmt.Errorf("procedure missing call identity")
	}
	if !p.Pattern.FailureKind.Valid() {
		return fmt.Errorf("procedure has unknown failure kind %q", p.Pattern.FailureKind)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence_score must be in [0,1], got %v", p.Confidence)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	return nil
}
