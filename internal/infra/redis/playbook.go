package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// proceduresKey is the hash holding all procedures, field = procedure ID.
const proceduresKey = "playbook:procedures"

// PlaybookStore is a Redis-backed strategy store for deployments where
// several harness processes learn into one shared playbook. Bookkeeping
// updates are last-write-wins; the recovery content itself is append/replace
// by ID, so torn reads cannot mix two procedures.
type PlaybookStore struct {
	client *Client
	now    func() time.Time
}

// NewPlaybookStore creates a store on top of an existing client.
func NewPlaybookStore(client *Client) *PlaybookStore {
	return &PlaybookStore{client: client, now: time.Now}
}

// Lookup returns the best procedure for (callIdentity, kind) and bumps its
// usage bookkeeping.
func (s *PlaybookStore) Lookup(
	ctx context.Context,
	callIdentity string,
	kind domain.FailureKind,
) (domain.Procedure, bool, error) {
	all, err := s.load(ctx)
	if err != nil {
		return domain.Procedure{}, false, err
	}

	var matches []domain.Procedure
	for _, p := range all {
		if p.Pattern.CallIdentity == callIdentity && p.Pattern.FailureKind == kind {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return domain.Procedure{}, false, nil
	}

	winner := matches[0]
	for _, p := range matches[1:] {
		if p.Confidence > winner.Confidence ||
			(p.Confidence == winner.Confidence && p.LastUsedAt.After(winner.LastUsedAt)) {
			winner = p
		}
	}

	winner.UsageCount++
	winner.LastUsedAt = s.now()
	if err := s.write(ctx, winner); err != nil {
		return domain.Procedure{}, false, err
	}
	return winner.Clone(), true, nil
}

// Save appends or replaces a procedure by ID.
func (s *PlaybookStore) Save(ctx context.Context, p domain.Procedure) error {
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
		p.CreatedAt = s.now()
	}
	return s.write(ctx, p)
}

// All returns every stored procedure.
func (s *PlaybookStore) All(ctx context.Context) ([]domain.Procedure, error) {
	return s.load(ctx)
}

func (s *PlaybookStore) load(ctx context.Context) ([]domain.Procedure, error) {
	fields, err := s.client.rdb.HGetAll(ctx, proceduresKey).Result()
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Path: proceduresKey, Err: err}
	}

	out := make([]domain.Procedure, 0, len(fields))
	for id, raw := range fields {
		var p domain.Procedure
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, &domain.PersistenceError{
				Op:   "load",
				Path: proceduresKey + "/" + id,
				Err:  err,
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PlaybookStore) write(ctx context.Context, p domain.Procedure) error {
	data, err := json.Marshal(p)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: proceduresKey, Err: err}
	}
	if err := s.client.rdb.HSet(ctx, proceduresKey, p.ID, data).Err(); err != nil {
		return &domain.PersistenceError{Op: "save", Path: proceduresKey, Err: err}
	}
	return nil
}
