// Package playbook stores and serves recovery procedures. The store only
// stores and serves: applying recovery steps is the orchestrator's decision.
package playbook

import (
	"context"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// Config selects and configures the playbook backend.
type Config struct {
	Backend string `yaml:"backend"` // "file" (default) or "redis"
	Path    string `yaml:"path"`
}

// Store is the strategy store. Lookup is a read-through mutation: it bumps
// usage bookkeeping on the matched procedure, so it is not idempotent with
// respect to UsageCount/LastUsedAt. The recovery content it returns is.
type Store interface {
	// Lookup returns the best procedure for (callIdentity, kind). Absence is
	// a normal outcome, reported via the bool, never an error.
	Lookup(ctx context.Context, callIdentity string, kind domain.FailureKind) (domain.Procedure, bool, error)

	// Save appends or replaces a procedure by ID.
	Save(ctx context.Context, p domain.Procedure) error

	// All returns a copy of every stored procedure.
	All(ctx context.Context) ([]domain.Procedure, error)
}

// best picks the winner among matching procedures: highest confidence, ties
// broken by most recent LastUsedAt.
func best(matches []domain.Procedure) (domain.Procedure, bool) {
	if len(matches) == 0 {
		return domain.Procedure{}, false
	}
	winner := matches[0]
	for _, p := range matches[1:] {
		if p.Confidence > winner.Confidence {
			winner = p
			continue
		}
		if p.Confidence == winner.Confidence && p.LastUsedAt.After(winner.LastUsedAt) {
			winner = p
		}
	}
	return winner, true
}
