package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// ResultRepo appends experiment results to the experiment_results table.
// Satisfies the runner's sink interface.
type ResultRepo struct {
	db *DB
}

// NewResultRepo creates a ResultRepo.
func NewResultRepo(db *DB) *ResultRepo {
	return &ResultRepo{db: db}
}

const insertResult = `
INSERT INTO experiment_results (
	run_id, caller_variant, failure_rate, success,
	duration_seconds, call_count, inconsistency_count, seed, failed_at
) VALUES (
	:run_id, :caller_variant, :failure_rate, :success,
	:duration_seconds, :call_count, :inconsistency_count, :seed, :failed_at
)`

// Append implements the sink interface. Rows arrive in completion order;
// run_id is the sequence key, there is no ordering constraint on insert.
func (r *ResultRepo) Append(ctx context.Context, res domain.ExperimentResult) error {
	if _, err := r.db.NamedExecContext(ctx, insertResult, res); err != nil {
		return fmt.Errorf("insert result %d: %w", res.RunID, err)
	}
	return nil
}

// Close is a no-op; the harness owns the DB lifecycle.
func (r *ResultRepo) Close() error { return nil }
