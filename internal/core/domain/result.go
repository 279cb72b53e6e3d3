package domain

// Variant identifies which caller implementation a repetition used.
type Variant string

const (
	// VariantBaseline makes a single attempt per workflow step.
	VariantBaseline Variant = "baseline"
	// VariantStrategyAware consults the playbook and retries with backoff.
	VariantStrategyAware Variant = "strategy_aware"
)

// Valid reports whether v is a known caller variant.
func (v Variant) Valid() bool {
	return v == VariantBaseline || v == VariantStrategyAware
}

// ExperimentResult is one row of experiment output: a single repetition of the
// protected workflow under a fixed (failureRate, variant) configuration.
// Immutable once produced. RunID is the authoritative sequence key; rows in the
// durable sink may appear in completion order, not RunID order.
type ExperimentResult struct {
	RunID              int64   `json:"run_id"              db:"run_id"`
	Variant            Variant `json:"caller_variant"      db:"caller_variant"`
	FailureRate        float64 `json:"failure_rate"        db:"failure_rate"`
	Success            bool    `json:"success"             db:"success"`
	DurationSeconds    float64 `json:"duration_seconds"    db:"duration_seconds"`
	CallCount          int     `json:"call_count"          db:"call_count"`
	InconsistencyCount int     `json:"inconsistency_count" db:"inconsistency_count"`
	Seed               int64   `json:"seed"                db:"seed"`
	FailedAt           string  `json:"failed_at,omitempty" db:"failed_at"`
}
