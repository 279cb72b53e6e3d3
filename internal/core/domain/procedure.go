package domain

import "time"

// FailurePattern is the signature a stored procedure matches against.
type FailurePattern struct {
	CallIdentity string      `json:"call_identity"`
	FailureKind  FailureKind `json:"failure_kind"`
	ContextNote  string      `json:"context_note,omitempty"`
}

// Procedure is a stored recovery playbook entry. The store owns the canonical
// copy; lookups hand out value copies, so mutating a returned Procedure never
// touches the store.
type Procedure struct {
	ID           string         `json:"id"`
	ScenarioName string         `json:"scenario_name"`
	Pattern      FailurePattern `json:"failure_pattern"`
	Steps        []string       `json:"recovery_steps"`
	Confidence   float64        `json:"confidence_score"`
	MaxAttempts  int            `json:"max_attempts,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UsageCount   int            `json:"usage_count"`
	LastUsedAt   time.Time      `json:"last_used_at,omitempty"`
}

// Clone returns a deep copy of p.
func (p Procedure) Clone() Procedure {
	out := p
	out.Steps = append([]string(nil), p.Steps...)
	return out
}
