package playbook

import (
	"context"
	"fmt"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// WorkflowCalls are the call identities of the simulated order workflow, in
// chain order.
var WorkflowCalls = []string{
	"inventory.check",
	"payments.capture",
	"erp.record",
	"shipping.schedule",
}

// SeedDefaults populates store with a retry procedure for every retryable
// (call, kind) pair of the order workflow. Existing procedures are left
// untouched; the harness learns better confidence scores over time.
func SeedDefaults(ctx context.Context, store Store) (int, error) {
	seeded := 0
	for _, call := range WorkflowCalls {
		for _, kind := range domain.FailureKinds {
			if !kind.Retryable() {
				continue
			}
			if _, found, err := store.Lookup(ctx, call, kind); err != nil {
				return seeded, err
			} else if found {
				continue
			}

			p := domain.Procedure{
				ScenarioName: fmt.Sprintf("%s %s recovery", call, kind),
				Pattern: domain.FailurePattern{
					CallIdentity: call,
					FailureKind:  kind,
					ContextNote:  "seeded default",
				},
				Steps: []string{
					"retry with exponential backoff",
					"escalate if retries exhausted",
				},
				Confidence:  0.5,
				MaxAttempts: 3,
			}
			if err := store.Save(ctx, p); err != nil {
				return seeded, err
			}
			seeded++
		}
	}
	return seeded, nil
}
