// Package experiment drives batches of workflow repetitions across a matrix
// of failure rates and caller variants, streaming results into a durable sink
// and an online aggregator.
package experiment

import (
	"context"
	"time"

	"github.com/vietddude/chaoslab/internal/chaos/inject"
	"github.com/vietddude/chaoslab/internal/core/domain"
	"github.com/vietddude/chaoslab/internal/experiment/metrics"
)

// ToolExecutor executes one downstream tool call. The reasoning layer that
// decides what to do after a failure lives behind this interface, outside the
// harness.
type ToolExecutor interface {
	Execute(ctx context.Context, callIdentity string, params map[string]any) (map[string]any, error)
}

// OrderServices simulates the downstream services of the order workflow.
// Always succeeds; failures come from the chaos layer wrapped around it.
type OrderServices struct{}

// Execute implements ToolExecutor with canned responses per service.
func (OrderServices) Execute(
	ctx context.Context,
	callIdentity string,
	params map[string]any,
) (map[string]any, error) {
	switch callIdentity {
	case "inventory.check":
		return map[string]any{"available": 100, "reserved": 5}, nil
	case "payments.capture":
		return map[string]any{"transaction_id": "txn-001", "captured": true}, nil
	case "erp.record":
		return map[string]any{"order_id": 999, "recorded": true}, nil
	case "shipping.schedule":
		return map[string]any{"shipment_id": "shp-001", "eta_days": 3}, nil
	default:
		return map[string]any{"ok": true}, nil
	}
}

// ChaosExecutor interposes a failure injector between the workflow and the
// real executor. From the caller's perspective injected failures are ordinary
// downstream errors; nothing above this layer may special-case chaos.
type ChaosExecutor struct {
	next ToolExecutor
	inj  *inject.Injector
}

// NewChaosExecutor wraps next with inj.
func NewChaosExecutor(next ToolExecutor, inj *inject.Injector) *ChaosExecutor {
	return &ChaosExecutor{next: next, inj: inj}
}

// Execute implements ToolExecutor.
func (e *ChaosExecutor) Execute(
	ctx context.Context,
	callIdentity string,
	params map[string]any,
) (map[string]any, error) {
	outcome := e.inj.Decide(callIdentity)
	if !outcome.Fail {
		return e.next.Execute(ctx, callIdentity, params)
	}

	metrics.InjectionsTotal.WithLabelValues(string(outcome.Kind)).Inc()
	if err := sleep(ctx, outcome.InjectedLatency); err != nil {
		return nil, err
	}
	return nil, &domain.InjectedError{Call: callIdentity, Kind: outcome.Kind}
}

// sleep pauses for d, honoring cancellation. Simulated latency and backoff
// waits are the only deliberate pauses in a repetition.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
