package experiment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietddude/chaoslab/internal/chaos/breaker"
	"github.com/vietddude/chaoslab/internal/chaos/inject"
	"github.com/vietddude/chaoslab/internal/chaos/playbook"
	"github.com/vietddude/chaoslab/internal/core/domain"
	"github.com/vietddude/chaoslab/internal/experiment/metrics"
)

// Step is one link of the protected workflow chain.
type Step struct {
	Call   string
	Params map[string]any
}

// orderWorkflow is the simulated order chain. Strictly ordered: a step runs
// only after every earlier step succeeded.
var orderWorkflow = []Step{
	{Call: "inventory.check", Params: map[string]any{"sku": "WIDGET-A", "qty": 5}},
	{Call: "payments.capture", Params: map[string]any{"amount": 129.90}},
	{Call: "erp.record", Params: map[string]any{"sku": "WIDGET-A", "qty": 5}},
	{Call: "shipping.schedule", Params: map[string]any{"carrier": "default"}},
}

// unsafeFailurePoints are steps whose failure leaves money captured without
// goods moving: the inconsistency the strategy-aware caller is meant to avoid.
var unsafeFailurePoints = map[string]bool{
	"erp.record":        true,
	"shipping.schedule": true,
}

// WorkflowResult is the outcome of one workflow repetition.
type WorkflowResult struct {
	Success            bool
	CallCount          int
	FailedAt           string
	InconsistencyCount int
}

// Caller runs the workflow chain through a breaker against an executor.
type Caller interface {
	RunWorkflow(ctx context.Context, br *breaker.Breaker, exec ToolExecutor) WorkflowResult
}

// NewCaller builds the caller for a variant. The strategy-aware caller needs
// the playbook store and the repetition's injector (for backoff draws).
func NewCaller(
	variant domain.Variant,
	store playbook.Store,
	inj *inject.Injector,
	log *slog.Logger,
) Caller {
	if variant == domain.VariantStrategyAware {
		return &strategyAwareCaller{store: store, inj: inj, log: log}
	}
	return &baselineCaller{}
}

// inconsistencies applies the safety rule to a failed step.
func inconsistencies(failedAt string) int {
	if unsafeFailurePoints[failedAt] {
		return 1
	}
	return 0
}

// baselineCaller makes a single attempt per step and gives up on the first
// error. The naive comparison point.
type baselineCaller struct{}

func (c *baselineCaller) RunWorkflow(
	ctx context.Context,
	br *breaker.Breaker,
	exec ToolExecutor,
) WorkflowResult {
	res := WorkflowResult{}
	for _, step := range orderWorkflow {
		err := br.Execute(ctx, step.Call, func(ctx context.Context) error {
			res.CallCount++
			_, callErr := exec.Execute(ctx, step.Call, step.Params)
			return callErr
		})
		if err != nil {
			res.FailedAt = step.Call
			res.InconsistencyCount = inconsistencies(step.Call)
			return res
		}
	}
	res.Success = true
	return res
}

// defaultMaxAttempts applies when no procedure covers a failure: one retry.
const defaultMaxAttempts = 2

// strategyAwareCaller consults the playbook after a retryable failure and
// retries with jittered backoff. It follows the procedure's retry guidance;
// it never executes recovery steps itself.
type strategyAwareCaller struct {
	store playbook.Store
	inj   *inject.Injector
	log   *slog.Logger
}

func (c *strategyAwareCaller) RunWorkflow(
	ctx context.Context,
	br *breaker.Breaker,
	exec ToolExecutor,
) WorkflowResult {
	res := WorkflowResult{}
	for _, step := range orderWorkflow {
		if err := c.runStep(ctx, br, exec, step, &res); err != nil {
			res.FailedAt = step.Call
			res.InconsistencyCount = inconsistencies(step.Call)
			return res
		}
	}
	res.Success = true
	return res
}

func (c *strategyAwareCaller) runStep(
	ctx context.Context,
	br *breaker.Breaker,
	exec ToolExecutor,
	step Step,
	res *WorkflowResult,
) error {
	maxAttempts := defaultMaxAttempts

	for attempt := 0; ; attempt++ {
		err := br.Execute(ctx, step.Call, func(ctx context.Context) error {
			res.CallCount++
			_, callErr := exec.Execute(ctx, step.Call, step.Params)
			return callErr
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retryable := true
		if inj, ok := domain.AsInjected(err); ok {
			retryable = inj.Kind.Retryable()
			if proc, found := c.consult(ctx, step.Call, inj.Kind); found {
				if proc.MaxAttempts > maxAttempts {
					maxAttempts = proc.MaxAttempts
				}
			}
		}
		// An open circuit is transient by definition: back off and let the
		// cooldown run.
		if errors.Is(err, domain.ErrCircuitOpen) {
			retryable = true
		}

		if !retryable || attempt+1 >= maxAttempts {
			return err
		}
		if serr := sleep(ctx, c.inj.JitteredBackoff(attempt)); serr != nil {
			return serr
		}
	}
}

// consult looks up a procedure, tolerating store errors: a broken playbook
// degrades the caller to its default policy instead of failing the workflow.
func (c *strategyAwareCaller) consult(
	ctx context.Context,
	call string,
	kind domain.FailureKind,
) (domain.Procedure, bool) {
	proc, found, err := c.store.Lookup(ctx, call, kind)
	if err != nil {
		c.log.Warn("playbook lookup failed", "call", call, "kind", kind, "error", err)
		metrics.PlaybookLookupsTotal.WithLabelValues("error").Inc()
		return domain.Procedure{}, false
	}
	if !found {
		metrics.PlaybookLookupsTotal.WithLabelValues("miss").Inc()
		return domain.Procedure{}, false
	}
	metrics.PlaybookLookupsTotal.WithLabelValues("hit").Inc()
	return proc, true
}
