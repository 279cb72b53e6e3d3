package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/chaoslab/internal/chaos/breaker"
	"github.com/vietddude/chaoslab/internal/chaos/inject"
	"github.com/vietddude/chaoslab/internal/chaos/playbook"
	"github.com/vietddude/chaoslab/internal/core/domain"
	"github.com/vietddude/chaoslab/internal/experiment/metrics"
	"github.com/vietddude/chaoslab/internal/experiment/sink"
	"github.com/vietddude/chaoslab/internal/experiment/stats"
)

// Config holds the experiment matrix settings.
type Config struct {
	Seed               int64            `yaml:"seed"`
	FailureRates       []float64        `yaml:"failure_rates"`
	RepetitionsPerRate int              `yaml:"repetitions_per_rate"`
	Variants           []domain.Variant `yaml:"variants"`
	Concurrency        int              `yaml:"concurrency"`
}

// Validate rejects a malformed matrix before any repetition runs.
func (c Config) Validate() error {
	if len(c.FailureRates) == 0 {
		return fmt.Errorf("failure_rates must not be empty")
	}
	for _, rate := range c.FailureRates {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("failure rate %v outside [0,1]", rate)
		}
	}
	if c.RepetitionsPerRate <= 0 {
		return fmt.Errorf("repetitions_per_rate must be > 0, got %d", c.RepetitionsPerRate)
	}
	if len(c.Variants) == 0 {
		return fmt.Errorf("variants must not be empty")
	}
	for _, v := range c.Variants {
		if !v.Valid() {
			return fmt.Errorf("unknown caller variant %q", v)
		}
	}
	return nil
}

// Runner drives the experiment matrix. Each repetition owns a fresh injector
// and breaker, so repetitions stay statistically independent and may run in
// any order or in parallel.
type Runner struct {
	cfg        Config
	injectCfg  inject.Config // template; FailureRate and Seed set per repetition
	breakerCfg breaker.Config
	store      playbook.Store
	out        sink.Sink
	agg        *stats.Aggregator
	exec       ToolExecutor
	log        *slog.Logger
}

// NewRunner builds a runner. exec is the real downstream; the runner wraps it
// with a chaos layer per repetition.
func NewRunner(
	cfg Config,
	injectCfg inject.Config,
	breakerCfg breaker.Config,
	store playbook.Store,
	out sink.Sink,
	agg *stats.Aggregator,
	exec ToolExecutor,
	log *slog.Logger,
) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment config: %w", err)
	}
	// Surface malformed weights here, not on the first repetition.
	probe := injectCfg
	probe.FailureRate = 0
	probe.Seed = cfg.Seed
	if err := probe.Validate(); err != nil {
		return nil, fmt.Errorf("invalid injection config: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if exec == nil {
		exec = OrderServices{}
	}
	return &Runner{
		cfg:        cfg,
		injectCfg:  injectCfg,
		breakerCfg: breakerCfg,
		store:      store,
		out:        out,
		agg:        agg,
		exec:       exec,
		log:        log,
	}, nil
}

// job is one scheduled repetition. RunID is assigned in matrix order at
// submission time, making it the authoritative sequence key even though rows
// hit the sink in completion order.
type job struct {
	runID   int64
	rateIdx int
	rate    float64
	variant domain.Variant
	rep     int
}

// Run executes the whole matrix. Not restartable: a second call would re-seed
// from scratch. Per-repetition failures are data; only sink or setup failures
// abort the run. Cancelling ctx stops scheduling new repetitions, lets
// in-flight ones wind down, and returns the context error.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan domain.ExperimentResult)
	consumerDone := make(chan error, 1)

	// Single consumer: sink write strictly precedes the aggregation fold, so
	// a crash between the two can lose an aggregate update but never a row
	// the summary already reflects.
	go func() {
		var consumeErr error
		for res := range results {
			if consumeErr != nil {
				continue // drain so workers never block
			}
			if err := r.out.Append(runCtx, res); err != nil {
				consumeErr = fmt.Errorf("result sink unwritable: %w", err)
				cancel()
				continue
			}
			metrics.SinkWritesTotal.Inc()
			r.agg.Fold(res)
		}
		consumerDone <- consumeErr
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(r.cfg.Concurrency)

	var runID int64
	total := len(r.cfg.FailureRates) * len(r.cfg.Variants) * r.cfg.RepetitionsPerRate
	r.log.Info("starting experiment run",
		"rates", len(r.cfg.FailureRates),
		"variants", len(r.cfg.Variants),
		"repetitions_per_rate", r.cfg.RepetitionsPerRate,
		"total", total,
		"concurrency", r.cfg.Concurrency,
	)

schedule:
	for rateIdx, rate := range r.cfg.FailureRates {
		for rep := 0; rep < r.cfg.RepetitionsPerRate; rep++ {
			for _, variant := range r.cfg.Variants {
				if gctx.Err() != nil {
					break schedule
				}
				runID++
				j := job{
					runID:   runID,
					rateIdx: rateIdx,
					rate:    rate,
					variant: variant,
					rep:     rep,
				}
				g.Go(func() error {
					res, err := r.repetition(gctx, j)
					if err != nil {
						return err
					}
					select {
					case results <- res:
						return nil
					case <-gctx.Done():
						return gctx.Err()
					}
				})
			}
		}
	}

	workerErr := g.Wait()
	close(results)
	consumeErr := <-consumerDone

	if consumeErr != nil {
		return consumeErr
	}
	if workerErr != nil {
		return workerErr
	}
	return ctx.Err()
}

// repetition runs one workflow instance with fresh, repetition-local chaos
// state. The per-repetition seed follows the original sweep scheme:
// base + rateIndex*1000 + repetitionIndex, shared by both variants so the
// comparison is paired draw-for-draw.
func (r *Runner) repetition(ctx context.Context, j job) (domain.ExperimentResult, error) {
	injCfg := r.injectCfg
	injCfg.FailureRate = j.rate
	injCfg.Seed = r.cfg.Seed + int64(j.rateIdx)*1000 + int64(j.rep)

	inj, err := inject.New(injCfg, uint64(j.rep))
	if err != nil {
		return domain.ExperimentResult{}, err
	}

	br := breaker.New(
		fmt.Sprintf("run-%d", j.runID),
		r.breakerCfg,
		breaker.OnStateChange(func(name string, from, to breaker.State) {
			metrics.BreakerTransitionsTotal.WithLabelValues(to.String()).Inc()
			r.log.Debug("breaker transition", "breaker", name, "from", from, "to", to)
		}),
	)

	caller := NewCaller(j.variant, r.store, inj, r.log)
	chaos := NewChaosExecutor(r.exec, inj)

	start := time.Now()
	wf := caller.RunWorkflow(ctx, br, chaos)
	elapsed := time.Since(start)

	outcome := "failure"
	if wf.Success {
		outcome = "success"
	}
	metrics.RepetitionsTotal.WithLabelValues(string(j.variant), outcome).Inc()
	metrics.RepetitionDuration.WithLabelValues(string(j.variant)).Observe(elapsed.Seconds())

	return domain.ExperimentResult{
		RunID:              j.runID,
		Variant:            j.variant,
		FailureRate:        j.rate,
		Success:            wf.Success,
		DurationSeconds:    elapsed.Seconds(),
		CallCount:          wf.CallCount,
		InconsistencyCount: wf.InconsistencyCount,
		Seed:               injCfg.Seed,
		FailedAt:           wf.FailedAt,
	}, nil
}
