// Package stats aggregates experiment results online, without retaining the
// individual results. Memory is bounded by the number of distinct
// (failureRate, variant) keys, never by the repetition count.
package stats

import (
	"math"
	"strconv"
	"sync"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// Key identifies one experiment cell.
type Key struct {
	FailureRate float64
	Variant     domain.Variant
}

// Metric summarizes one numeric field of a cell.
type Metric struct {
	Mean   float64    `json:"mean"`
	StdDev float64    `json:"std_dev"`
	Count  int64      `json:"count"`
	CI95   [2]float64 `json:"ci95"`
}

// Summary maps metric name to its aggregate for one cell.
type Summary map[string]Metric

// welford tracks count, running mean and sum of squared deviations with
// Welford's online update. Single pass, numerically stable.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// stdDev returns the sample standard deviation (n-1 denominator).
func (w *welford) stdDev() float64 {
	if w.n < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.n-1))
}

func (w *welford) metric() Metric {
	sd := w.stdDev()
	m := Metric{Mean: w.mean, StdDev: sd, Count: w.n}
	if w.n > 0 {
		margin := 1.96 * sd / math.Sqrt(float64(w.n))
		m.CI95 = [2]float64{w.mean - margin, w.mean + margin}
	}
	return m
}

// cell holds the per-key accumulators. Fixed size regardless of fold count.
type cell struct {
	success         welford
	duration        welford
	calls           welford
	inconsistencies welford
}

// Aggregator folds results as they complete. Contention is bounded by the
// key count, not the repetition count; one mutex is enough for the handful
// of cells a parameter sweep produces.
type Aggregator struct {
	mu    sync.Mutex
	cells map[Key]*cell
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{cells: make(map[Key]*cell)}
}

// Fold incorporates one result and discards it.
func (a *Aggregator) Fold(r domain.ExperimentResult) {
	key := Key{FailureRate: r.FailureRate, Variant: r.Variant}

	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.cells[key]
	if !ok {
		c = &cell{}
		a.cells[key] = c
	}

	success := 0.0
	if r.Success {
		success = 1.0
	}
	c.success.add(success)
	c.duration.add(r.DurationSeconds)
	c.calls.add(float64(r.CallCount))
	c.inconsistencies.add(float64(r.InconsistencyCount))
}

// KeyCount returns the number of distinct cells seen so far.
func (a *Aggregator) KeyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cells)
}

// Snapshot returns the current aggregate per cell. Callable at any time;
// ongoing folds only block for the copy.
func (a *Aggregator) Snapshot() map[Key]Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[Key]Summary, len(a.cells))
	for key, c := range a.cells {
		out[key] = Summary{
			"success_rate":        c.success.metric(),
			"duration_seconds":    c.duration.metric(),
			"call_count":          c.calls.metric(),
			"inconsistency_count": c.inconsistencies.metric(),
		}
	}
	return out
}

// Document renders the snapshot as the summary layout of the report file:
// failure rate, then variant, then metric name.
func (a *Aggregator) Document() map[string]map[string]Summary {
	doc := make(map[string]map[string]Summary)
	for key, summary := range a.Snapshot() {
		rate := strconv.FormatFloat(key.FailureRate, 'g', -1, 64)
		if doc[rate] == nil {
			doc[rate] = make(map[string]Summary)
		}
		doc[rate][string(key.Variant)] = summary
	}
	return doc
}
