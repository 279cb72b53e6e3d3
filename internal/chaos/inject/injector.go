// Package inject implements deterministic, seed-controlled failure injection.
//
// Every repetition owns its own generator, seeded from (seed, repetitionIndex),
// so concurrent repetitions never interleave draws and each repetition is
// reproducible regardless of scheduling.
package inject

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// Config controls when and how failures are injected.
type Config struct {
	Enabled      bool                           `yaml:"enabled"`
	FailureRate  float64                        `yaml:"failure_rate"`
	Seed         int64                          `yaml:"seed"`
	KindWeights  map[domain.FailureKind]float64 `yaml:"kind_weights"`
	BaseDelay    time.Duration                  `yaml:"base_delay"`
	JitterFactor float64                        `yaml:"jitter_factor"`
	// MaxInjectedLatency caps the simulated latency attached to a failure.
	MaxInjectedLatency time.Duration `yaml:"max_injected_latency"`
}

// weightTolerance bounds how far KindWeights may drift from summing to 1.
const weightTolerance = 1e-9

// Validate checks the config once at construction. Malformed rates or weights
// are fatal here, never deferred to the first Decide call.
func (c Config) Validate() error {
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failure_rate must be in [0,1], got %v", c.FailureRate)
	}
	if c.JitterFactor < 0 {
		return fmt.Errorf("jitter_factor must be >= 0, got %v", c.JitterFactor)
	}
	if len(c.KindWeights) == 0 {
		return nil // defaults applied in New
	}
	sum := 0.0
	for kind, w := range c.KindWeights {
		if !kind.Valid() {
			return fmt.Errorf("unknown failure kind %q in kind_weights", kind)
		}
		if w < 0 {
			return fmt.Errorf("kind_weights[%s] must be >= 0, got %v", kind, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("kind_weights must sum to 1, got %v", sum)
	}
	return nil
}

// DefaultKindWeights mirrors the failure mix observed in production incident
// history: mostly transient availability errors, occasional permanent ones.
func DefaultKindWeights() map[domain.FailureKind]float64 {
	return map[domain.FailureKind]float64{
		domain.ServiceUnavailable: 0.4,
		domain.RateLimited:        0.2,
		domain.Timeout:            0.3,
		domain.Malformed:          0.1,
	}
}

// Outcome is the injector's decision for a single call.
type Outcome struct {
	Fail            bool
	Kind            domain.FailureKind
	InjectedLatency time.Duration
}

// Injector decides failures for the calls of one repetition. Not safe for
// concurrent use; each repetition constructs its own.
type Injector struct {
	cfg Config
	rng *rand.Rand
}

// New validates cfg and builds an injector for one repetition. The generator
// is seeded from (cfg.Seed, repetition) only; no process-wide state.
func New(cfg Config, repetition uint64) (*Injector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid injection config: %w", err)
	}
	if len(cfg.KindWeights) == 0 {
		cfg.KindWeights = DefaultKindWeights()
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxInjectedLatency <= 0 {
		cfg.MaxInjectedLatency = 2 * time.Second
	}
	return &Injector{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(uint64(cfg.Seed), repetition)),
	}, nil
}

// Decide returns the injection outcome for one downstream call. Draw order is
// fixed (failure check, then kind, then latency) so sequences replay exactly.
func (i *Injector) Decide(callIdentity string) Outcome {
	if !i.cfg.Enabled || i.cfg.FailureRate <= 0 {
		return Outcome{}
	}
	if i.cfg.FailureRate < 1 && i.rng.Float64() >= i.cfg.FailureRate {
		return Outcome{}
	}
	kind := i.pickKind()
	latency := time.Duration(i.rng.Float64() * float64(i.cfg.MaxInjectedLatency))
	return Outcome{Fail: true, Kind: kind, InjectedLatency: latency}
}

// pickKind selects a failure kind by weighted draw. Iterates the fixed
// domain.FailureKinds slice; ranging over the weights map would make the
// sequence depend on map iteration order.
func (i *Injector) pickKind() domain.FailureKind {
	u := i.rng.Float64()
	acc := 0.0
	for _, kind := range domain.FailureKinds {
		acc += i.cfg.KindWeights[kind]
		if u < acc {
			return kind
		}
	}
	// Rounding can leave u just past the last bucket.
	return domain.FailureKinds[len(domain.FailureKinds)-1]
}

// JitteredBackoff returns the delay before retry number attempt (0-indexed):
// base * 2^attempt plus a uniform jitter in [0, base*2^attempt*jitterFactor).
// Drawn from the repetition's own generator, so simultaneous retries across
// repetitions decorrelate instead of forming a synchronized retry storm.
func (i *Injector) JitteredBackoff(attempt int) time.Duration {
	base := float64(i.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	jitter := 0.0
	if i.cfg.JitterFactor > 0 {
		jitter = i.rng.Float64() * base * i.cfg.JitterFactor
	}
	return time.Duration(base + jitter)
}

// FailureRate exposes the configured rate, e.g. for result records.
func (i *Injector) FailureRate() float64 { return i.cfg.FailureRate }
