// Package breaker implements a circuit breaker guarding the downstream calls
// of one repetition. State is a liveness signal, never persisted.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// State is the breaker's position in its lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the breaker thresholds. Never hardcoded at call sites.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// DefaultConfig matches the thresholds the original incident tooling shipped
// with: open after 5 consecutive failures, 60s cooldown, close on first
// half-open success.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	return c
}

// Downstream is the protected call. The breaker performs no retries; retrying
// is the caller's concern.
type Downstream func(ctx context.Context) error

// StateChangeFunc observes transitions, e.g. for logging or metrics.
type StateChangeFunc func(name string, from, to State)

// Breaker wraps downstream calls and short-circuits while open. Safe for
// concurrent use, though repetitions normally own a private instance.
type Breaker struct {
	name string
	cfg  Config

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	openedAt      time.Time
	halfOpenInUse bool
	onStateChange StateChangeFunc
	now           func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// OnStateChange registers a transition hook.
func OnStateChange(fn StateChangeFunc) Option {
	return func(b *Breaker) { b.onStateChange = fn }
}

// WithClock overrides the breaker's clock. Tests use this to elapse cooldowns
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New creates a breaker in the closed state.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		state: StateClosed,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs call through the breaker. While open and inside the cooldown
// window it returns domain.ErrCircuitOpen without invoking call at all; that
// short-circuit is what keeps load off a failing dependency. After the
// cooldown, exactly one trial call is admitted in half-open.
func (b *Breaker) Execute(ctx context.Context, callIdentity string, call Downstream) error {
	if err := b.admit(); err != nil {
		return fmt.Errorf("%s: %w", callIdentity, err)
	}

	err := call(ctx)
	b.recordOutcome(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return domain.ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.halfOpenInUse = true
		return nil
	case StateHalfOpen:
		// One trial at a time while probing.
		if b.halfOpenInUse {
			return domain.ErrCircuitOpen
		}
		b.halfOpenInUse = true
		return nil
	}
	return nil
}

func (b *Breaker) recordOutcome(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.halfOpenInUse = false
		if !success {
			// Trial failed: reopen and restart the cooldown clock.
			b.successes = 0
			b.openedAt = b.now()
			b.transition(StateOpen)
			return
		}
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.successes = 0
			b.failures = 0
			b.transition(StateClosed)
		}
	case StateOpen:
		// A call admitted just before the transition can report here; the
		// open state already reflects the failure storm, nothing to do.
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		// Hook runs under the lock; keep hooks cheap.
		b.onStateChange(b.name, from, to)
	}
}
