package inject

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

func testConfig(rate float64, seed int64) Config {
	return Config{
		Enabled:     true,
		FailureRate: rate,
		Seed:        seed,
		BaseDelay:   100 * time.Millisecond,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  testConfig(0.3, 42),
		},
		{
			name:    "rate below zero",
			cfg:     testConfig(-0.1, 42),
			wantErr: true,
		},
		{
			name:    "rate above one",
			cfg:     testConfig(1.1, 42),
			wantErr: true,
		},
		{
			name: "weights not summing to one",
			cfg: Config{
				Enabled:     true,
				FailureRate: 0.5,
				KindWeights: map[domain.FailureKind]float64{
					domain.Timeout:            0.5,
					domain.ServiceUnavailable: 0.2,
				},
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			cfg: Config{
				FailureRate: 0.5,
				KindWeights: map[domain.FailureKind]float64{
					"disk_full": 1.0,
				},
			},
			wantErr: true,
		},
		{
			name:    "negative jitter",
			cfg:     Config{FailureRate: 0.5, JitterFactor: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(testConfig(2.0, 1), 0); err == nil {
		t.Fatal("New() accepted failure_rate=2.0")
	}
}

// drawSequence runs n decisions plus backoffs and records everything.
func drawSequence(t *testing.T, cfg Config, rep uint64, n int) []Outcome {
	t.Helper()
	inj, err := New(cfg, rep)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	out := make([]Outcome, 0, n)
	for j := 0; j < n; j++ {
		out = append(out, inj.Decide("inventory.check"))
	}
	return out
}

func TestDecideDeterministic(t *testing.T) {
	cfg := testConfig(0.5, 42)
	cfg.JitterFactor = 0.5

	first := drawSequence(t, cfg, 7, 200)
	second := drawSequence(t, cfg, 7, 200)

	for j := range first {
		if first[j] != second[j] {
			t.Fatalf("draw %d differs: %+v vs %+v", j, first[j], second[j])
		}
	}
}

func TestDecideIndependentOfConcurrency(t *testing.T) {
	cfg := testConfig(0.5, 99)

	// Reference sequence for repetition 3, computed alone.
	want := drawSequence(t, cfg, 3, 100)

	// Same repetition computed while 16 other repetitions draw concurrently.
	var wg sync.WaitGroup
	for rep := uint64(10); rep < 26; rep++ {
		wg.Add(1)
		go func(rep uint64) {
			defer wg.Done()
			inj, err := New(cfg, rep)
			if err != nil {
				t.Errorf("New() failed: %v", err)
				return
			}
			for j := 0; j < 100; j++ {
				inj.Decide("payments.capture")
			}
		}(rep)
	}
	got := drawSequence(t, cfg, 3, 100)
	wg.Wait()

	for j := range want {
		if want[j] != got[j] {
			t.Fatalf("draw %d differs under concurrency: %+v vs %+v", j, want[j], got[j])
		}
	}
}

func TestDecideRateExtremes(t *testing.T) {
	never, err := New(testConfig(0.0, 1), 0)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 1000; j++ {
		if out := never.Decide("x"); out.Fail {
			t.Fatalf("rate 0.0 injected a failure at draw %d", j)
		}
	}

	always, err := New(testConfig(1.0, 1), 0)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 1000; j++ {
		if out := always.Decide("x"); !out.Fail {
			t.Fatalf("rate 1.0 passed at draw %d", j)
		}
	}
}

func TestDecideDisabled(t *testing.T) {
	cfg := testConfig(1.0, 1)
	cfg.Enabled = false
	inj, err := New(cfg, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out := inj.Decide("x"); out.Fail {
		t.Fatal("disabled injector produced a failure")
	}
}

func TestPickKindRespectsWeights(t *testing.T) {
	cfg := testConfig(1.0, 1234)
	cfg.KindWeights = map[domain.FailureKind]float64{
		domain.ServiceUnavailable: 0.7,
		domain.Timeout:            0.3,
	}
	inj, err := New(cfg, 0)
	if err != nil {
		t.Fatal(err)
	}

	counts := map[domain.FailureKind]int{}
	const n = 10000
	for j := 0; j < n; j++ {
		out := inj.Decide("x")
		counts[out.Kind]++
	}

	if counts[domain.Malformed] != 0 || counts[domain.RateLimited] != 0 {
		t.Fatalf("zero-weight kinds were drawn: %v", counts)
	}
	frac := float64(counts[domain.ServiceUnavailable]) / n
	if math.Abs(frac-0.7) > 0.03 {
		t.Errorf("service_unavailable fraction = %.3f, want ~0.7", frac)
	}
}

func TestJitteredBackoffBounds(t *testing.T) {
	cfg := testConfig(0.5, 5)
	cfg.JitterFactor = 0.5
	inj, err := New(cfg, 0)
	if err != nil {
		t.Fatal(err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		base := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt)))
		maxDelay := base + time.Duration(float64(base)*cfg.JitterFactor)
		for j := 0; j < 100; j++ {
			d := inj.JitteredBackoff(attempt)
			if d < base || d > maxDelay {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, base, maxDelay)
			}
		}
	}
}

func TestJitteredBackoffGrowsExponentially(t *testing.T) {
	cfg := testConfig(0.5, 5)
	cfg.JitterFactor = 0 // deterministic without jitter
	inj, err := New(cfg, 0)
	if err != nil {
		t.Fatal(err)
	}

	if d := inj.JitteredBackoff(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0 delay = %v, want 100ms", d)
	}
	if d := inj.JitteredBackoff(3); d != 800*time.Millisecond {
		t.Errorf("attempt 3 delay = %v, want 800ms", d)
	}
}
