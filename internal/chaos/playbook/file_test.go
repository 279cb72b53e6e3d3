package playbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

func testProcedure(call string, kind domain.FailureKind, confidence float64) domain.Procedure {
	return domain.Procedure{
		ScenarioName: "test scenario",
		Pattern: domain.FailurePattern{
			CallIdentity: call,
			FailureKind:  kind,
		},
		Steps:       []string{"retry with exponential backoff"},
		Confidence:  confidence,
		MaxAttempts: 3,
	}
}

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() on missing file = %v, want nil", err)
	}

	all, err := store.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("empty store has %d procedures", len(all))
	}
}

func TestLoadMalformedFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Load(path)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() on malformed file = %v, want PersistenceError", err)
	}

	// Store must still be usable.
	if err := store.Save(context.Background(), testProcedure("inventory.check", domain.Timeout, 0.5)); err != nil {
		t.Fatalf("Save() after degraded load = %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.json")
	store, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	p := testProcedure("payments.capture", domain.RateLimited, 0.8)
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload = %v", err)
	}
	got, found, err := reloaded.Lookup(ctx, "payments.capture", domain.RateLimited)
	if err != nil || !found {
		t.Fatalf("Lookup() = %v, found=%v", err, found)
	}

	// Equal except bookkeeping fields and generated ID/CreatedAt.
	if got.ScenarioName != p.ScenarioName ||
		got.Pattern != p.Pattern ||
		got.Confidence != p.Confidence ||
		got.MaxAttempts != p.MaxAttempts ||
		len(got.Steps) != len(p.Steps) || got.Steps[0] != p.Steps[0] {
		t.Errorf("round-tripped procedure differs: %+v vs %+v", got, p)
	}
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Error("Save() did not assign ID/CreatedAt")
	}
	if got.UsageCount != 1 {
		t.Errorf("UsageCount after first lookup = %d, want 1", got.UsageCount)
	}
}

func TestLookupPrefersConfidenceThenRecency(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "playbook.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	low := testProcedure("erp.record", domain.ServiceUnavailable, 0.3)
	low.ID = "low"
	high := testProcedure("erp.record", domain.ServiceUnavailable, 0.9)
	high.ID = "high"
	tiedOld := testProcedure("shipping.schedule", domain.Timeout, 0.5)
	tiedOld.ID = "tied-old"
	tiedOld.LastUsedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tiedNew := testProcedure("shipping.schedule", domain.Timeout, 0.5)
	tiedNew.ID = "tied-new"
	tiedNew.LastUsedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range []domain.Procedure{low, high, tiedOld, tiedNew} {
		if err := store.Save(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, found, err := store.Lookup(ctx, "erp.record", domain.ServiceUnavailable)
	if err != nil || !found {
		t.Fatalf("Lookup() = %v, found=%v", err, found)
	}
	if got.ID != "high" {
		t.Errorf("Lookup() picked %s, want high-confidence procedure", got.ID)
	}

	got, found, err = store.Lookup(ctx, "shipping.schedule", domain.Timeout)
	if err != nil || !found {
		t.Fatalf("Lookup() = %v, found=%v", err, found)
	}
	if got.ID != "tied-new" {
		t.Errorf("Lookup() picked %s, want most recently used on confidence tie", got.ID)
	}
}

func TestLookupAbsenceIsNotAnError(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "playbook.json"))
	if err != nil {
		t.Fatal(err)
	}

	_, found, err := store.Lookup(context.Background(), "inventory.check", domain.Timeout)
	if err != nil {
		t.Fatalf("Lookup() on empty store = %v, want nil", err)
	}
	if found {
		t.Fatal("Lookup() on empty store reported a match")
	}
}

func TestLookupBookkeeping(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "playbook.json"))
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ctx := context.Background()
	if err := store.Save(ctx, testProcedure("inventory.check", domain.Timeout, 0.5)); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 3; i++ {
		got, found, err := store.Lookup(ctx, "inventory.check", domain.Timeout)
		if err != nil || !found {
			t.Fatalf("Lookup() = %v, found=%v", err, found)
		}
		if got.UsageCount != i {
			t.Errorf("UsageCount after lookup %d = %d", i, got.UsageCount)
		}
		if !got.LastUsedAt.Equal(fixed) {
			t.Errorf("LastUsedAt = %v, want %v", got.LastUsedAt, fixed)
		}
	}
}

func TestReturnedProcedureIsACopy(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "playbook.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, testProcedure("inventory.check", domain.Timeout, 0.5)); err != nil {
		t.Fatal(err)
	}

	got, _, _ := store.Lookup(ctx, "inventory.check", domain.Timeout)
	got.Steps[0] = "mutated by caller"

	again, _, _ := store.Lookup(ctx, "inventory.check", domain.Timeout)
	if again.Steps[0] == "mutated by caller" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestSaveRejectsInvalidProcedure(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "playbook.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	missing := testProcedure("", domain.Timeout, 0.5)
	if err := store.Save(ctx, missing); err == nil {
		t.Error("Save() accepted procedure without call identity")
	}

	bad := testProcedure("inventory.check", domain.Timeout, 1.5)
	if err := store.Save(ctx, bad); err == nil {
		t.Error("Save() accepted confidence_score > 1")
	}
}

func TestSeedDefaults(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "playbook.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	n, err := SeedDefaults(ctx, store)
	if err != nil {
		t.Fatalf("SeedDefaults() = %v", err)
	}
	// 4 calls x 3 retryable kinds.
	if n != 12 {
		t.Errorf("seeded %d procedures, want 12", n)
	}

	// Idempotent: second run seeds nothing.
	n, err = SeedDefaults(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second seed run added %d procedures, want 0", n)
	}

	if _, found, _ := store.Lookup(ctx, "inventory.check", domain.Malformed); found {
		t.Error("seeded a procedure for a non-retryable kind")
	}
}
