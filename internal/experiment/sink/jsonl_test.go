package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

func readRows(t *testing.T, path string) []domain.ExperimentResult {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var rows []domain.ExperimentResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r domain.ExperimentResult
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("line %d not valid JSON: %v", len(rows)+1, err)
		}
		rows = append(rows, r)
	}
	return rows
}

func TestJSONLAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	s, err := NewJSONL(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	want := []domain.ExperimentResult{
		{RunID: 1, Variant: domain.VariantBaseline, FailureRate: 0.2, Success: true, CallCount: 4},
		{RunID: 2, Variant: domain.VariantStrategyAware, FailureRate: 0.2, Success: false, InconsistencyCount: 1},
	}
	for _, r := range want {
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append() = %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	got := readRows(t, path)
	if len(got) != len(want) {
		t.Fatalf("read %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestJSONLAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	ctx := context.Background()

	for run := int64(1); run <= 3; run++ {
		s, err := NewJSONL(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Append(ctx, domain.ExperimentResult{RunID: run}); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	}

	rows := readRows(t, path)
	if len(rows) != 3 {
		t.Fatalf("read %d rows after 3 reopens, want 3 (sink must append, not truncate)", len(rows))
	}
}

type failingSink struct{ err error }

func (f *failingSink) Append(ctx context.Context, r domain.ExperimentResult) error { return f.err }
func (f *failingSink) Close() error                                                { return nil }

func TestMultiPropagatesFirstError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	jsonl, err := NewJSONL(path)
	if err != nil {
		t.Fatal(err)
	}
	defer jsonl.Close()

	wantErr := errors.New("db gone")
	m := NewMulti(jsonl, &failingSink{err: wantErr})

	err = m.Append(context.Background(), domain.ExperimentResult{RunID: 1})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Append() = %v, want wrapped %v", err, wantErr)
	}
}
