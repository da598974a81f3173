package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndListSteps(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	steps := []Step{
		{Scenario: "m1", Step: "s1", Index: 0, Outcome: Started, At: 0},
		{Scenario: "m1", Step: "s1", Index: 0, Outcome: Won, At: 2 * time.Second},
		{Scenario: "other", Step: "x", Index: 0, Outcome: Started},
		{Scenario: "m1", Step: "s2", Index: 1, Outcome: Started, At: 2 * time.Second},
	}
	for _, s := range steps {
		if err := j.RecordStep(ctx, s); err != nil {
			t.Fatalf("RecordStep: %v", err)
		}
	}

	got, err := j.Steps(ctx, "m1", 10)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d steps, want 3", len(got))
	}
	if got[0].Step != "s2" || got[0].Index != 1 || got[0].Outcome != Started {
		t.Errorf("newest = %+v", got[0])
	}
	if got[1].Outcome != Won || got[1].At != 2*time.Second {
		t.Errorf("second = %+v", got[1])
	}
	if !got[0].RecordedAt.Equal(fixed) {
		t.Errorf("RecordedAt = %v, want %v", got[0].RecordedAt, fixed)
	}
}

func TestRecordStepRequiresID(t *testing.T) {
	j := openTest(t)
	if err := j.RecordStep(context.Background(), Step{Scenario: "m1"}); err == nil {
		t.Error("expected error for empty step id")
	}
}

func TestRankPositions(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	tests := []struct {
		score time.Duration
		want  Rank
	}{
		{90 * time.Second, Rank{Position: 1, Total: 1}},
		{120 * time.Second, Rank{Position: 2, Total: 2}},
		{60 * time.Second, Rank{Position: 1, Total: 3}},
		{90 * time.Second, Rank{Position: 2, Total: 4}},
	}
	for _, tt := range tests {
		got, err := j.RecordScore(ctx, "m1", tt.score)
		if err != nil {
			t.Fatalf("RecordScore(%v): %v", tt.score, err)
		}
		if got != tt.want {
			t.Errorf("RecordScore(%v) = %+v, want %+v", tt.score, got, tt.want)
		}
	}

	// Other scenarios are ranked separately.
	got, err := j.RecordScore(ctx, "m2", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Rank{Position: 1, Total: 1}) {
		t.Errorf("m2 rank = %+v", got)
	}
}

func TestRankWithoutScores(t *testing.T) {
	j := openTest(t)
	got, err := j.Rank(context.Background(), "empty", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Rank{Position: 1, Total: 1}) {
		t.Errorf("Rank = %+v", got)
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	if err := j.RecordStep(context.Background(), Step{Step: "a"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Error("expected error for blank path")
	}
}

func TestCancelledContext(t *testing.T) {
	j := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.RecordStep(ctx, Step{Step: "a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
