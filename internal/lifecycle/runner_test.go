package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/usagijin/notisum/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewStore(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, st store.Store, id string, age time.Duration) {
	t.Helper()
	ctx := context.Background()
	at := time.Now().UTC().Add(-age)
	e := &store.Event{
		ID: id, SourceID: "com.example.app", SourceLabel: "Example",
		Title: "t", Body: "b", ArrivedAt: at,
	}
	if err := st.InsertEvent(ctx, e); err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	s := &store.Summary{
		ID: id + "_s", SourceID: "com.example.app", Title: "t", Body: "b",
		Importance: 2, CreatedAt: at,
	}
	if err := st.InsertSummary(ctx, s); err != nil {
		t.Fatalf("InsertSummary: %v", err)
	}
}

func TestRunPurgesOldRecords(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "old", 10*24*time.Hour)
	seed(t, st, "fresh", time.Hour)

	r, err := NewRunner(st, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	report, err := r.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.EventsPurged != 1 || report.SummariesPurged != 1 {
		t.Errorf("purged %d events, %d summaries; want 1 and 1", report.EventsPurged, report.SummariesPurged)
	}

	has, _ := st.HasEvent(context.Background(), "fresh")
	if !has {
		t.Error("fresh event should survive")
	}
}

func TestRunDryRunDeletesNothing(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "old", 10*24*time.Hour)

	r, err := NewRunner(st, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	report, err := r.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.DryRun {
		t.Error("report should be marked dry-run")
	}
	if report.EventsPurged != 0 {
		t.Errorf("dry run purged %d events", report.EventsPurged)
	}

	has, _ := st.HasEvent(context.Background(), "old")
	if !has {
		t.Error("dry run must not delete")
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	st := newTestStore(t)
	r, err := NewRunner(st, 0)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if r.retention != store.DefaultRetention {
		t.Errorf("retention = %v, want default", r.retention)
	}

	if _, err := NewRunner(nil, time.Hour); err == nil {
		t.Error("expected error for nil store")
	}
}
