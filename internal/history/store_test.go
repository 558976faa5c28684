package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marketcast/internal/history"
	"marketcast/internal/state"
	"marketcast/internal/uploads"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func runStateAt(runID string, status state.Status, started time.Time) state.RunState {
	return state.RunState{
		Status:        status,
		RunID:         runID,
		StartedAt:     &started,
		StartedBy:     state.TriggerSchedule,
		Profile:       "short",
		PendingRunKey: "2026-08-24@07:00",
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 24, 7, 1, 0, 0, time.UTC)
	running := runStateAt("run-1", state.StatusRunning, started)
	if err := store.RecordStart(ctx, running); err != nil {
		t.Fatalf("RecordStart failed: %v", err)
	}

	finished := started.Add(4 * time.Minute)
	final := running
	final.Status = state.StatusSuccess
	final.FinishedAt = &finished
	results := []uploads.Result{
		{Kind: "short", ID: "abc123", Privacy: "public", Timestamp: finished},
	}
	if err := store.RecordFinish(ctx, final, results); err != nil {
		t.Fatalf("RecordFinish failed: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.RunID != "run-1" || run.Status != string(state.StatusSuccess) {
		t.Fatalf("unexpected run: %#v", run)
	}
	if run.RunKey != "2026-08-24@07:00" || run.Profile != "short" {
		t.Fatalf("run metadata lost: %#v", run)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished_at not recorded")
	}
}

func TestListRunsNewestFirstAndLimited(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 24, 7, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		rs := runStateAt(id, state.StatusRunning, base.Add(time.Duration(i)*time.Hour))
		if err := store.RecordStart(ctx, rs); err != nil {
			t.Fatalf("RecordStart %s failed: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("limit ignored: %d runs", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Fatalf("wrong order: %s, %s", runs[0].RunID, runs[1].RunID)
	}
}

func TestFailedRunKeepsErrorStep(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 24, 7, 31, 0, 0, time.UTC)
	running := runStateAt("run-x", state.StatusRunning, started)
	if err := store.RecordStart(ctx, running); err != nil {
		t.Fatalf("RecordStart failed: %v", err)
	}

	finished := started.Add(time.Minute)
	final := running
	final.Status = state.StatusFailed
	final.ErrorStep = "make_video"
	final.FinishedAt = &finished
	if err := store.RecordFinish(ctx, final, nil); err != nil {
		t.Fatalf("RecordFinish failed: %v", err)
	}

	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if runs[0].Status != string(state.StatusFailed) || runs[0].ErrorStep != "make_video" {
		t.Fatalf("failure not archived: %#v", runs[0])
	}
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *history.Store

	if err := store.RecordStart(context.Background(), state.RunState{}); err != nil {
		t.Fatalf("nil RecordStart errored: %v", err)
	}
	if err := store.RecordFinish(context.Background(), state.RunState{}, nil); err != nil {
		t.Fatalf("nil RecordFinish errored: %v", err)
	}
	runs, err := store.ListRuns(context.Background(), 5)
	if err != nil || runs != nil {
		t.Fatalf("nil ListRuns: runs=%v err=%v", runs, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil Close errored: %v", err)
	}
}
