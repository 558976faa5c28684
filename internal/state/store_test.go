package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketcast/internal/state"
	"marketcast/internal/uploads"
)

func newStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(filepath.Join(t.TempDir(), "state.json"))
}

func TestReadMissingFileReturnsDefault(t *testing.T) {
	store := newStore(t)

	got := store.Read()
	if got.Status != state.StatusIdle {
		t.Fatalf("expected idle, got %q", got.Status)
	}
	if store.Exists() {
		t.Fatal("missing file should not report existing")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newStore(t)

	startedAt := time.Date(2026, 8, 24, 7, 1, 0, 0, time.UTC)
	slot := 0
	want := state.RunState{
		Status:        state.StatusRunning,
		RunID:         "run-1",
		StartedAt:     &startedAt,
		StartedBy:     state.TriggerSchedule,
		Profile:       "short",
		PendingSlot:   &slot,
		PendingRunKey: "2026-08-24@07:00",
		Uploads: []uploads.Result{
			{Kind: "short", ID: "abc123", Timestamp: startedAt},
		},
	}
	if err := store.Write(want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := store.Read()
	if got.Status != want.Status || got.RunID != want.RunID {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if got.PendingSlot == nil || *got.PendingSlot != 0 {
		t.Fatalf("pending slot lost: %#v", got.PendingSlot)
	}
	if got.PendingRunKey != want.PendingRunKey {
		t.Fatalf("pending run key mismatch: %q", got.PendingRunKey)
	}
	if len(got.Uploads) != 1 || got.Uploads[0].ID != "abc123" {
		t.Fatalf("uploads lost: %#v", got.Uploads)
	}
	if !store.Exists() {
		t.Fatal("expected state file to exist")
	}
}

func TestReadCorruptFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store := state.NewStore(path)
	got := store.Read()
	if got.Status != state.StatusIdle {
		t.Fatalf("corrupt file should read as default, got %q", got.Status)
	}
}

func TestUpdateAppliesAndPersists(t *testing.T) {
	store := newStore(t)

	updated, err := store.Update(func(rs *state.RunState) {
		rs.Status = state.StatusSuccess
		rs.LastSuccessRunKey = "2026-08-24@07:00"
		rs.LastSuccessDate = "2026-08-24"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Status != state.StatusSuccess {
		t.Fatalf("unexpected status: %q", updated.Status)
	}

	reread := store.Read()
	if reread.LastSuccessRunKey != "2026-08-24@07:00" {
		t.Fatalf("update not persisted: %#v", reread)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := state.NewStore(filepath.Join(dir, "state.json"))

	for i := 0; i < 3; i++ {
		if err := store.Write(state.Default()); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Fatalf("unexpected directory contents: %v", names)
	}
}
