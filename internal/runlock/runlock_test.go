package runlock_test

import (
	"path/filepath"
	"testing"

	"marketcast/internal/runlock"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	first := runlock.NewFile(path)
	acquired, err := first.TryLock()
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquisition to succeed")
	}

	second := runlock.NewFile(path)
	acquired, err = second.TryLock()
	if err != nil {
		t.Fatalf("second TryLock failed: %v", err)
	}
	if acquired {
		t.Fatal("second holder must not acquire a held lock")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	acquired, err = second.TryLock()
	if err != nil {
		t.Fatalf("TryLock after release failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected acquisition after release")
	}
	if err := second.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
}

func TestMemoryLockSemantics(t *testing.T) {
	lock := runlock.NewMemory()

	acquired, err := lock.TryLock()
	if err != nil || !acquired {
		t.Fatalf("first TryLock: acquired=%v err=%v", acquired, err)
	}
	if !lock.Held() {
		t.Fatal("expected lock to report held")
	}

	acquired, err = lock.TryLock()
	if err != nil {
		t.Fatalf("second TryLock failed: %v", err)
	}
	if acquired {
		t.Fatal("held lock must refuse reacquisition")
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if lock.Held() {
		t.Fatal("expected lock released")
	}
}
