// Package runlock provides the cross-process mutual exclusion guarding
// pipeline execution.
//
// The production implementation is an OS advisory file lock, so several
// server processes sharing one runtime directory cannot run the pipeline
// concurrently, and an abrupt process death releases the lock without any
// cleanup code running. Failing to acquire is a signal ("already running"),
// never an error.
package runlock

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"
)

// Locker is the exclusive run lock. TryLock is non-blocking: false means
// another holder is active.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
	Path() string
}

// FileLock is the advisory-file-lock implementation.
type FileLock struct {
	path string
	lock *flock.Flock
}

// NewFile builds a file-backed lock at the given path. The file is created
// on first acquisition; its content is irrelevant.
func NewFile(path string) *FileLock {
	return &FileLock{path: path, lock: flock.New(path)}
}

// TryLock attempts a non-blocking exclusive acquisition.
func (f *FileLock) TryLock() (bool, error) {
	ok, err := f.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// Unlock releases the lock. Safe to call when not held.
func (f *FileLock) Unlock() error {
	return f.lock.Unlock()
}

// Path returns the lock file location.
func (f *FileLock) Path() string {
	return f.path
}

// Memory is an in-process Locker for tests.
type Memory struct {
	mu   sync.Mutex
	held bool
}

// NewMemory builds an unheld in-memory lock.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) TryLock() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return false, nil
	}
	m.held = true
	return true, nil
}

func (m *Memory) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = false
	return nil
}

func (m *Memory) Path() string { return "<memory>" }

// Held reports whether the lock is currently taken. Test helper.
func (m *Memory) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

var (
	_ Locker = (*FileLock)(nil)
	_ Locker = (*Memory)(nil)
)
