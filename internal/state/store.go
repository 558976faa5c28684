package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store reads and writes the RunState document.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore builds a store persisting to the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Read loads the persisted state. A missing, unreadable, or corrupt file
// yields the default empty state; read problems never propagate.
func (s *Store) Read() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Default()
	}

	var loaded RunState
	if err := json.Unmarshal(data, &loaded); err != nil {
		return Default()
	}
	if loaded.Status == "" {
		loaded.Status = StatusIdle
	}
	return loaded
}

// Write persists the state atomically: the document is written to a
// temporary file in the same directory and renamed over the target.
func (s *Store) Write(runState RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(runState, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	tmpPath = ""
	return nil
}

// Update applies fn to the current state and persists the result.
func (s *Store) Update(fn func(*RunState)) (RunState, error) {
	current := s.Read()
	fn(&current)
	if err := s.Write(current); err != nil {
		return current, err
	}
	return current, nil
}

// Exists reports whether a state document is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return !errors.Is(err, fs.ErrNotExist)
}
