// Package runlog owns the pipeline output log: an append-only text file
// bounded to a byte ceiling, with tail reads that never load the whole file.
//
// The file collects the combined stdout/stderr of pipeline steps across
// runs. Once it grows past the ceiling only the most recent bytes survive,
// cut forward to a whole line. Tail reads seek from the end and read at most
// a configured byte budget regardless of the requested line count.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sink appends pipeline output lines and serves bounded tail reads.
type Sink struct {
	path       string
	maxBytes   int64
	tailBudget int64

	mu sync.Mutex
}

// New builds a sink writing to path. maxBytes caps the file size;
// tailBudget caps how many bytes a single Tail call reads.
func New(path string, maxBytes, tailBudget int64) *Sink {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	if tailBudget <= 0 {
		tailBudget = 256 << 10
	}
	return &Sink{path: path, maxBytes: maxBytes, tailBudget: tailBudget}
}

// Path returns the log file location.
func (s *Sink) Path() string {
	return s.path
}

// Append writes one line (a trailing newline is added) and truncates the
// file when it passed the ceiling. Truncation failures are swallowed: a log
// that briefly overruns its bound must not fail the run.
func (s *Sink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	_, writeErr := file.WriteString(strings.TrimRight(line, "\r\n") + "\n")
	closeErr := file.Close()
	if writeErr != nil {
		return fmt.Errorf("append run log: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close run log: %w", closeErr)
	}

	_ = s.truncateLocked()
	return nil
}

// Tail returns up to n of the most recent lines. It stats the file, seeks to
// at most tailBudget bytes before the end, and splits what it finds; the
// full file is never resident.
func (s *Sink) Tail(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open run log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat run log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	readBytes := s.tailBudget
	if readBytes > size {
		readBytes = size
	}
	if _, err := file.Seek(size-readBytes, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek run log: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(file, readBytes))
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}

	lines := splitLines(data)
	if readBytes < size && len(lines) > 0 {
		// The first line is almost certainly cut mid-way; drop it.
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// truncateLocked keeps the most recent maxBytes of the file, advanced to the
// next whole line, using the same temp-and-rename dance as the state store.
func (s *Sink) truncateLocked() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= s.maxBytes {
		return nil
	}

	file, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(size-s.maxBytes, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes))
	if err != nil {
		return err
	}

	// Cut forward to the first complete line.
	if idx := indexNewline(data); idx >= 0 && idx+1 < len(data) {
		data = data[idx+1:]
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".runlog-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func indexNewline(data []byte) int {
	for i, b := range data {
		if b == '\n' {
			return i
		}
	}
	return -1
}

func splitLines(data []byte) []string {
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
