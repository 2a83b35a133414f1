package tailstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Entry records how far a tailed file has been read. Inode identifies the
// file so a rotated replacement with the same name starts from zero.
type Entry struct {
	Inode  uint64 `json:"inode"`
	Offset int64  `json:"offset"`
}

// Store persists per-file read offsets between runs so tailing resumes
// where the previous process stopped. It holds one JSON document mapping
// file path to entry and writes it atomically (temp file + rename).
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// Open loads the state file at path, creating an empty store when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("tailstate: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("tailstate: mkdir: %w", err)
	}

	s := &Store{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tailstate: read: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		// A corrupt state file means re-tailing from scratch, not a
		// fatal startup error.
		s.entries = make(map[string]Entry)
	}
	return s, nil
}

// Lookup returns the saved entry for a file path.
func (s *Store) Lookup(file string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[file]
	return e, ok
}

// Set records the current read position for a file path.
func (s *Store) Set(file string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[file] = e
}

// Save writes the state atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("tailstate: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, defaultFileMode); err != nil {
		return fmt.Errorf("tailstate: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("tailstate: rename: %w", err)
	}
	return nil
}
