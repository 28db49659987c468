// Package state persists per-workspace key/value state. The only key shade
// writes is the last-selected visibility mode.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	stateDir  = ".shade"
	stateFile = "state.toml"
)

// Store is a write-through TOML key/value file under the workspace root.
type Store struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// Open loads (or initializes) the state store for the given workspace
// directory.
func Open(workspace string) (*Store, error) {
	s := &Store{
		path:   filepath.Join(workspace, stateDir, stateFile),
		values: make(map[string]string),
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if err := toml.Unmarshal(data, &s.values); err != nil {
		// A corrupt state file only costs the remembered mode; start over.
		s.values = make(map[string]string)
	}
	return s, nil
}

// Get returns the stored value for key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and writes the file through.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value

	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }
