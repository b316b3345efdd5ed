package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// errCorruptFile marks a state file that exists but cannot be decoded.
var errCorruptFile = errors.New("corrupt state file")

// JSONFileStore implements Backend as a single JSON object on disk,
// rewritten atomically on every Put.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore returns a store backed by the file at path. The file
// is created on first write.
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

func (s *JSONFileStore) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	entries := map[string]json.RawMessage{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", s.path, errCorruptFile, err)
	}
	return entries, nil
}

// Get returns the value stored under key.
func (s *JSONFileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Put overwrites the value stored under key. A file that can no longer be
// decoded is replaced rather than blocking every future write; a file
// that cannot be read is left alone so other keys are not lost.
func (s *JSONFileStore) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("putting key %s: value is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	switch {
	case errors.Is(err, errCorruptFile):
		entries = map[string]json.RawMessage{}
	case err != nil:
		return fmt.Errorf("putting key %s: %w", key, err)
	}
	entries[key] = json.RawMessage(value)

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op; every Put is already on disk.
func (s *JSONFileStore) Close() error {
	return nil
}
