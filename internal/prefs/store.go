package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lumberhq/lumberview/internal/model"
)

// Store is a small file-backed preference cache. Keys are scoped by dataset
// and file identity; values are JSON-encoded facet or column sequences.
// Reads on dataset activation, writes on every toggle. A missing file or
// key is empty, not an error.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// Open loads the preference file at path, creating the parent directory if
// needed. An absent file yields an empty store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("prefs: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("prefs: mkdir: %w", err)
	}

	s := &Store{path: path, values: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.values); err != nil {
			// A corrupt cache only loses toggles; start fresh rather
			// than refusing to boot.
			s.values = make(map[string]json.RawMessage)
		}
	}
	return s, nil
}

// Key builds the preference key for one facet (or column set) of a dataset
// file.
func Key(dataset, file, kind string) string {
	return dataset + "/" + file + "/" + kind
}

// LoadFacet returns the cached facet under key, or nil when absent.
func (s *Store) LoadFacet(key string) (model.Facet, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var facet model.Facet
	if err := json.Unmarshal(raw, &facet); err != nil {
		return nil, fmt.Errorf("prefs: decode %s: %w", key, err)
	}
	return facet, nil
}

// SaveFacet persists the facet under key and rewrites the backing file.
func (s *Store) SaveFacet(key string, facet model.Facet) error {
	raw, err := json.Marshal(facet)
	if err != nil {
		return fmt.Errorf("prefs: encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.flushLocked()
}

// flushLocked writes the whole map atomically (tmp file + rename) so a
// crash mid-write never truncates the cache.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("prefs: rename: %w", err)
	}
	return nil
}
