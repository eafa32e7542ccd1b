// Package store implements whole-file JSON document stores. Each store is a
// single map keyed by subscriber id (or a normalized query key), loaded and
// rewritten as a unit under one exclusive section.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists a map[string]V as a single JSON document. A missing or
// corrupt file reads as an empty map, so a fresh deployment needs no setup.
type File[V any] struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a store rooted at path, creating parent directories.
func NewFile[V any](path string) (*File[V], error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File[V]{path: path}, nil
}

// Load returns a copy of the current document.
func (f *File[V]) Load() (map[string]V, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Get returns a single entry from the document.
func (f *File[V]) Get(key string) (V, bool, error) {
	var zero V
	doc, err := f.Load()
	if err != nil {
		return zero, false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

// Mutate runs fn over the document and rewrites it atomically. The whole
// load-mutate-write cycle holds the store lock, so concurrent mutations
// cannot lose updates.
func (f *File[V]) Mutate(fn func(doc map[string]V) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return f.save(doc)
}

func (f *File[V]) load() (map[string]V, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]V{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	doc := map[string]V{}
	if err := json.Unmarshal(data, &doc); err != nil {
		// Treat a corrupt document as empty rather than wedging the service.
		return map[string]V{}, nil
	}
	return doc, nil
}

func (f *File[V]) save(doc map[string]V) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", f.path, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
