// Package storage provides the two persistence tiers backing the
// synchronized collections: a durable file-backed tier shared by every
// context on the machine and a volatile in-process tier scoped to one window.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileTier is the durable tier: one file per well-known key under a shared
// data directory. Values are whole serialized blobs; every write replaces the
// file, matching the full read-modify-write contract of the collection model.
type FileTier struct {
	dir string
}

// NewFileTier creates the data directory if needed and returns the tier.
func NewFileTier(dir string) (*FileTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileTier{dir: dir}, nil
}

func (t *FileTier) path(key string) string {
	// Keys are the domain's well-known strings, but sanitize anyway so a
	// hostile key cannot escape the data directory.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.', r == '@':
			return r
		default:
			return '_'
		}
	}, key)
	return filepath.Join(t.dir, safe+".json")
}

// Get returns the stored blob, or (nil, nil) when the key is absent.
func (t *FileTier) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(t.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return b, nil
}

// Set writes the blob via a temp file rename so a crashed writer never leaves
// a torn value behind.
func (t *FileTier) Set(key string, value []byte) error {
	path := t.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (t *FileTier) Delete(key string) error {
	err := os.Remove(t.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (t *FileTier) Keys() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

// Clear wipes the whole tier. Administrative resets only.
func (t *FileTier) Clear() error {
	keys, err := t.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := t.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
