package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/aretw0/storageguest/pkg/domain"
)

// Store implements ports.KVStore using the local filesystem.
// Each key is one JSON file in BasePath.
type Store struct {
	BasePath string

	mu sync.RWMutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".storageguest/kv".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".storageguest", "kv")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.BasePath, url.PathEscape(key)+".json")
}

// Set persists value atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(value); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(key)
	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing value for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get reads the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read value file: %w", err)
	}
	return json.RawMessage(data), nil
}

// Delete removes the file of key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete value file: %w", err)
	}
	return nil
}

// Ping implements ports.Pinger: the base directory must exist or be creatable.
func (s *Store) Ping(ctx context.Context) error {
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("store directory unavailable: %w", err)
	}
	return nil
}
