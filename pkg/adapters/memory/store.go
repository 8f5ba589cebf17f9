package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aretw0/storageguest/pkg/domain"
)

// Store implements ports.KVStore in memory.
// Safe for concurrent use.
type Store struct {
	data    map[string]json.RawMessage
	pingErr error
	mu      sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]json.RawMessage),
	}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	// Copy on read so callers can't mutate the stored bytes.
	return append(json.RawMessage(nil), value...), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append(json.RawMessage(nil), value...)
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Ping implements ports.Pinger. It reports the error set by SetPingError.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pingErr
}

// SetPingError makes the store report err as its health; nil restores it.
func (s *Store) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}
