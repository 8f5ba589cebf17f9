package ports

import (
	"context"
	"encoding/json"
)

// KVStore defines the storage backend served by a host.
type KVStore interface {
	// Get returns the stored JSON value.
	// Returns domain.ErrKeyNotFound if the key does not exist.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report backend health.
// A host answers connect with a connection-level error while Ping fails.
type Pinger interface {
	Ping(ctx context.Context) error
}
