package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKVStoreContract runs a suite of tests to verify that a KVStore implementation
// adheres to the defined interface contract.
func RunKVStoreContract(t *testing.T, store KVStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405")

	t.Run("Set and Get", func(t *testing.T) {
		value := json.RawMessage(`{"theme":"dark","count":42}`)

		err := store.Set(ctx, key, value)
		require.NoError(t, err, "Set should not return error")

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err, "Get should not return error")
		assert.JSONEq(t, string(value), string(loaded))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, json.RawMessage(`1`)))
		require.NoError(t, store.Set(ctx, key, json.RawMessage(`"two"`)))

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `"two"`, string(loaded))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, key, json.RawMessage(`true`)))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, "Get after Delete should return ErrKeyNotFound")
	})

	t.Run("Delete Non-Existent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-set-"+key))
	})
}
