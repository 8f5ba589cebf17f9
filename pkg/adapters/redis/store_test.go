package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/storageguest/pkg/adapters/redis"
	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/host"
	"github.com/aretw0/storageguest/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ports.RunKVStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", json.RawMessage(`"soon gone"`)))
	_, err := store.Get(ctx, "ephemeral")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = store.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "theme", json.RawMessage(`"dark"`)))

	assert.True(t, mr.Exists("custom:app:theme"), "Expected key with custom prefix to exist")
	raw, err := mr.Get("custom:app:theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, raw)

	require.NoError(t, store.Delete(ctx, "theme"))
	assert.False(t, mr.Exists("custom:app:theme"))
}

func TestRedisStore_PingDrivesConnectError(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	h := host.New(store)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	var replies []domain.Response
	collect := func(resp domain.Response) { replies = append(replies, resp) }

	h.Respond(ctx, "https://app.example.com", domain.Request{Method: domain.MethodConnect, ID: "sessionAccessId-1"}, collect)
	mr.SetError("ERR backend unavailable")
	h.Respond(ctx, "https://app.example.com", domain.Request{Method: domain.MethodConnect, ID: "sessionAccessId-2"}, collect)
	mr.SetError("")

	require.Len(t, replies, 2)
	assert.True(t, replies[0].Connected())
	assert.True(t, replies[1].ConnectError)
	assert.Contains(t, string(replies[1].Error), "backend unavailable")
}
