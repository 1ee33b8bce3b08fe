package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "client_config:default", ClientConfigKey(""))
	assert.Equal(t, "client_config:US", ClientConfigKey("US"))
	assert.Equal(t, "client_config:*", ClientConfigPattern())
	assert.Equal(t, "identity:ed-1", IdentityKey("ed-1"))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "client_config:US", []byte(`{"flag":true}`), time.Minute))
	val, ok, err := store.Get(ctx, "client_config:US")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"flag":true}`, string(val))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "client_config:US")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreDeletePattern(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	for _, key := range []string{"client_config:default", "client_config:US", "client_config:FR", "identity:ed-1"} {
		require.NoError(t, store.Set(ctx, key, []byte("x"), time.Minute))
	}

	removed, err := store.DeletePattern(ctx, ClientConfigPattern())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, ok, err := store.Get(ctx, "identity:ed-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreSurfacesBackendErrors(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, _, err := store.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "client_config:US", []byte("a"), time.Minute))
	require.NoError(t, store.Set(ctx, "client_config:default", []byte("b"), time.Minute))
	require.NoError(t, store.Set(ctx, "identity:ed-1", []byte("c"), time.Minute))

	val, ok, err := store.Get(ctx, "client_config:US")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), val)

	removed, err := store.DeletePattern(ctx, ClientConfigPattern())
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ = store.Get(ctx, "client_config:US")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "identity:ed-1")
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "identity:ed-1"))
	_, ok, _ = store.Get(ctx, "identity:ed-1")
	assert.False(t, ok)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreRejectsBadPattern(t *testing.T) {
	_, err := NewMemoryStore().DeletePattern(context.Background(), "[")
	assert.Error(t, err)
}
