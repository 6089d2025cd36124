package memory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCachedStore(t *testing.T) (*CachedStore, *fakeMemoryService, *miniredis.Miniredis) {
	t.Helper()
	client, svc := newTestClient(t)
	mr := miniredis.RunT(t)
	store := NewCachedStore(client, CacheConfig{URL: "redis://" + mr.Addr()})
	cached, ok := store.(*CachedStore)
	require.True(t, ok, "redis-backed config must produce a CachedStore")
	return cached, svc, mr
}

func TestCachedStore_SearchServedFromCache(t *testing.T) {
	store, svc, _ := newTestCachedStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, "bot-a", "likes green tea", nil)
	require.NoError(t, err)

	first, err := store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A repeat of the same query never reaches the service.
	svc.failures = 1
	second, err := store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCachedStore_StoreDropsNamespaceCache(t *testing.T) {
	store, _, _ := newTestCachedStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, "bot-a", "likes green tea", nil)
	require.NoError(t, err)
	entries, err := store.Search(ctx, "bot-a", "likes", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// A new memory must show up in the next search, not after the TTL.
	_, err = store.Store(ctx, "bot-a", "likes oolong", nil)
	require.NoError(t, err)
	entries, err = store.Search(ctx, "bot-a", "likes", 5)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCachedStore_UpdateFlushesCache(t *testing.T) {
	store, _, mr := newTestCachedStore(t)
	ctx := context.Background()

	id, err := store.Store(ctx, "bot-a", "likes green tea", nil)
	require.NoError(t, err)
	entries, err := store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Update(ctx, id, "likes coffee", nil))
	assert.Empty(t, mr.Keys(), "update must drop every cached search")

	entries, err = store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
	entries, err = store.Search(ctx, "bot-a", "coffee", 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCachedStore_DeleteFlushesCache(t *testing.T) {
	store, _, _ := newTestCachedStore(t)
	ctx := context.Background()

	id, err := store.Store(ctx, "bot-a", "likes green tea", nil)
	require.NoError(t, err)
	entries, err := store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	deleted, err := store.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	entries, err = store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCachedStore_RedisDownFallsThrough(t *testing.T) {
	store, _, mr := newTestCachedStore(t)
	ctx := context.Background()

	_, err := store.Store(ctx, "bot-a", "likes green tea", nil)
	require.NoError(t, err)

	mr.Close()
	entries, err := store.Search(ctx, "bot-a", "tea", 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
