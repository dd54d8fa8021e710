package redisdb

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttlSeconds int) (*EmbeddingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewEmbeddingStore(rdb, ttlSeconds, "test:emb:"), mr
}

func TestEmbeddingStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 60)
	ctx := context.Background()

	_, ok := store.Get(ctx, "machine learning")
	assert.False(t, ok)

	store.Set(ctx, "machine learning", []float32{0.1, 0.2, 0.3})

	v, ok := store.Get(ctx, "machine learning")
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, v)
}

func TestEmbeddingStoreTTL(t *testing.T) {
	store, mr := newTestStore(t, 60)
	ctx := context.Background()

	store.Set(ctx, "k", []float32{1})
	mr.FastForward(61 * time.Second)

	_, ok := store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestEmbeddingStoreCorruptValueIsMiss(t *testing.T) {
	store, mr := newTestStore(t, 60)
	require.NoError(t, mr.Set(store.redisKey("k"), "not-json"))

	_, ok := store.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestEmbeddingStoreInvalidateAll(t *testing.T) {
	store, mr := newTestStore(t, 60)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "keep"))

	store.Set(ctx, "a", []float32{1})
	store.Set(ctx, "b", []float32{2})

	assert.Equal(t, 2, store.InvalidateAll(ctx))
	_, ok := store.Get(ctx, "a")
	assert.False(t, ok)
	assert.True(t, mr.Exists("other:key"))
}

func TestEmbeddingStoreUnavailableIsMiss(t *testing.T) {
	store, mr := newTestStore(t, 60)
	mr.Close()

	store.Set(context.Background(), "k", []float32{1})
	_, ok := store.Get(context.Background(), "k")
	assert.False(t, ok)
}
