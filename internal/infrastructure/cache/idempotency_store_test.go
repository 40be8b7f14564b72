package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *time.Time) {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "bulk-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "bulk-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	*now = now.Add(time.Hour)
	afterExpiry, err := store.MarkProcessed(ctx, "bulk-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, afterExpiry)
}

func TestInMemoryIdempotencyStore_IsProcessedAndForget(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	seen, err := store.IsProcessed(ctx, "bulk-2")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.MarkProcessed(ctx, "bulk-2", time.Minute)
	require.NoError(t, err)
	seen, _ = store.IsProcessed(ctx, "bulk-2")
	assert.True(t, seen)

	require.NoError(t, store.Forget(ctx, "bulk-2"))
	seen, _ = store.IsProcessed(ctx, "bulk-2")
	assert.False(t, seen)

	_, _ = store.MarkProcessed(ctx, "bulk-3", time.Minute)
	*now = now.Add(2 * time.Minute)
	seen, _ = store.IsProcessed(ctx, "bulk-3")
	assert.False(t, seen)
}

func TestInMemoryIdempotencyStore_RemoveExpired(t *testing.T) {
	store, now := newTestStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 2, store.Len())

	*now = now.Add(10 * time.Minute)
	store.removeExpired()
	assert.Equal(t, 1, store.Len())
}

func TestInMemoryIdempotencyStore_ConcurrentMarkHasOneWinner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkProcessed(ctx, "shared-key", time.Hour)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisIdempotencyStore_WrapsErrors(t *testing.T) {
	store := NewRedisIdempotencyStore(unreachableRedis(t), "")
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark idempotency key")

	_, err = store.IsProcessed(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check idempotency key")

	err = store.Forget(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forget idempotency key")

	assert.NoError(t, store.Close())
	assert.Equal(t, DefaultKeyPrefix, store.keyPrefix)
}

func TestNewIdempotencyStore(t *testing.T) {
	inMemory := NewIdempotencyStore(nil, zap.NewNop())
	t.Cleanup(func() { _ = inMemory.Close() })
	assert.IsType(t, &InMemoryIdempotencyStore{}, inMemory)

	assert.IsType(t, &RedisIdempotencyStore{}, NewIdempotencyStore(unreachableRedis(t), zap.NewNop()))
}
