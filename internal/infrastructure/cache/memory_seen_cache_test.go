package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemorySeenCache_MarkProcessed(t *testing.T) {
	cache := NewMemorySeenCache()
	defer cache.Close()
	ctx := context.Background()

	created, err := cache.MarkProcessed(ctx, "gl-posting:evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = cache.MarkProcessed(ctx, "gl-posting:evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, created, "second mark of a live key must report false")

	seen, err := cache.IsProcessed(ctx, "gl-posting:evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = cache.IsProcessed(ctx, "gl-posting:evt-2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemorySeenCache_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cache := NewMemorySeenCache(WithClock(clock.Now))
	defer cache.Close()
	ctx := context.Background()

	_, err := cache.MarkProcessed(ctx, "evt", time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute)

	seen, err := cache.IsProcessed(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, seen)

	created, err := cache.MarkProcessed(ctx, "evt", time.Minute)
	require.NoError(t, err)
	assert.True(t, created, "expired key can be marked again")
}

func TestMemorySeenCache_EvictsWhenFull(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	cache := NewMemorySeenCache(WithClock(clock.Now), WithMaxEntries(2))
	defer cache.Close()
	ctx := context.Background()

	_, _ = cache.MarkProcessed(ctx, "short", time.Minute)
	_, _ = cache.MarkProcessed(ctx, "long", time.Hour)
	_, _ = cache.MarkProcessed(ctx, "new", time.Hour)

	assert.Equal(t, 2, cache.Len())
	seen, _ := cache.IsProcessed(ctx, "short")
	assert.False(t, seen, "key closest to expiry is evicted")
	seen, _ = cache.IsProcessed(ctx, "long")
	assert.True(t, seen)
	seen, _ = cache.IsProcessed(ctx, "new")
	assert.True(t, seen)
}

func TestMemorySeenCache_SweepRemovesExpired(t *testing.T) {
	cache := NewMemorySeenCache(WithSweepInterval(10 * time.Millisecond))
	defer cache.Close()

	_, err := cache.MarkProcessed(context.Background(), "evt", time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return cache.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemorySeenCache_ConcurrentMarkHasOneWinner(t *testing.T) {
	cache := NewMemorySeenCache()
	defer cache.Close()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := cache.MarkProcessed(context.Background(), "contended", time.Hour)
			if err == nil && created {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemorySeenCache_CloseIsIdempotent(t *testing.T) {
	cache := NewMemorySeenCache()

	require.NoError(t, cache.Close())
	require.NoError(t, cache.Close())
}

func BenchmarkMemorySeenCache_MarkProcessed(b *testing.B) {
	cache := NewMemorySeenCache()
	defer cache.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cache.MarkProcessed(ctx, fmt.Sprintf("evt-%d", i), time.Hour)
	}
}
