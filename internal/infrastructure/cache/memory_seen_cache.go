package cache

import (
	"context"
	"sync"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultMaxEntries    = 100_000
)

// MemorySeenCache is a process-local seen-cache. It is only a fast path: the
// gl_processed_events claim decides whether an event posts, so losing
// entries on restart or eviction is harmless.
type MemorySeenCache struct {
	mu         sync.Mutex
	expiries   map[string]time.Time
	maxEntries int
	now        func() time.Time

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// MemorySeenCacheOption configures a MemorySeenCache
type MemorySeenCacheOption func(*memoryOptions)

type memoryOptions struct {
	sweepInterval time.Duration
	maxEntries    int
	now           func() time.Time
}

// WithSweepInterval sets how often expired keys are dropped
func WithSweepInterval(d time.Duration) MemorySeenCacheOption {
	return func(o *memoryOptions) { o.sweepInterval = d }
}

// WithMaxEntries caps the number of remembered keys
func WithMaxEntries(n int) MemorySeenCacheOption {
	return func(o *memoryOptions) { o.maxEntries = n }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) MemorySeenCacheOption {
	return func(o *memoryOptions) { o.now = now }
}

// NewMemorySeenCache starts a cache with a background sweeper. Call Close to stop it.
func NewMemorySeenCache(opts ...MemorySeenCacheOption) *MemorySeenCache {
	o := memoryOptions{
		sweepInterval: defaultSweepInterval,
		maxEntries:    defaultMaxEntries,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &MemorySeenCache{
		expiries:   make(map[string]time.Time),
		maxEntries: o.maxEntries,
		now:        o.now,
		stop:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.sweepLoop(o.sweepInterval)

	return c
}

// MarkProcessed records key until ttl elapses. It reports false when the key
// was already live.
func (c *MemorySeenCache) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.expiries[key]; ok && now.Before(exp) {
		return false, nil
	}
	if len(c.expiries) >= c.maxEntries {
		c.sweepLocked(now)
		if len(c.expiries) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.expiries[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key is live
func (c *MemorySeenCache) IsProcessed(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exp, ok := c.expiries[key]
	return ok && c.now().Before(exp), nil
}

// Len returns the number of stored keys, expired ones included until the next sweep
func (c *MemorySeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expiries)
}

// Close stops the sweeper. Safe to call more than once.
func (c *MemorySeenCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
	return nil
}

func (c *MemorySeenCache) sweepLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.sweepLocked(c.now())
			c.mu.Unlock()
		}
	}
}

func (c *MemorySeenCache) sweepLocked(now time.Time) {
	for key, exp := range c.expiries {
		if !now.Before(exp) {
			delete(c.expiries, key)
		}
	}
}

// evictOldestLocked drops the key closest to expiry.
func (c *MemorySeenCache) evictOldestLocked() {
	var (
		victim string
		oldest time.Time
	)
	for key, exp := range c.expiries {
		if victim == "" || exp.Before(oldest) {
			victim, oldest = key, exp
		}
	}
	delete(c.expiries, victim)
}

var _ shared.IdempotencyStore = (*MemorySeenCache)(nil)
