package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "gl:seen:"

// RedisSeenCache shares seen markers between service instances
type RedisSeenCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisSeenCache connects to Redis and pings it
func NewRedisSeenCache(ctx context.Context, cfg config.RedisConfig) (*RedisSeenCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSeenCacheWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisSeenCacheWithClient wraps an existing client
func NewRedisSeenCacheWithClient(client *redis.Client, keyPrefix string) *RedisSeenCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisSeenCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed sets the marker with SETNX so concurrent instances agree on
// who saw the key first.
func (c *RedisSeenCache) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := c.client.SetNX(ctx, c.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark %s as seen: %w", key, err)
	}
	return created, nil
}

// IsProcessed reports whether the marker exists
func (c *RedisSeenCache) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check seen marker for %s: %w", key, err)
	}
	return n > 0, nil
}

// Ping checks the connection, for health reporting
func (c *RedisSeenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisSeenCache) Close() error {
	return c.client.Close()
}

var _ shared.IdempotencyStore = (*RedisSeenCache)(nil)
