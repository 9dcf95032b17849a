package cache

import (
	"context"
	"fmt"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SeenCacheFactory picks the seen-cache backend from configuration
type SeenCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SeenCacheFactoryOption is a functional option for configuring the factory
type SeenCacheFactoryOption func(*SeenCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SeenCacheFactoryOption {
	return func(f *SeenCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory cache. Default is true.
func WithInMemoryFallback(allow bool) SeenCacheFactoryOption {
	return func(f *SeenCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSeenCacheFactory creates a new factory
func NewSeenCacheFactory(cfg config.RedisConfig, opts ...SeenCacheFactoryOption) *SeenCacheFactory {
	f := &SeenCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the Redis cache when Redis is enabled and reachable, and the
// in-memory cache otherwise.
func (f *SeenCacheFactory) Create(ctx context.Context) (shared.IdempotencyStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory seen-cache")
		return NewMemorySeenCache(), nil
	}

	store, err := NewRedisSeenCache(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using redis seen-cache",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port),
		)
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis seen-cache unavailable: %w", err)
	}

	// Duplicates still stop at the database claim; only the fast path is lost
	// across instances.
	f.logger.Warn("redis unavailable, falling back to in-memory seen-cache", zap.Error(err))
	return NewMemorySeenCache(), nil
}
