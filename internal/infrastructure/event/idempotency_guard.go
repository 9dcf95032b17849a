package event

import (
	"context"
	"sync/atomic"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	// EventsSeen is the number of lookups answered from the cache
	EventsSeen atomic.Int64

	// EventsMarked is the number of events recorded after processing
	EventsMarked atomic.Int64

	// StoreErrors is the number of cache calls that failed
	StoreErrors atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsSeen:   m.EventsSeen.Load(),
		EventsMarked: m.EventsMarked.Load(),
		StoreErrors:  m.StoreErrors.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsSeen   int64 `json:"events_seen"`
	EventsMarked int64 `json:"events_marked"`
	StoreErrors  int64 `json:"store_errors"`
}

// IdempotencyGuard is the seen-cache in front of the posting engine's
// transactional claim. A hit lets the engine answer a redelivery before any
// database work; a miss or a store outage only costs the claim round trip.
type IdempotencyGuard struct {
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	consumer string
	logger   *zap.Logger
	metrics  *IdempotencyMetrics
}

// IdempotencyGuardOption is a functional option for IdempotencyGuard
type IdempotencyGuardOption func(*IdempotencyGuard)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotencyGuardOption {
	return func(g *IdempotencyGuard) {
		g.config = config
	}
}

// WithIdempotencyMetrics sets the metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotencyGuardOption {
	return func(g *IdempotencyGuard) {
		g.metrics = metrics
	}
}

// WithConsumerName namespaces cache keys by consumer, matching the
// (event id, consumer) key of the database claim.
func WithConsumerName(name string) IdempotencyGuardOption {
	return func(g *IdempotencyGuard) {
		g.consumer = name
	}
}

// NewIdempotencyGuard creates a new guard over store
func NewIdempotencyGuard(store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotencyGuardOption) *IdempotencyGuard {
	g := &IdempotencyGuard{
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *IdempotencyGuard) key(eventID uuid.UUID) string {
	if g.consumer == "" {
		return eventID.String()
	}
	return g.consumer + ":" + eventID.String()
}

// Seen reports whether eventID was already processed. Store errors count as
// not seen.
func (g *IdempotencyGuard) Seen(ctx context.Context, eventID uuid.UUID) bool {
	if !g.config.Enabled {
		return false
	}
	seen, err := g.store.IsProcessed(ctx, g.key(eventID))
	if err != nil {
		g.metrics.StoreErrors.Add(1)
		g.logger.Warn("seen-cache unavailable, relying on database claim",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
		return false
	}
	if seen {
		g.metrics.EventsSeen.Add(1)
		g.logger.Debug("duplicate event detected in seen-cache",
			zap.String("event_id", eventID.String()),
		)
	}
	return seen
}

// Remember records eventID once its claim has committed
func (g *IdempotencyGuard) Remember(ctx context.Context, eventID uuid.UUID) {
	if !g.config.Enabled {
		return
	}
	if _, err := g.store.MarkProcessed(ctx, g.key(eventID), g.config.TTL); err != nil {
		g.metrics.StoreErrors.Add(1)
		g.logger.Warn("failed to mark event in seen-cache",
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
		return
	}
	g.metrics.EventsMarked.Add(1)
}

// GetMetrics returns the metrics for this guard
func (g *IdempotencyGuard) GetMetrics() *IdempotencyMetrics {
	return g.metrics
}
