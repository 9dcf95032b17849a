package event

import (
	"context"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher writes domain events to the outbox inside a transaction
type OutboxPublisher struct {
	serializer *EventSerializer
	maxRetries int
}

// OutboxPublisherOption configures an OutboxPublisher
type OutboxPublisherOption func(*OutboxPublisher)

// WithMaxRetries sets the delivery attempts of new entries before they are dead
func WithMaxRetries(n int) OutboxPublisherOption {
	return func(p *OutboxPublisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(serializer *EventSerializer, opts ...OutboxPublisherOption) *OutboxPublisher {
	p := &OutboxPublisher{serializer: serializer, maxRetries: shared.DefaultMaxRetries}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Write serializes events and stores them with tx, so they commit or roll back
// with the ledger rows that produced them. It returns the stored entries for
// the post-commit flush.
func (p *OutboxPublisher) Write(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) ([]*shared.OutboxEntry, error) {
	if len(events) == 0 {
		return nil, nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return nil, err
		}
		entry := shared.NewOutboxEntry(event, payload)
		entry.MaxRetries = p.maxRetries
		entries = append(entries, entry)
	}

	if err := NewGormOutboxRepository(tx).Save(ctx, entries...); err != nil {
		return nil, err
	}
	return entries, nil
}
