package mapping

import (
	"context"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
)

// UnmappedStatus is the lifecycle state of an unmapped event
type UnmappedStatus string

const (
	UnmappedStatusUnresolved UnmappedStatus = "unresolved"
	UnmappedStatusResolved   UnmappedStatus = "resolved"
)

// EventTypeUnmappedEventLogged is published whenever a resolution miss is recorded
const EventTypeUnmappedEventLogged = "accounting.unmapped_event.logged.v1"

// AggregateTypeUnmappedEvent is the aggregate type of unmapped events
const AggregateTypeUnmappedEvent = "UnmappedEvent"

// EntityRef identifies the business entity whose mapping is missing
type EntityRef struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
}

// UnmappedEvent is the backlog row for an entity that could not be resolved.
// There is at most one row per (tenant, entity type, entity id).
type UnmappedEvent struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	EntityType      string
	EntityID        string
	EventID         uuid.UUID
	Status          UnmappedStatus
	OccurrenceCount int
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	ResolvedAt      *time.Time
}

// NewUnmappedEvent creates a first-occurrence row
func NewUnmappedEvent(tenantID uuid.UUID, ref EntityRef, eventID uuid.UUID, seenAt time.Time) *UnmappedEvent {
	return &UnmappedEvent{
		ID:              uuid.New(),
		TenantID:        tenantID,
		EntityType:      ref.EntityType,
		EntityID:        ref.EntityID,
		EventID:         eventID,
		Status:          UnmappedStatusUnresolved,
		OccurrenceCount: 1,
		FirstSeenAt:     seenAt,
		LastSeenAt:      seenAt,
	}
}

// Ref returns the entity reference of the row
func (u *UnmappedEvent) Ref() EntityRef {
	return EntityRef{EntityType: u.EntityType, EntityID: u.EntityID}
}

// UnmappedEventLoggedEvent is emitted after a miss is upserted
type UnmappedEventLoggedEvent struct {
	shared.BaseDomainEvent
	EntityType      string    `json:"entityType"`
	EntityID        string    `json:"entityId"`
	SourceEventID   uuid.UUID `json:"sourceEventId"`
	OccurrenceCount int       `json:"occurrenceCount"`
	Targets         []Target  `json:"targets"`
}

// NewUnmappedEventLoggedEvent builds the outbound event for a stored row
func NewUnmappedEventLoggedEvent(row *UnmappedEvent, targets []Target) *UnmappedEventLoggedEvent {
	return &UnmappedEventLoggedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeUnmappedEventLogged, AggregateTypeUnmappedEvent, row.ID, row.TenantID),
		EntityType:      row.EntityType,
		EntityID:        row.EntityID,
		SourceEventID:   row.EventID,
		OccurrenceCount: row.OccurrenceCount,
		Targets:         targets,
	}
}

// UnmappedEventRepository writes the unmapped backlog inside a unit of work
type UnmappedEventRepository interface {
	// Upsert inserts the row or increments occurrence_count on the existing
	// (tenant, entity type, entity id) row, re-opening it if it was resolved.
	// It returns the stored row.
	Upsert(ctx context.Context, row *UnmappedEvent) (*UnmappedEvent, error)
	// Resolve marks the unresolved rows for refs as resolved
	Resolve(ctx context.Context, refs []EntityRef, at time.Time) (int64, error)
}
