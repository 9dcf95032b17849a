package shared

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an event that occurred in the domain
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent carries the envelope fields shared by inbound and outbound events.
// Event types are dotted and versioned, e.g. "gl_journal_entry.posted.v1".
type BaseDomainEvent struct {
	ID            uuid.UUID `json:"eventId"`
	Type          string    `json:"eventType"`
	Timestamp     time.Time `json:"occurredAt"`
	AggID         uuid.UUID `json:"aggregateId"`
	AggType       string    `json:"aggregateType"`
	TenantIDValue uuid.UUID `json:"tenantId"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID returns the ID of the aggregate that produced this event
func (e *BaseDomainEvent) AggregateID() uuid.UUID {
	return e.AggID
}

// AggregateType returns the type of the aggregate
func (e *BaseDomainEvent) AggregateType() string {
	return e.AggType
}

// TenantID returns the tenant ID
func (e *BaseDomainEvent) TenantID() uuid.UUID {
	return e.TenantIDValue
}

// SchemaVersion returns the version suffix of the event type ("x.y.v2" -> 2).
// Types without a suffix are version 1.
func (e *BaseDomainEvent) SchemaVersion() int {
	return SchemaVersionOf(e.Type)
}

// NewBaseDomainEvent creates a new base domain event stamped with the current time
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:            uuid.New(),
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
		AggID:         aggID,
		AggType:       aggType,
		TenantIDValue: tenantID,
	}
}

// SchemaVersionOf parses the trailing ".vN" of a versioned event type.
func SchemaVersionOf(eventType string) int {
	idx := strings.LastIndex(eventType, ".v")
	if idx < 0 {
		return 1
	}
	v, err := strconv.Atoi(eventType[idx+2:])
	if err != nil || v < 1 {
		return 1
	}
	return v
}
