package ledger

import (
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentStatus is the GL state of a source document
type DocumentStatus string

const (
	DocumentStatusPosted        DocumentStatus = "posted"
	DocumentStatusUnmapped      DocumentStatus = "unmapped"
	DocumentStatusPendingReview DocumentStatus = "pending_review"
	DocumentStatusSkipped       DocumentStatus = "skipped"
)

const (
	// SourceModulePOS is the source module of tender documents
	SourceModulePOS = "pos"
	// EntityTypeTender is the source entity type of tender documents
	EntityTypeTender = "tender"
)

// SourceDocument is the last seen payload of a business document that feeds
// the ledger. Remap re-composes from it.
type SourceDocument struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	SourceModule    string
	EntityType      string
	EntityID        string
	EventID         uuid.UUID
	EventType       string
	LocationID      *uuid.UUID
	BusinessDate    time.Time
	Payload         []byte
	Status          DocumentStatus
	MissingMappings []mapping.EntityRef
	JournalEntryID  *uuid.UUID
	UpdatedAt       time.Time
}

// DocumentRef is the natural key of a source document
type DocumentRef struct {
	SourceModule string `json:"sourceModule" validate:"required"`
	EntityType   string `json:"entityType" validate:"required"`
	EntityID     string `json:"entityId" validate:"required"`
}

// TenderRef returns the key of a POS tender document
func TenderRef(tenderID string) DocumentRef {
	return DocumentRef{SourceModule: SourceModulePOS, EntityType: EntityTypeTender, EntityID: tenderID}
}

func (r DocumentRef) String() string {
	return r.SourceModule + "/" + r.EntityType + "/" + r.EntityID
}

// SourceDocumentID derives the document id from its natural key, so every
// snapshot of the same business document carries the same id.
func SourceDocumentID(tenantID uuid.UUID, sourceModule, entityType, entityID string) uuid.UUID {
	return uuid.NewSHA1(tenantID, []byte(DocumentRef{sourceModule, entityType, entityID}.String()))
}

// Ref returns the document's natural key
func (d *SourceDocument) Ref() DocumentRef {
	return DocumentRef{SourceModule: d.SourceModule, EntityType: d.EntityType, EntityID: d.EntityID}
}

// IsRemappable reports whether the document is waiting on a mapping or review
func (d *SourceDocument) IsRemappable() bool {
	return d.Status == DocumentStatusUnmapped || d.Status == DocumentStatusPendingReview
}

// MarkPosted records the entry that now represents the document
func (d *SourceDocument) MarkPosted(entryID uuid.UUID, at time.Time) {
	d.Status = DocumentStatusPosted
	d.JournalEntryID = &entryID
	d.MissingMappings = nil
	d.UpdatedAt = at
}

// RevenueActivity records an observational revenue movement that never
// reaches the GL, such as a stored-value redemption.
type RevenueActivity struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	EventID      uuid.UUID
	ActivityType string
	ReferenceID  string
	LocationID   *uuid.UUID
	Amount       decimal.Decimal
	BusinessDate time.Time
	RecordedAt   time.Time
}
