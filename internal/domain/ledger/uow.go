package ledger

import (
	"context"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
)

// JournalRepository persists journal entries of the unit-of-work tenant
type JournalRepository interface {
	// FindByID returns the entry with its lines, or nil when absent
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)
	// FindBySource returns the entry for (sourceModule, sourceReferenceID), or nil
	FindBySource(ctx context.Context, sourceModule, sourceReferenceID string) (*JournalEntry, error)
	// FindActiveBySourceEntity returns the posted, non-reversal entry derived from entityID, or nil
	FindActiveBySourceEntity(ctx context.Context, sourceModule, entityID string) (*JournalEntry, error)
	// Insert writes the header and lines
	Insert(ctx context.Context, entry *JournalEntry) error
	// MarkVoided persists the voided status; it fails with a concurrency
	// conflict if the stored entry is no longer posted.
	MarkVoided(ctx context.Context, entry *JournalEntry) error
}

// JournalNumberAllocator hands out per-tenant monotonic journal numbers
type JournalNumberAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// ProcessedEventRepository is the transactional idempotency guard
type ProcessedEventRepository interface {
	// TryClaim records (eventID, consumer). It returns false when the pair
	// was already recorded.
	TryClaim(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error)
}

// SourceDocumentRepository stores source document snapshots
type SourceDocumentRepository interface {
	// Save inserts or replaces the document keyed by (module, entity type, entity id)
	Save(ctx context.Context, doc *SourceDocument) error
	// Find returns the document, or nil when absent
	Find(ctx context.Context, sourceModule, entityType, entityID string) (*SourceDocument, error)
}

// RevenueActivityRepository appends to the revenue-activity ledger
type RevenueActivityRepository interface {
	Record(ctx context.Context, activity *RevenueActivity) error
}

// UnitOfWork exposes repositories bound to one tenant and one transaction.
// Events collected on it are published only after the transaction commits.
type UnitOfWork interface {
	shared.EventCollector
	TenantID() uuid.UUID
	Journals() JournalRepository
	JournalNumbers() JournalNumberAllocator
	ProcessedEvents() ProcessedEventRepository
	SourceDocuments() SourceDocumentRepository
	RevenueActivity() RevenueActivityRepository
	Unmapped() mapping.UnmappedEventRepository
}

// TransactionCoordinator runs fn inside a tenant-guarded unit of work. A nil
// error from fn commits and then flushes collected events; any error rolls
// back and discards them.
type TransactionCoordinator interface {
	Do(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// QueryRepository serves the read accessors. Every method is tenant scoped.
type QueryRepository interface {
	GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	// ListRemappableDocuments pages unmapped and held documents. An empty
	// entityType lists every type.
	ListRemappableDocuments(ctx context.Context, tenantID uuid.UUID, entityType string, filter shared.Filter) ([]SourceDocument, int64, error)
	ListUnmapped(ctx context.Context, tenantID uuid.UUID, status mapping.UnmappedStatus, filter shared.Filter) ([]mapping.UnmappedEvent, int64, error)
	CountUnresolvedByEntityType(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)
	FindSourceDocument(ctx context.Context, tenantID uuid.UUID, sourceModule, entityType, entityID string) (*SourceDocument, error)
}
