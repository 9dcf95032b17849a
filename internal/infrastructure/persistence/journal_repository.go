package persistence

import (
	"context"
	"errors"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormJournalRepository implements ledger.JournalRepository for one tenant
type GormJournalRepository struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewGormJournalRepository creates a journal repository scoped to tenantID
func NewGormJournalRepository(db *gorm.DB, tenantID uuid.UUID) *GormJournalRepository {
	return &GormJournalRepository{db: db, tenantID: tenantID}
}

func (r *GormJournalRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Scopes(tenant.TenantScope(r.tenantID))
}

func (r *GormJournalRepository) first(ctx context.Context, query string, args ...any) (*ledger.JournalEntry, error) {
	var m models.JournalEntryModel
	err := r.scoped(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where(query, args...).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByID returns the entry with its lines, or nil when absent
func (r *GormJournalRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	return r.first(ctx, "id = ?", id)
}

// FindBySource returns the entry for (sourceModule, sourceReferenceID), or nil
func (r *GormJournalRepository) FindBySource(ctx context.Context, sourceModule, sourceReferenceID string) (*ledger.JournalEntry, error) {
	return r.first(ctx, "source_module = ? AND source_reference_id = ?", sourceModule, sourceReferenceID)
}

// FindActiveBySourceEntity returns the posted non-reversal entry of entityID, or nil
func (r *GormJournalRepository) FindActiveBySourceEntity(ctx context.Context, sourceModule, entityID string) (*ledger.JournalEntry, error) {
	var m models.JournalEntryModel
	err := r.scoped(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("source_module = ? AND source_entity_id = ? AND status = ? AND reversal_of_id IS NULL",
			sourceModule, entityID, ledger.JournalStatusPosted).
		Order("journal_number DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Insert writes the header and its lines. A concurrent insert of the same
// source reference surfaces as DUPLICATE_EVENT.
func (r *GormJournalRepository) Insert(ctx context.Context, entry *ledger.JournalEntry) error {
	if !entry.BelongsTo(r.tenantID) {
		return shared.ErrTenantMismatch
	}
	m := models.JournalEntryModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainErrorf(shared.CodeDuplicateEvent,
				"journal for %s %s already exists", entry.SourceModule, entry.SourceReferenceID)
		}
		return err
	}
	return nil
}

// MarkVoided flips a posted entry to voided. Nothing else on the row changes.
func (r *GormJournalRepository) MarkVoided(ctx context.Context, entry *ledger.JournalEntry) error {
	if !entry.BelongsTo(r.tenantID) {
		return shared.ErrTenantMismatch
	}
	result := r.scoped(ctx).
		Model(&models.JournalEntryModel{}).
		Where("id = ? AND status = ?", entry.ID, ledger.JournalStatusPosted).
		Updates(map[string]any{
			"status":      entry.Status,
			"voided_at":   entry.VoidedAt,
			"voided_by":   entry.VoidedBy,
			"void_reason": entry.VoidReason,
			"updated_at":  entry.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "journal #%d was modified concurrently", entry.JournalNumber)
	}
	return nil
}

// GormJournalNumberAllocator issues per-tenant journal numbers from a counter row
type GormJournalNumberAllocator struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewGormJournalNumberAllocator creates an allocator scoped to tenantID
func NewGormJournalNumberAllocator(db *gorm.DB, tenantID uuid.UUID) *GormJournalNumberAllocator {
	return &GormJournalNumberAllocator{db: db, tenantID: tenantID}
}

// Next increments the counter and returns the new value. The row lock is held
// until the surrounding transaction ends, which serializes posting per tenant.
func (a *GormJournalNumberAllocator) Next(ctx context.Context) (int64, error) {
	db := a.db.WithContext(ctx)
	if err := db.Exec(
		`INSERT INTO gl_journal_counters (tenant_id, last_number) VALUES (?, 1)
		 ON CONFLICT (tenant_id) DO UPDATE SET last_number = gl_journal_counters.last_number + 1`,
		a.tenantID,
	).Error; err != nil {
		return 0, err
	}
	var counter models.JournalCounterModel
	if err := db.Where("tenant_id = ?", a.tenantID).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.LastNumber, nil
}

var (
	_ ledger.JournalRepository      = (*GormJournalRepository)(nil)
	_ ledger.JournalNumberAllocator = (*GormJournalNumberAllocator)(nil)
)
