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
	"gorm.io/gorm/clause"
)

// GormSourceDocumentRepository stores source document snapshots of one tenant
type GormSourceDocumentRepository struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewGormSourceDocumentRepository creates a repository scoped to tenantID
func NewGormSourceDocumentRepository(db *gorm.DB, tenantID uuid.UUID) *GormSourceDocumentRepository {
	return &GormSourceDocumentRepository{db: db, tenantID: tenantID}
}

// Save inserts the document or replaces the stored snapshot of the same entity
func (r *GormSourceDocumentRepository) Save(ctx context.Context, doc *ledger.SourceDocument) error {
	if doc.TenantID != r.tenantID {
		return shared.ErrTenantMismatch
	}
	m, err := models.SourceDocumentModelFromDomain(doc)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "source_module"}, {Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"event_id", "event_type", "location_id", "business_date", "payload",
			"status", "missing_mappings", "journal_entry_id", "updated_at",
		}),
	}).Create(m).Error
}

// Find returns the document, or nil when absent
func (r *GormSourceDocumentRepository) Find(ctx context.Context, sourceModule, entityType, entityID string) (*ledger.SourceDocument, error) {
	return findSourceDocument(r.db.WithContext(ctx), r.tenantID, sourceModule, entityType, entityID)
}

func findSourceDocument(db *gorm.DB, tenantID uuid.UUID, sourceModule, entityType, entityID string) (*ledger.SourceDocument, error) {
	var m models.SourceDocumentModel
	err := db.Scopes(tenant.TenantScope(tenantID)).
		Where("source_module = ? AND entity_type = ? AND entity_id = ?", sourceModule, entityType, entityID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain()
}

// GormRevenueActivityRepository appends to the revenue-activity ledger
type GormRevenueActivityRepository struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewGormRevenueActivityRepository creates a repository scoped to tenantID
func NewGormRevenueActivityRepository(db *gorm.DB, tenantID uuid.UUID) *GormRevenueActivityRepository {
	return &GormRevenueActivityRepository{db: db, tenantID: tenantID}
}

// Record appends one activity. Replays of the same event are ignored.
func (r *GormRevenueActivityRepository) Record(ctx context.Context, activity *ledger.RevenueActivity) error {
	if activity.TenantID != r.tenantID {
		return shared.ErrTenantMismatch
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.RevenueActivityModelFromDomain(activity)).Error
}

var (
	_ ledger.SourceDocumentRepository  = (*GormSourceDocumentRepository)(nil)
	_ ledger.RevenueActivityRepository = (*GormRevenueActivityRepository)(nil)
)
