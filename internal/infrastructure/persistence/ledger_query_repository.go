package persistence

import (
	"context"
	"errors"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerQueryRepository serves the read side outside any unit of work
type GormLedgerQueryRepository struct {
	db *gorm.DB
}

// NewGormLedgerQueryRepository creates a new GormLedgerQueryRepository
func NewGormLedgerQueryRepository(db *gorm.DB) *GormLedgerQueryRepository {
	return &GormLedgerQueryRepository{db: db}
}

// GetEntry returns the tenant's entry with its lines
func (r *GormLedgerQueryRepository) GetEntry(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	var m models.JournalEntryModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.TenantScope(tenantID)).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// ListRemappableDocuments pages documents that are unmapped or waiting for
// review. An empty entityType lists every type.
func (r *GormLedgerQueryRepository) ListRemappableDocuments(ctx context.Context, tenantID uuid.UUID, entityType string, filter shared.Filter) ([]ledger.SourceDocument, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SourceDocumentModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("status IN ?", []ledger.DocumentStatus{ledger.DocumentStatusUnmapped, ledger.DocumentStatusPendingReview})
	if entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SourceDocumentModel
	if err := query.
		Order("business_date " + ValidateSortOrder(filter.OrderDir)).
		Order("entity_id ASC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	docs := make([]ledger.SourceDocument, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}
	return docs, total, nil
}

// ListUnmapped pages the backlog. An empty status lists every row.
func (r *GormLedgerQueryRepository) ListUnmapped(ctx context.Context, tenantID uuid.UUID, status mapping.UnmappedStatus, filter shared.Filter) ([]mapping.UnmappedEvent, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.UnmappedEventModel{}).
		Scopes(tenant.TenantScope(tenantID))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.UnmappedEventModel
	if err := query.
		Order("last_seen_at " + ValidateSortOrder(filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]mapping.UnmappedEvent, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// CountUnresolvedByEntityType counts open backlog rows per entity type
func (r *GormLedgerQueryRepository) CountUnresolvedByEntityType(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	type entityCount struct {
		EntityType string
		Count      int64
	}
	var results []entityCount
	err := r.db.WithContext(ctx).
		Model(&models.UnmappedEventModel{}).
		Scopes(tenant.TenantScope(tenantID)).
		Where("status = ?", mapping.UnmappedStatusUnresolved).
		Select("entity_type, count(*) as count").
		Group("entity_type").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(results))
	for _, c := range results {
		counts[c.EntityType] = c.Count
	}
	return counts, nil
}

// FindSourceDocument returns the tenant's document, or nil when absent
func (r *GormLedgerQueryRepository) FindSourceDocument(ctx context.Context, tenantID uuid.UUID, sourceModule, entityType, entityID string) (*ledger.SourceDocument, error) {
	return findSourceDocument(r.db.WithContext(ctx), tenantID, sourceModule, entityType, entityID)
}

var _ ledger.QueryRepository = (*GormLedgerQueryRepository)(nil)
