package persistence

import (
	"context"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormUnmappedEventRepository writes the unmapped backlog of one tenant
type GormUnmappedEventRepository struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewGormUnmappedEventRepository creates a backlog repository scoped to tenantID
func NewGormUnmappedEventRepository(db *gorm.DB, tenantID uuid.UUID) *GormUnmappedEventRepository {
	return &GormUnmappedEventRepository{db: db, tenantID: tenantID}
}

// Upsert inserts the row or bumps occurrence_count on the existing one.
// A resolved row that misses again is re-opened.
func (r *GormUnmappedEventRepository) Upsert(ctx context.Context, row *mapping.UnmappedEvent) (*mapping.UnmappedEvent, error) {
	if row.TenantID != r.tenantID {
		return nil, shared.ErrTenantMismatch
	}
	m := models.UnmappedEventModelFromDomain(row)
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"occurrence_count": gorm.Expr("gl_unmapped_events.occurrence_count + 1"),
			"last_seen_at":     row.LastSeenAt,
			"event_id":         row.EventID,
			"status":           mapping.UnmappedStatusUnresolved,
			"resolved_at":      nil,
		}),
	}).Create(m).Error
	if err != nil {
		return nil, err
	}

	var stored models.UnmappedEventModel
	if err := db.Scopes(tenant.TenantScope(r.tenantID)).
		Where("entity_type = ? AND entity_id = ?", row.EntityType, row.EntityID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return stored.ToDomain(), nil
}

// Resolve marks the unresolved rows for refs as resolved
func (r *GormUnmappedEventRepository) Resolve(ctx context.Context, refs []mapping.EntityRef, at time.Time) (int64, error) {
	var total int64
	for _, ref := range refs {
		result := r.db.WithContext(ctx).
			Model(&models.UnmappedEventModel{}).
			Scopes(tenant.TenantScope(r.tenantID)).
			Where("entity_type = ? AND entity_id = ? AND status = ?", ref.EntityType, ref.EntityID, mapping.UnmappedStatusUnresolved).
			Updates(map[string]any{
				"status":      mapping.UnmappedStatusResolved,
				"resolved_at": at,
			})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
	}
	return total, nil
}

var _ mapping.UnmappedEventRepository = (*GormUnmappedEventRepository)(nil)
