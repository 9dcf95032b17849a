package persistence

import (
	"context"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProcessedEventRepository is the transactional idempotency guard
type GormProcessedEventRepository struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

// NewGormProcessedEventRepository creates a guard that records claims for tenantID
func NewGormProcessedEventRepository(db *gorm.DB, tenantID uuid.UUID) *GormProcessedEventRepository {
	return &GormProcessedEventRepository{db: db, tenantID: tenantID}
}

// TryClaim inserts (eventID, consumer) and reports whether this call won the claim.
// The claim is only durable if the surrounding transaction commits.
func (r *GormProcessedEventRepository) TryClaim(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error) {
	m := &models.ProcessedEventModel{
		EventID:      eventID,
		ConsumerName: consumer,
		TenantID:     r.tenantID,
		ProcessedAt:  time.Now().UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

var _ ledger.ProcessedEventRepository = (*GormProcessedEventRepository)(nil)
