package persistence

import (
	"context"
	"errors"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/models"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMappingRepository reads the four per-kind mapping tables
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// FindMapping returns the mapping of (kind, key) at locationID, or the
// tenant-wide mapping when locationID is nil. It returns nil when no row exists.
func (r *GormMappingRepository) FindMapping(ctx context.Context, tenantID uuid.UUID, kind mapping.MappingKind, key string, locationID *uuid.UUID) (*mapping.AccountMapping, error) {
	table, ok := models.MappingTables[kind]
	if !ok {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "no mapping table for kind %s", kind)
	}
	query := r.db.WithContext(ctx).Table(table).
		Scopes(tenant.TenantScope(tenantID)).
		Where("mapping_key = ?", key)
	if locationID == nil {
		query = query.Where("location_id IS NULL")
	} else {
		query = query.Where("location_id = ?", *locationID)
	}

	var rows []models.AccountMappingModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	m := &mapping.AccountMapping{
		TenantID:   tenantID,
		Kind:       kind,
		Key:        key,
		LocationID: locationID,
		Accounts:   make(map[mapping.Target]uuid.UUID, len(rows)),
	}
	for _, row := range rows {
		m.Accounts[row.Target] = row.AccountID
	}
	return m, nil
}

// CountByKind returns the number of distinct mapped keys per kind
func (r *GormMappingRepository) CountByKind(ctx context.Context, tenantID uuid.UUID) (map[mapping.MappingKind]int64, error) {
	counts := make(map[mapping.MappingKind]int64, len(models.MappingTables))
	for _, kind := range mapping.MappedKinds {
		var n int64
		err := r.db.WithContext(ctx).Table(models.MappingTables[kind]).
			Scopes(tenant.TenantScope(tenantID)).
			Distinct("mapping_key").
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, nil
}

// GormSettingsRepository loads accounting settings and control accounts
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the stored settings, or the defaults with any stored control
// accounts when the tenant has no settings row.
func (r *GormSettingsRepository) Get(ctx context.Context, tenantID uuid.UUID) (*mapping.AccountingSettings, error) {
	db := r.db.WithContext(ctx)

	var controls []models.ControlAccountModel
	if err := db.Scopes(tenant.TenantScope(tenantID)).Find(&controls).Error; err != nil {
		return nil, err
	}

	var row models.AccountingSettingsModel
	err := db.Scopes(tenant.TenantScope(tenantID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.AccountingSettingsModel{TenantID: tenantID}
	} else if err != nil {
		return nil, err
	}
	return row.ToDomain(controls), nil
}

var (
	_ mapping.MappingRepository  = (*GormMappingRepository)(nil)
	_ mapping.SettingsRepository = (*GormSettingsRepository)(nil)
)
