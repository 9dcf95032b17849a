// Package tenant scopes GORM queries to a single tenant.
//
// Every ledger table carries tenant_id. Repositories apply TenantScope on
// each query with the tenant their unit of work or read call was bound to.
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when a query is scoped to the nil tenant
var ErrTenantIDRequired = errors.New("tenant_id is required")

// TenantScope applies tenant filtering to GORM queries
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}
