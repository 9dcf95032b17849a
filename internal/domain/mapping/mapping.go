// Package mapping resolves abstract posting targets to concrete GL accounts.
package mapping

import (
	"context"

	"github.com/google/uuid"
)

// MappingKind identifies which mapping table a lookup key belongs to
type MappingKind string

const (
	KindSubDepartment  MappingKind = "sub_department"
	KindPaymentType    MappingKind = "payment_type"
	KindTaxGroup       MappingKind = "tax_group"
	KindTenderType     MappingKind = "tender_type"
	KindControlAccount MappingKind = "control_account"
)

// MappedKinds lists the kinds backed by a mapping table
var MappedKinds = []MappingKind{KindSubDepartment, KindPaymentType, KindTaxGroup, KindTenderType}

// Target is an abstract posting role such as revenue or tax payable
type Target string

const (
	TargetRevenue          Target = "revenue"
	TargetCOGS             Target = "cogs"
	TargetInventory        Target = "inventory"
	TargetReturns          Target = "returns"
	TargetCompExpense      Target = "comp_expense"
	TargetTaxPayable       Target = "tax_payable"
	TargetTipsPayable      Target = "tips_payable"
	TargetUndepositedFunds Target = "undeposited_funds"
	TargetCashOnHand       Target = "cash_on_hand"
	TargetChecksReceivable Target = "checks_receivable"
	TargetBank             Target = "bank"
	TargetProcessingFee    Target = "processing_fee"
	TargetChargebackLoss   Target = "chargeback_loss"
	TargetPayrollClearing  Target = "payroll_clearing"
	TargetCashOverShort    Target = "cash_over_short"
)

// AccountMapping is one row of a per-kind mapping table. A nil LocationID is
// the tenant-wide row; a set LocationID overrides it for that location.
type AccountMapping struct {
	TenantID   uuid.UUID
	Kind       MappingKind
	Key        string
	LocationID *uuid.UUID
	Accounts   map[Target]uuid.UUID
}

// AccountFor returns the account mapped for target, if any
func (m *AccountMapping) AccountFor(target Target) (uuid.UUID, bool) {
	if m == nil {
		return uuid.Nil, false
	}
	id, ok := m.Accounts[target]
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// MappingRepository reads the per-kind mapping tables. Mappings are owned by
// the settings UI and are read-only here.
type MappingRepository interface {
	// FindMapping returns the row for (kind, key, locationID), or nil when absent.
	// A nil locationID selects the tenant-wide row.
	FindMapping(ctx context.Context, tenantID uuid.UUID, kind MappingKind, key string, locationID *uuid.UUID) (*AccountMapping, error)
	// CountByKind returns how many keys are mapped per kind
	CountByKind(ctx context.Context, tenantID uuid.UUID) (map[MappingKind]int64, error)
}
