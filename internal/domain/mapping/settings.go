package mapping

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// COGSMode selects how cost of goods sold reaches the ledger
type COGSMode string

const (
	COGSModePerpetual COGSMode = "perpetual"
	COGSModePeriodic  COGSMode = "periodic"
)

// PostingMode selects whether composed entries post immediately
type PostingMode string

const (
	PostingModeAuto   PostingMode = "auto"
	PostingModeManual PostingMode = "manual"
)

// RoundingMode is used when a gross amount is split proportionally
type RoundingMode string

const (
	RoundingHalfUp   RoundingMode = "half_up"
	RoundingHalfEven RoundingMode = "half_even"
)

// DefaultTolerance is the balancing tolerance when a tenant has none configured
var DefaultTolerance = decimal.RequireFromString("0.05")

// AccountingSettings holds per-tenant posting defaults
type AccountingSettings struct {
	TenantID        uuid.UUID
	ControlAccounts map[Target]uuid.UUID
	Tolerance       decimal.Decimal
	COGSMode        COGSMode
	PostingMode     PostingMode
	RoundingMode    RoundingMode
}

// DefaultSettings returns the settings applied to a tenant without a settings row
func DefaultSettings(tenantID uuid.UUID) *AccountingSettings {
	return &AccountingSettings{
		TenantID:        tenantID,
		ControlAccounts: map[Target]uuid.UUID{},
		Tolerance:       DefaultTolerance,
		COGSMode:        COGSModePerpetual,
		PostingMode:     PostingModeAuto,
		RoundingMode:    RoundingHalfUp,
	}
}

// ControlAccount returns the tenant default account for target
func (s *AccountingSettings) ControlAccount(target Target) (uuid.UUID, bool) {
	id, ok := s.ControlAccounts[target]
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ToleranceCents returns the tolerance in integer cents
func (s *AccountingSettings) ToleranceCents() int64 {
	return s.Tolerance.Shift(2).Round(0).IntPart()
}

// SettingsRepository loads accounting settings
type SettingsRepository interface {
	// Get returns the tenant settings, or DefaultSettings when none are stored
	Get(ctx context.Context, tenantID uuid.UUID) (*AccountingSettings, error)
}
