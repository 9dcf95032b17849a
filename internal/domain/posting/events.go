package posting

import (
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
)

// Inbound event types
const (
	EventTypeTenderCompleted         = "tender.completed.v1"
	EventTypeOrderVoided             = "order.voided.v1"
	EventTypeOrderReturned           = "order.returned.v1"
	EventTypeCardSettlementCompleted = "card.settlement.completed.v1"
	EventTypeTipPayoutCreated        = "tip.payout.created.v1"
	EventTypePeriodicCOGS            = "inventory.periodic_cogs.v1"
	EventTypeDepositSlipCreated      = "deposit.slip.created.v1"
	EventTypeStoredValueRedeemed     = "customer.stored_value.redeemed.v1"
)

// AggregateTypeInbound is the aggregate type stamped on inbound events
const AggregateTypeInbound = "InboundEvent"

// Event is a decoded inbound envelope. Data holds one of the payload types below.
type Event struct {
	shared.BaseDomainEvent
	Location *uuid.UUID `json:"locationId,omitempty"`
	Data     any        `json:"data"`
}

// NewEvent wraps a payload in an inbound envelope
func NewEvent(eventID, tenantID uuid.UUID, eventType string, occurredAt time.Time, locationID *uuid.UUID, data any) *Event {
	return &Event{
		BaseDomainEvent: shared.BaseDomainEvent{
			ID:            eventID,
			Type:          eventType,
			Timestamp:     occurredAt,
			AggID:         eventID,
			AggType:       AggregateTypeInbound,
			TenantIDValue: tenantID,
		},
		Location: locationID,
		Data:     data,
	}
}

// LocationID returns the envelope location
func (e *Event) LocationID() *uuid.UUID {
	return e.Location
}

// NewPayload returns an empty payload for eventType, or nil when the type is unknown
func NewPayload(eventType string) any {
	switch eventType {
	case EventTypeTenderCompleted:
		return &TenderCompleted{}
	case EventTypeOrderVoided:
		return &OrderVoided{}
	case EventTypeOrderReturned:
		return &OrderReturned{}
	case EventTypeCardSettlementCompleted:
		return &CardSettlementCompleted{}
	case EventTypeTipPayoutCreated:
		return &TipPayoutCreated{}
	case EventTypePeriodicCOGS:
		return &PeriodicCOGS{}
	case EventTypeDepositSlipCreated:
		return &DepositSlipCreated{}
	case EventTypeStoredValueRedeemed:
		return &StoredValueRedeemed{}
	}
	return nil
}

// InboundEventTypes lists every consumed event type
var InboundEventTypes = []string{
	EventTypeTenderCompleted,
	EventTypeOrderVoided,
	EventTypeOrderReturned,
	EventTypeCardSettlementCompleted,
	EventTypeTipPayoutCreated,
	EventTypePeriodicCOGS,
	EventTypeDepositSlipCreated,
	EventTypeStoredValueRedeemed,
}

// SaleLine is the revenue and tax of one sub-department on a tender
type SaleLine struct {
	SubDepartmentID string     `json:"subDepartmentId" validate:"required"`
	DepartmentID    *uuid.UUID `json:"departmentId,omitempty"`
	NetCents        Cents      `json:"netCents" validate:"gte=0"`
	TaxGroupID      string     `json:"taxGroupId,omitempty" validate:"required_with=TaxCents"`
	TaxCents        Cents      `json:"taxCents" validate:"gte=0"`
}

// CompLine is a comped amount recognized as expense
type CompLine struct {
	SubDepartmentID string     `json:"subDepartmentId" validate:"required"`
	DepartmentID    *uuid.UUID `json:"departmentId,omitempty"`
	AmountCents     Cents      `json:"amountCents" validate:"gt=0"`
}

// TenderCompleted settles part or all of an order. GrossCents includes tip.
type TenderCompleted struct {
	TenderID     string     `json:"tenderId" validate:"required"`
	OrderID      string     `json:"orderId"`
	TenderType   string     `json:"tenderType" validate:"required"`
	PaymentType  string     `json:"paymentType,omitempty"`
	BusinessDate time.Time  `json:"businessDate" validate:"required"`
	GrossCents   Cents      `json:"grossCents" validate:"gt=0"`
	TipCents     Cents      `json:"tipCents" validate:"gte=0"`
	Lines        []SaleLine `json:"lines" validate:"required,min=1,dive"`
	Comps        []CompLine `json:"comps,omitempty" validate:"dive"`
}

// PaymentKey returns the payment-type mapping key of the tender
func (t *TenderCompleted) PaymentKey() string {
	if t.PaymentType != "" {
		return t.PaymentType
	}
	return t.TenderType
}

// ReversalLine is a voided or returned portion of an order. Either NetCents and
// TaxCents are given, or GrossCents is split using the original net/tax ratio.
type ReversalLine struct {
	SubDepartmentID  string     `json:"subDepartmentId" validate:"required"`
	DepartmentID     *uuid.UUID `json:"departmentId,omitempty"`
	TaxGroupID       string     `json:"taxGroupId,omitempty"`
	NetCents         Cents      `json:"netCents" validate:"gte=0"`
	TaxCents         Cents      `json:"taxCents" validate:"gte=0"`
	GrossCents       Cents      `json:"grossCents" validate:"gte=0"`
	OriginalNetCents Cents      `json:"originalNetCents" validate:"gte=0"`
	OriginalTaxCents Cents      `json:"originalTaxCents" validate:"gte=0"`
	CostCents        Cents      `json:"costCents" validate:"gte=0"`
}

// OrderVoided reverses part of a tendered order
type OrderVoided struct {
	VoidID       string         `json:"voidId" validate:"required"`
	OrderID      string         `json:"orderId" validate:"required"`
	PaymentType  string         `json:"paymentType" validate:"required"`
	BusinessDate time.Time      `json:"businessDate" validate:"required"`
	Lines        []ReversalLine `json:"lines" validate:"required,min=1,dive"`
}

// OrderReturned refunds part of an order
type OrderReturned struct {
	ReturnID     string         `json:"returnId" validate:"required"`
	OrderID      string         `json:"orderId" validate:"required"`
	RefundMethod string         `json:"refundMethod" validate:"required"`
	PaymentType  string         `json:"paymentType,omitempty"`
	BusinessDate time.Time      `json:"businessDate" validate:"required"`
	Lines        []ReversalLine `json:"lines" validate:"required,min=1,dive"`
}

// CardSettlementCompleted is a processor batch deposit. NetCents is optional
// and defaults to gross − fee − chargeback.
type CardSettlementCompleted struct {
	SettlementID    string    `json:"settlementId" validate:"required"`
	PaymentType     string    `json:"paymentType" validate:"required"`
	BusinessDate    time.Time `json:"businessDate" validate:"required"`
	GrossCents      Cents     `json:"grossCents" validate:"gt=0"`
	FeeCents        Cents     `json:"feeCents" validate:"gte=0"`
	ChargebackCents Cents     `json:"chargebackCents" validate:"gte=0"`
	NetCents        Cents     `json:"netCents,omitempty" validate:"gte=0"`
}

// Tip payout methods
const (
	TipPayoutCash    = "cash"
	TipPayoutPayroll = "payroll"
)

// TipPayoutCreated pays accrued tips to an employee
type TipPayoutCreated struct {
	PayoutID     string    `json:"payoutId" validate:"required"`
	EmployeeID   string    `json:"employeeId"`
	Method       string    `json:"method" validate:"required,oneof=cash payroll"`
	AmountCents  Cents     `json:"amountCents" validate:"gt=0"`
	BusinessDate time.Time `json:"businessDate" validate:"required"`
}

// COGSLine is the periodic cost of one sub-department
type COGSLine struct {
	SubDepartmentID string     `json:"subDepartmentId" validate:"required"`
	DepartmentID    *uuid.UUID `json:"departmentId,omitempty"`
	AmountCents     Cents      `json:"amountCents" validate:"gte=0"`
}

// PeriodicCOGS books cost of goods sold for a closed period
type PeriodicCOGS struct {
	CalculationID string     `json:"calculationId" validate:"required"`
	PeriodStart   time.Time  `json:"periodStart"`
	PeriodEnd     time.Time  `json:"periodEnd"`
	BusinessDate  time.Time  `json:"businessDate" validate:"required"`
	Lines         []COGSLine `json:"lines" validate:"required,min=1,dive"`
}

// Tender types with dedicated clearing accounts
const (
	TenderTypeCash  = "cash"
	TenderTypeCheck = "check"
)

// DepositLine is the deposited amount of one tender type
type DepositLine struct {
	TenderType     string `json:"tenderType" validate:"required"`
	ExpectedCents  Cents  `json:"expectedCents" validate:"gte=0"`
	DepositedCents Cents  `json:"depositedCents" validate:"gte=0"`
}

// DepositSlipCreated moves counted funds to the bank
type DepositSlipCreated struct {
	DepositSlipID string        `json:"depositSlipId" validate:"required"`
	BusinessDate  time.Time     `json:"businessDate" validate:"required"`
	Lines         []DepositLine `json:"lines" validate:"required,min=1,dive"`
}

// StoredValueRedeemed is observational only: the liability was recognized at issuance
type StoredValueRedeemed struct {
	RedemptionID string    `json:"redemptionId" validate:"required"`
	CardID       string    `json:"cardId"`
	OrderID      string    `json:"orderId"`
	AmountCents  Cents     `json:"amountCents" validate:"gt=0"`
	BusinessDate time.Time `json:"businessDate" validate:"required"`
}
