package posting

import (
	"fmt"
	"sort"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
)

// Source modules written on journal entries
const (
	ModulePOS            = ledger.SourceModulePOS
	ModulePOSVoid        = "pos_void"
	ModulePOSReturn      = "pos_return"
	ModuleCardSettlement = "card_settlement"
	ModuleTipPayout      = "tip_payout"
	ModuleInventoryCOGS  = "inventory_cogs"
	ModuleDepositSlip    = "deposit_slip"
	ModuleStoredValue    = "stored_value"
)

func request(evt *Event, kind mapping.MappingKind, key string, target mapping.Target) mapping.ResolveRequest {
	return mapping.ResolveRequest{
		TenantID:   evt.TenantID(),
		LocationID: evt.LocationID(),
		Kind:       kind,
		Key:        key,
		Target:     target,
	}
}

func control(evt *Event, target mapping.Target) mapping.ResolveRequest {
	return request(evt, mapping.KindControlAccount, "", target)
}

func payloadAs[T any](evt *Event) (*T, error) {
	p, ok := evt.Data.(*T)
	if !ok || p == nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "unexpected payload %T for %s", evt.Data, evt.EventType())
	}
	return p, nil
}

type deptKey struct {
	subDept string
	dept    uuid.UUID
}

func keyOf(subDept string, dept *uuid.UUID) deptKey {
	k := deptKey{subDept: subDept}
	if dept != nil {
		k.dept = *dept
	}
	return k
}

func (k deptKey) deptPtr() *uuid.UUID {
	if k.dept == uuid.Nil {
		return nil
	}
	d := k.dept
	return &d
}

// grouped sums amounts by key while keeping first-seen order
type grouped[K comparable] struct {
	order  []K
	totals map[K]Cents
}

func newGrouped[K comparable]() *grouped[K] {
	return &grouped[K]{totals: make(map[K]Cents)}
}

func (g *grouped[K]) add(k K, c Cents) {
	if _, ok := g.totals[k]; !ok {
		g.order = append(g.order, k)
	}
	g.totals[k] += c
}

// tender.completed.v1: Dr Undeposited Funds gross; Cr Revenue; Cr Tax Payable; Cr Tips Payable.
// Comps: Dr Comp Expense; Cr Revenue.
type tenderTemplate struct{}

func (tenderTemplate) EventType() string { return EventTypeTenderCompleted }
func (tenderTemplate) Policy() Policy    { return PolicyBlock }

func (tenderTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[TenderCompleted](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModulePOS, EntityType: ledger.EntityTypeTender, EntityID: p.TenderID, BusinessDate: p.BusinessDate}, nil
}

func (tenderTemplate) Draft(evt *Event, _ *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[TenderCompleted](evt)
	if err != nil {
		return nil, err
	}

	lines := []DraftLine{{
		Request: request(evt, mapping.KindPaymentType, p.PaymentKey(), mapping.TargetUndepositedFunds),
		Side:    Debit,
		Amount:  p.GrossCents,
		Memo:    "Tender " + p.TenderID,
	}}

	revenue := newGrouped[deptKey]()
	tax := newGrouped[string]()
	for _, l := range p.Lines {
		revenue.add(keyOf(l.SubDepartmentID, l.DepartmentID), l.NetCents)
		if l.TaxCents > 0 {
			tax.add(l.TaxGroupID, l.TaxCents)
		}
	}
	for _, k := range revenue.order {
		lines = append(lines, DraftLine{
			Request:      request(evt, mapping.KindSubDepartment, k.subDept, mapping.TargetRevenue),
			Side:         Credit,
			Amount:       revenue.totals[k],
			DepartmentID: k.deptPtr(),
			Memo:         "Revenue",
		})
	}
	for _, g := range tax.order {
		lines = append(lines, DraftLine{
			Request: request(evt, mapping.KindTaxGroup, g, mapping.TargetTaxPayable),
			Side:    Credit,
			Amount:  tax.totals[g],
			Memo:    "Sales tax",
		})
	}
	lines = append(lines, DraftLine{
		Request: control(evt, mapping.TargetTipsPayable),
		Side:    Credit,
		Amount:  p.TipCents,
		Memo:    "Tips",
	})

	comps := newGrouped[deptKey]()
	for _, c := range p.Comps {
		comps.add(keyOf(c.SubDepartmentID, c.DepartmentID), c.AmountCents)
	}
	for _, k := range comps.order {
		lines = append(lines,
			DraftLine{
				Request:      request(evt, mapping.KindSubDepartment, k.subDept, mapping.TargetCompExpense),
				Side:         Debit,
				Amount:       comps.totals[k],
				DepartmentID: k.deptPtr(),
				Memo:         "Comp",
			},
			DraftLine{
				Request:      request(evt, mapping.KindSubDepartment, k.subDept, mapping.TargetRevenue),
				Side:         Credit,
				Amount:       comps.totals[k],
				DepartmentID: k.deptPtr(),
				Memo:         "Comp revenue",
			},
		)
	}
	return lines, nil
}

// splitReversal returns the net and tax of a voided or returned line
func splitReversal(l ReversalLine, mode mapping.RoundingMode) (Cents, Cents, error) {
	if l.GrossCents == 0 {
		return l.NetCents, l.TaxCents, nil
	}
	if l.OriginalNetCents+l.OriginalTaxCents == 0 {
		return 0, 0, shared.NewDomainErrorf(shared.CodeValidation,
			"line for %s carries a gross amount without the original net and tax", l.SubDepartmentID)
	}
	parts := SplitProportional(l.GrossCents, []Cents{l.OriginalNetCents, l.OriginalTaxCents}, mode)
	return parts[0], parts[1], nil
}

// reversalDrafts builds the revenue-side debits shared by voids and returns
func reversalDrafts(evt *Event, lines []ReversalLine, revenueTarget mapping.Target, mode mapping.RoundingMode) ([]DraftLine, Cents, error) {
	var out []DraftLine
	var total Cents
	tax := newGrouped[string]()
	for _, l := range lines {
		net, taxAmt, err := splitReversal(l, mode)
		if err != nil {
			return nil, 0, err
		}
		if taxAmt > 0 && l.TaxGroupID == "" {
			return nil, 0, shared.NewDomainErrorf(shared.CodeValidation, "line for %s has tax without a tax group", l.SubDepartmentID)
		}
		out = append(out, DraftLine{
			Request:      request(evt, mapping.KindSubDepartment, l.SubDepartmentID, revenueTarget),
			Side:         Debit,
			Amount:       net,
			DepartmentID: l.DepartmentID,
			Memo:         string(revenueTarget) + " reversal",
		})
		if taxAmt > 0 {
			tax.add(l.TaxGroupID, taxAmt)
		}
		total += net + taxAmt
	}
	for _, g := range tax.order {
		out = append(out, DraftLine{
			Request: request(evt, mapping.KindTaxGroup, g, mapping.TargetTaxPayable),
			Side:    Debit,
			Amount:  tax.totals[g],
			Memo:    "Sales tax reversal",
		})
	}
	return out, total, nil
}

// order.voided.v1: Dr Revenue; Dr Tax Payable; Cr Undeposited Funds.
type voidTemplate struct{}

func (voidTemplate) EventType() string { return EventTypeOrderVoided }
func (voidTemplate) Policy() Policy    { return PolicyBlock }

func (voidTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[OrderVoided](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModulePOSVoid, EntityType: "order_void", EntityID: p.VoidID, BusinessDate: p.BusinessDate}, nil
}

func (voidTemplate) Draft(evt *Event, settings *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[OrderVoided](evt)
	if err != nil {
		return nil, err
	}
	lines, total, err := reversalDrafts(evt, p.Lines, mapping.TargetRevenue, settings.RoundingMode)
	if err != nil {
		return nil, err
	}
	return append(lines, DraftLine{
		Request: request(evt, mapping.KindPaymentType, p.PaymentType, mapping.TargetUndepositedFunds),
		Side:    Credit,
		Amount:  total,
		Memo:    "Void " + p.VoidID,
	}), nil
}

// order.returned.v1: Dr Returns; Dr Tax Payable; Cr Cash On Hand or Undeposited Funds.
// Perpetual COGS restores inventory: Dr Inventory; Cr COGS.
type returnTemplate struct{}

func (returnTemplate) EventType() string { return EventTypeOrderReturned }
func (returnTemplate) Policy() Policy    { return PolicyBlock }

func (returnTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[OrderReturned](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModulePOSReturn, EntityType: "order_return", EntityID: p.ReturnID, BusinessDate: p.BusinessDate}, nil
}

func (returnTemplate) Draft(evt *Event, settings *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[OrderReturned](evt)
	if err != nil {
		return nil, err
	}
	lines, total, err := reversalDrafts(evt, p.Lines, mapping.TargetReturns, settings.RoundingMode)
	if err != nil {
		return nil, err
	}

	refund := DraftLine{Side: Credit, Amount: total, Memo: "Refund " + p.ReturnID}
	if p.RefundMethod == TenderTypeCash {
		refund.Request = request(evt, mapping.KindTenderType, TenderTypeCash, mapping.TargetCashOnHand)
	} else {
		key := p.PaymentType
		if key == "" {
			key = p.RefundMethod
		}
		refund.Request = request(evt, mapping.KindPaymentType, key, mapping.TargetUndepositedFunds)
	}
	lines = append(lines, refund)

	if settings.COGSMode == mapping.COGSModePerpetual {
		for _, l := range p.Lines {
			if l.CostCents == 0 {
				continue
			}
			lines = append(lines,
				DraftLine{
					Request:      request(evt, mapping.KindSubDepartment, l.SubDepartmentID, mapping.TargetInventory),
					Side:         Debit,
					Amount:       l.CostCents,
					DepartmentID: l.DepartmentID,
					Memo:         "Inventory restore",
				},
				DraftLine{
					Request:      request(evt, mapping.KindSubDepartment, l.SubDepartmentID, mapping.TargetCOGS),
					Side:         Credit,
					Amount:       l.CostCents,
					DepartmentID: l.DepartmentID,
					Memo:         "COGS reversal",
				},
			)
		}
	}
	return lines, nil
}

// card.settlement.completed.v1: Dr Bank net; Dr Processing Fee; Dr Chargeback Loss; Cr Undeposited Funds gross.
type settlementTemplate struct{}

func (settlementTemplate) EventType() string { return EventTypeCardSettlementCompleted }
func (settlementTemplate) Policy() Policy    { return PolicyBlock }

func (settlementTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[CardSettlementCompleted](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModuleCardSettlement, EntityType: "card_settlement", EntityID: p.SettlementID, BusinessDate: p.BusinessDate}, nil
}

func (settlementTemplate) Draft(evt *Event, _ *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[CardSettlementCompleted](evt)
	if err != nil {
		return nil, err
	}
	net := p.NetCents
	if net == 0 {
		net = p.GrossCents - p.FeeCents - p.ChargebackCents
	}
	if net < 0 {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "settlement %s deductions exceed gross", p.SettlementID)
	}
	return []DraftLine{
		{Request: request(evt, mapping.KindPaymentType, p.PaymentType, mapping.TargetBank), Side: Debit, Amount: net, Memo: "Settlement deposit"},
		{Request: request(evt, mapping.KindPaymentType, p.PaymentType, mapping.TargetProcessingFee), Side: Debit, Amount: p.FeeCents, Memo: "Processing fees"},
		{Request: request(evt, mapping.KindPaymentType, p.PaymentType, mapping.TargetChargebackLoss), Side: Debit, Amount: p.ChargebackCents, Memo: "Chargebacks"},
		{Request: request(evt, mapping.KindPaymentType, p.PaymentType, mapping.TargetUndepositedFunds), Side: Credit, Amount: p.GrossCents, Memo: "Settlement " + p.SettlementID},
	}, nil
}

// tip.payout.created.v1: Dr Tips Payable; Cr Cash On Hand or Payroll Clearing.
type tipPayoutTemplate struct{}

func (tipPayoutTemplate) EventType() string { return EventTypeTipPayoutCreated }
func (tipPayoutTemplate) Policy() Policy    { return PolicyBlock }

func (tipPayoutTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[TipPayoutCreated](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModuleTipPayout, EntityType: "tip_payout", EntityID: p.PayoutID, BusinessDate: p.BusinessDate}, nil
}

func (tipPayoutTemplate) Draft(evt *Event, _ *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[TipPayoutCreated](evt)
	if err != nil {
		return nil, err
	}
	var credit mapping.ResolveRequest
	switch p.Method {
	case TipPayoutCash:
		credit = request(evt, mapping.KindTenderType, TenderTypeCash, mapping.TargetCashOnHand)
	case TipPayoutPayroll:
		credit = control(evt, mapping.TargetPayrollClearing)
	default:
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "unknown tip payout method %q", p.Method)
	}
	return []DraftLine{
		{Request: control(evt, mapping.TargetTipsPayable), Side: Debit, Amount: p.AmountCents, Memo: "Tip payout " + p.PayoutID},
		{Request: credit, Side: Credit, Amount: p.AmountCents, Memo: "Tip payout " + p.Method},
	}, nil
}

// inventory.periodic_cogs.v1: Dr COGS; Cr Inventory per sub-department. Periodic mode only.
type periodicCOGSTemplate struct{}

func (periodicCOGSTemplate) EventType() string { return EventTypePeriodicCOGS }
func (periodicCOGSTemplate) Policy() Policy    { return PolicyBlock }

func (periodicCOGSTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[PeriodicCOGS](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModuleInventoryCOGS, EntityType: "cogs_calculation", EntityID: p.CalculationID, BusinessDate: p.BusinessDate}, nil
}

func (periodicCOGSTemplate) Draft(evt *Event, settings *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[PeriodicCOGS](evt)
	if err != nil {
		return nil, err
	}
	if settings.COGSMode != mapping.COGSModePeriodic {
		return nil, nil
	}
	cogs := newGrouped[deptKey]()
	for _, l := range p.Lines {
		cogs.add(keyOf(l.SubDepartmentID, l.DepartmentID), l.AmountCents)
	}
	var lines []DraftLine
	for _, k := range cogs.order {
		lines = append(lines,
			DraftLine{Request: request(evt, mapping.KindSubDepartment, k.subDept, mapping.TargetCOGS), Side: Debit, Amount: cogs.totals[k], DepartmentID: k.deptPtr(), Memo: "Periodic COGS"},
			DraftLine{Request: request(evt, mapping.KindSubDepartment, k.subDept, mapping.TargetInventory), Side: Credit, Amount: cogs.totals[k], DepartmentID: k.deptPtr(), Memo: "Periodic COGS"},
		)
	}
	return lines, nil
}

// deposit.slip.created.v1: Dr Bank per tender type; Cr Cash On Hand / Checks Receivable.
// An over/short at or above tolerance posts to Cash Over/Short; below it the
// clearing credit follows the deposited amount and no line is written.
type depositTemplate struct{}

func (depositTemplate) EventType() string { return EventTypeDepositSlipCreated }
func (depositTemplate) Policy() Policy    { return PolicyBlock }

func (depositTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[DepositSlipCreated](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModuleDepositSlip, EntityType: "deposit_slip", EntityID: p.DepositSlipID, BusinessDate: p.BusinessDate}, nil
}

func clearingTarget(tenderType string) mapping.Target {
	switch tenderType {
	case TenderTypeCash:
		return mapping.TargetCashOnHand
	case TenderTypeCheck:
		return mapping.TargetChecksReceivable
	default:
		return mapping.TargetUndepositedFunds
	}
}

func (depositTemplate) Draft(evt *Event, settings *mapping.AccountingSettings) ([]DraftLine, error) {
	p, err := payloadAs[DepositSlipCreated](evt)
	if err != nil {
		return nil, err
	}
	tolerance := Cents(settings.ToleranceCents())

	lines := make([]DraftLine, 0, len(p.Lines)*2)
	var overShort Cents
	byType := append([]DepositLine(nil), p.Lines...)
	sort.SliceStable(byType, func(i, j int) bool { return byType[i].TenderType < byType[j].TenderType })
	for _, l := range byType {
		diff := l.DepositedCents - l.ExpectedCents
		clearing := l.ExpectedCents
		if diff.Abs() < tolerance {
			clearing = l.DepositedCents
		} else {
			overShort += diff
		}
		lines = append(lines,
			DraftLine{Request: request(evt, mapping.KindTenderType, l.TenderType, mapping.TargetBank), Side: Debit, Amount: l.DepositedCents, Memo: "Deposit " + l.TenderType},
			DraftLine{Request: request(evt, mapping.KindTenderType, l.TenderType, clearingTarget(l.TenderType)), Side: Credit, Amount: clearing, Memo: "Deposit " + l.TenderType},
		)
	}
	switch {
	case overShort > 0:
		lines = append(lines, DraftLine{Request: control(evt, mapping.TargetCashOverShort), Side: Credit, Amount: overShort, Memo: "Deposit over"})
	case overShort < 0:
		lines = append(lines, DraftLine{Request: control(evt, mapping.TargetCashOverShort), Side: Debit, Amount: -overShort, Memo: "Deposit short"})
	}
	return lines, nil
}

// customer.stored_value.redeemed.v1 never reaches the GL
type storedValueTemplate struct{}

func (storedValueTemplate) EventType() string { return EventTypeStoredValueRedeemed }
func (storedValueTemplate) Policy() Policy    { return PolicySkipGL }

func (storedValueTemplate) Source(evt *Event) (Source, error) {
	p, err := payloadAs[StoredValueRedeemed](evt)
	if err != nil {
		return Source{}, err
	}
	return Source{Module: ModuleStoredValue, EntityType: "stored_value_redemption", EntityID: p.RedemptionID, BusinessDate: p.BusinessDate}, nil
}

func (storedValueTemplate) Draft(*Event, *mapping.AccountingSettings) ([]DraftLine, error) {
	return nil, nil
}

// RemapReference returns the source reference of the nth corrected posting of an entity
func RemapReference(entityID string, n int64) string {
	return fmt.Sprintf("%s:remap:%d", entityID, n)
}
