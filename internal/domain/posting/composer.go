package posting

import (
	"fmt"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
)

// Policy says what happens to an event's GL side effect
type Policy string

const (
	// PolicyBlock posts the entry, or records misses and surfaces UNMAPPED_ACCOUNT
	PolicyBlock Policy = "block"
	// PolicySkipGL never touches the GL
	PolicySkipGL Policy = "skip_gl"
)

// Side is the debit or credit side of a draft line
type Side int

const (
	Debit Side = iota
	Credit
)

// DraftLine is a journal line whose account is still a resolve request
type DraftLine struct {
	Request      mapping.ResolveRequest
	Side         Side
	Amount       Cents
	DepartmentID *uuid.UUID
	Memo         string
}

// Source identifies the business document behind an entry
type Source struct {
	Module       string
	EntityType   string
	EntityID     string
	BusinessDate time.Time
}

// Plan is the account-free shape of an entry. It is computed from the payload
// alone, so resolution can run before any transaction opens.
type Plan struct {
	EventType string
	Source    Source
	Memo      string
	Lines     []DraftLine
	// Skipped is set when the template produces no GL effect for this tenant
	Skipped bool
}

// Requests returns the distinct resolve requests of the plan in line order
func (p *Plan) Requests() []mapping.ResolveRequest {
	seen := make(map[mapping.RequestKey]bool, len(p.Lines))
	out := make([]mapping.ResolveRequest, 0, len(p.Lines))
	for _, l := range p.Lines {
		if !seen[l.Request.LookupKey()] {
			seen[l.Request.LookupKey()] = true
			out = append(out, l.Request)
		}
	}
	return out
}

// Residual returns Σdebit − Σcredit in cents
func (p *Plan) Residual() Cents {
	var r Cents
	for _, l := range p.Lines {
		if l.Side == Debit {
			r += l.Amount
		} else {
			r -= l.Amount
		}
	}
	return r
}

// Template builds the plan of one event type
type Template interface {
	EventType() string
	Policy() Policy
	Source(evt *Event) (Source, error)
	Draft(evt *Event, settings *mapping.AccountingSettings) ([]DraftLine, error)
}

// Composer holds the per event-type templates
type Composer struct {
	templates map[string]Template
}

// NewComposer creates a composer with the standard templates
func NewComposer() *Composer {
	c := &Composer{templates: make(map[string]Template)}
	for _, t := range []Template{
		tenderTemplate{},
		voidTemplate{},
		returnTemplate{},
		settlementTemplate{},
		tipPayoutTemplate{},
		periodicCOGSTemplate{},
		depositTemplate{},
		storedValueTemplate{},
	} {
		c.Register(t)
	}
	return c
}

// Register adds or replaces a template
func (c *Composer) Register(t Template) {
	c.templates[t.EventType()] = t
}

// Template returns the template of eventType
func (c *Composer) Template(eventType string) (Template, error) {
	t, ok := c.templates[eventType]
	if !ok {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "no posting template for event type %s", eventType)
	}
	return t, nil
}

// Plan drafts the lines of evt, drops zero lines and settles the residual.
// A residual below tolerance is absorbed; one at or above it posts to Cash
// Over/Short.
func (c *Composer) Plan(evt *Event, settings *mapping.AccountingSettings) (*Plan, error) {
	t, err := c.Template(evt.EventType())
	if err != nil {
		return nil, err
	}
	src, err := t.Source(evt)
	if err != nil {
		return nil, err
	}
	plan := &Plan{EventType: evt.EventType(), Source: src, Memo: memoFor(evt.EventType(), src)}
	if t.Policy() == PolicySkipGL {
		plan.Skipped = true
		return plan, nil
	}

	drafts, err := t.Draft(evt, settings)
	if err != nil {
		return nil, err
	}
	for _, d := range drafts {
		if d.Amount < 0 {
			return nil, shared.NewDomainErrorf(shared.CodeValidation, "negative %s amount", d.Request.Target)
		}
		if d.Amount > 0 {
			plan.Lines = append(plan.Lines, d)
		}
	}
	if len(plan.Lines) == 0 {
		plan.Skipped = true
		return plan, nil
	}
	if err := settleResidual(evt, plan, Cents(settings.ToleranceCents())); err != nil {
		return nil, err
	}
	return plan, nil
}

// Build converts a plan into journal lines using resolved accounts
func (c *Composer) Build(plan *Plan, accounts mapping.Accounts, locationID *uuid.UUID) ([]ledger.LineInput, error) {
	lines := make([]ledger.LineInput, 0, len(plan.Lines))
	for _, d := range plan.Lines {
		acct, ok := accounts[d.Request.LookupKey()]
		if !ok {
			return nil, shared.NewDomainErrorf(shared.CodeUnmappedAccount,
				"no account for %s %s (%s)", d.Request.Kind, d.Request.Key, d.Request.Target)
		}
		line := ledger.LineInput{
			AccountID:    acct,
			LocationID:   locationID,
			DepartmentID: d.DepartmentID,
			Memo:         d.Memo,
		}
		if d.Side == Debit {
			line.Debit = d.Amount.Decimal()
		} else {
			line.Credit = d.Amount.Decimal()
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Compose plans and builds in one step
func (c *Composer) Compose(evt *Event, settings *mapping.AccountingSettings, accounts mapping.Accounts) ([]ledger.LineInput, error) {
	plan, err := c.Plan(evt, settings)
	if err != nil {
		return nil, err
	}
	if plan.Skipped {
		return nil, nil
	}
	return c.Build(plan, accounts, evt.LocationID())
}

// settleResidual absorbs |residual| < tolerance into the largest line of the
// short side so no rounding line is produced. Anything larger is booked to
// the Cash Over/Short control account on the short side.
func settleResidual(evt *Event, plan *Plan, tolerance Cents) error {
	r := plan.Residual()
	if r == 0 {
		return nil
	}
	short := Credit
	if r < 0 {
		short = Debit
	}
	if r.Abs() >= tolerance {
		memo := "Cash over"
		if short == Debit {
			memo = "Cash short"
		}
		plan.Lines = append(plan.Lines, DraftLine{
			Request: control(evt, mapping.TargetCashOverShort),
			Side:    short,
			Amount:  r.Abs(),
			Memo:    memo,
		})
		return nil
	}
	idx := -1
	for i, l := range plan.Lines {
		if l.Side == short && (idx < 0 || l.Amount > plan.Lines[idx].Amount) {
			idx = i
		}
	}
	if idx < 0 {
		return shared.NewDomainErrorf(shared.CodeUnbalancedEntry, "%s has no line to absorb residual", plan.EventType)
	}
	plan.Lines[idx].Amount += r.Abs()
	return nil
}

func memoFor(eventType string, src Source) string {
	return fmt.Sprintf("%s %s", eventType, src.EntityID)
}
