// Package ledger holds the journal entry aggregate and the unit-of-work
// contracts the posting engine writes through.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus is the lifecycle state of a journal entry
type JournalStatus string

const (
	JournalStatusPosted JournalStatus = "posted"
	JournalStatusVoided JournalStatus = "voided"
)

// VoidReferencePrefix prefixes the source reference of a reversing entry
const VoidReferencePrefix = "void:"

// LineInput is a journal line before it is attached to an entry
type LineInput struct {
	AccountID    uuid.UUID       `json:"accountId"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	LocationID   *uuid.UUID      `json:"locationId,omitempty"`
	DepartmentID *uuid.UUID      `json:"departmentId,omitempty"`
	Memo         string          `json:"memo,omitempty"`
}

// Amount returns the non-zero side of the line
func (l LineInput) Amount() decimal.Decimal {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

// IsDebit reports whether the line debits its account
func (l LineInput) IsDebit() bool {
	return l.Debit.IsPositive()
}

// Equal compares account, sides and dimensions
func (l LineInput) Equal(o LineInput) bool {
	return l.AccountID == o.AccountID &&
		l.Debit.Equal(o.Debit) &&
		l.Credit.Equal(o.Credit) &&
		uuidPtrEqual(l.LocationID, o.LocationID) &&
		uuidPtrEqual(l.DepartmentID, o.DepartmentID) &&
		l.Memo == o.Memo
}

// LinesEqual compares two line sets in order
func LinesEqual(a, b []LineInput) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// JournalLine is a persisted line of a journal entry
type JournalLine struct {
	ID             uuid.UUID
	JournalEntryID uuid.UUID
	AccountID      uuid.UUID
	DebitAmount    decimal.Decimal
	CreditAmount   decimal.Decimal
	LocationID     *uuid.UUID
	DepartmentID   *uuid.UUID
	Memo           string
	SortOrder      int
}

// Input converts the line back into its input form
func (l JournalLine) Input() LineInput {
	return LineInput{
		AccountID:    l.AccountID,
		Debit:        l.DebitAmount,
		Credit:       l.CreditAmount,
		LocationID:   l.LocationID,
		DepartmentID: l.DepartmentID,
		Memo:         l.Memo,
	}
}

// PostingInput describes an entry to be posted
type PostingInput struct {
	SourceModule      string
	SourceReferenceID string
	SourceEntityID    string
	BusinessDate      time.Time
	LocationID        *uuid.UUID
	Memo              string
	PostedBy          string
	ReversalOfID      *uuid.UUID
	Lines             []LineInput
}

// Validate checks the header fields of the input
func (in PostingInput) Validate() error {
	if strings.TrimSpace(in.SourceModule) == "" {
		return shared.NewDomainError(shared.CodeValidation, "source module is required")
	}
	if strings.TrimSpace(in.SourceReferenceID) == "" {
		return shared.NewDomainError(shared.CodeValidation, "source reference id is required")
	}
	if in.BusinessDate.IsZero() {
		return shared.NewDomainError(shared.CodeValidation, "business date is required")
	}
	if len(in.Lines) == 0 {
		return shared.NewDomainError(shared.CodeUnbalancedEntry, "journal entry has no lines")
	}
	return nil
}

// ValidateLines enforces the line invariants: one non-negative non-zero side
// per line, positive total activity, and |Σdebit − Σcredit| ≤ tolerance.
func ValidateLines(lines []LineInput, tolerance decimal.Decimal) error {
	debit, credit := decimal.Zero, decimal.Zero
	for i, l := range lines {
		if l.AccountID == uuid.Nil {
			return shared.NewDomainErrorf(shared.CodeValidation, "line %d has no account", i+1)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return shared.NewDomainErrorf(shared.CodeValidation, "line %d has a negative amount", i+1)
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return shared.NewDomainErrorf(shared.CodeValidation, "line %d must carry exactly one of debit or credit", i+1)
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if debit.Add(credit).IsZero() {
		return shared.NewDomainError(shared.CodeUnbalancedEntry, "journal entry has no activity")
	}
	if debit.Sub(credit).Abs().GreaterThan(tolerance) {
		return shared.NewDomainErrorf(shared.CodeUnbalancedEntry,
			"debits %s and credits %s differ by more than %s", debit.StringFixed(2), credit.StringFixed(2), tolerance.StringFixed(2))
	}
	return nil
}

// ReverseLines swaps debit and credit on every line, keeping magnitudes and dimensions
func ReverseLines(lines []LineInput) []LineInput {
	out := make([]LineInput, len(lines))
	for i, l := range lines {
		out[i] = l
		out[i].Debit, out[i].Credit = l.Credit, l.Debit
	}
	return out
}

// JournalEntry is an append-only posted journal. The only permitted change
// after posting is the status transition to voided.
type JournalEntry struct {
	shared.TenantAggregateRoot
	JournalNumber     int64
	Status            JournalStatus
	SourceModule      string
	SourceReferenceID string
	SourceEntityID    string
	ReversalOfID      *uuid.UUID
	BusinessDate      time.Time
	LocationID        *uuid.UUID
	Memo              string
	PostedAt          time.Time
	PostedBy          string
	VoidedAt          *time.Time
	VoidedBy          string
	VoidReason        string
	Lines             []JournalLine
}

// NewJournalEntry validates in and builds a posted entry with the allocated number
func NewJournalEntry(tenantID uuid.UUID, number int64, in PostingInput, tolerance decimal.Decimal, postedAt time.Time) (*JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateLines(in.Lines, tolerance); err != nil {
		return nil, err
	}
	if number < 1 {
		return nil, fmt.Errorf("invalid journal number %d", number)
	}

	e := &JournalEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		JournalNumber:       number,
		Status:              JournalStatusPosted,
		SourceModule:        in.SourceModule,
		SourceReferenceID:   in.SourceReferenceID,
		SourceEntityID:      in.SourceEntityID,
		ReversalOfID:        in.ReversalOfID,
		BusinessDate:        in.BusinessDate,
		LocationID:          in.LocationID,
		Memo:                in.Memo,
		PostedAt:            postedAt,
		PostedBy:            in.PostedBy,
	}
	e.Lines = make([]JournalLine, len(in.Lines))
	for i, l := range in.Lines {
		e.Lines[i] = JournalLine{
			ID:             uuid.New(),
			JournalEntryID: e.ID,
			AccountID:      l.AccountID,
			DebitAmount:    l.Debit,
			CreditAmount:   l.Credit,
			LocationID:     l.LocationID,
			DepartmentID:   l.DepartmentID,
			Memo:           l.Memo,
			SortOrder:      i + 1,
		}
	}
	e.AddDomainEvent(NewJournalEntryPostedEvent(e))
	return e, nil
}

// LineInputs returns the entry lines in sort order as inputs
func (e *JournalEntry) LineInputs() []LineInput {
	out := make([]LineInput, len(e.Lines))
	for i, l := range e.Lines {
		out[i] = l.Input()
	}
	return out
}

// Totals returns Σdebit and Σcredit
func (e *JournalEntry) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.DebitAmount)
		credit = credit.Add(l.CreditAmount)
	}
	return debit, credit
}

// ReversalInput builds the posting input of the entry that cancels e
func (e *JournalEntry) ReversalInput(actor, reason string, businessDate time.Time) PostingInput {
	id := e.ID
	return PostingInput{
		SourceModule:      e.SourceModule,
		SourceReferenceID: VoidReferencePrefix + e.ID.String(),
		SourceEntityID:    e.SourceEntityID,
		BusinessDate:      businessDate,
		LocationID:        e.LocationID,
		Memo:              fmt.Sprintf("Void of journal #%d: %s", e.JournalNumber, reason),
		PostedBy:          actor,
		ReversalOfID:      &id,
		Lines:             ReverseLines(e.LineInputs()),
	}
}

// Void transitions a posted entry to voided
func (e *JournalEntry) Void(actor, reason string, reversalID uuid.UUID, at time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError(shared.CodeValidation, "void reason is required")
	}
	if e.Status != JournalStatusPosted {
		return shared.NewDomainErrorf(shared.CodeValidation, "journal #%d is already %s", e.JournalNumber, e.Status)
	}
	e.Status = JournalStatusVoided
	e.VoidedAt = &at
	e.VoidedBy = actor
	e.VoidReason = reason
	e.UpdatedAt = at
	e.AddDomainEvent(NewJournalEntryVoidedEvent(e, reversalID))
	return nil
}
