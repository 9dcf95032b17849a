package ledger

import (
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outbound event types
const (
	EventTypeJournalEntryPosted = "gl_journal_entry.posted.v1"
	EventTypeJournalEntryVoided = "gl_journal_entry.voided.v1"
	AggregateTypeJournalEntry   = "JournalEntry"
)

// PostedLine is the line shape carried on the posted event
type PostedLine struct {
	AccountID    uuid.UUID       `json:"accountId"`
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
	LocationID   *uuid.UUID      `json:"locationId,omitempty"`
	DepartmentID *uuid.UUID      `json:"departmentId,omitempty"`
}

// JournalEntryPostedEvent is published after an entry commits
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	JournalNumber     int64           `json:"journalNumber"`
	SourceModule      string          `json:"sourceModule"`
	SourceReferenceID string          `json:"sourceReferenceId"`
	ReversalOfID      *uuid.UUID      `json:"reversalOfId,omitempty"`
	BusinessDate      time.Time       `json:"businessDate"`
	LocationID        *uuid.UUID      `json:"locationId,omitempty"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Lines             []PostedLine    `json:"lines"`
}

// NewJournalEntryPostedEvent builds the posted event for e
func NewJournalEntryPostedEvent(e *JournalEntry) *JournalEntryPostedEvent {
	debit, _ := e.Totals()
	lines := make([]PostedLine, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = PostedLine{
			AccountID:    l.AccountID,
			DebitAmount:  l.DebitAmount,
			CreditAmount: l.CreditAmount,
			LocationID:   l.LocationID,
			DepartmentID: l.DepartmentID,
		}
	}
	return &JournalEntryPostedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, AggregateTypeJournalEntry, e.ID, e.TenantID),
		JournalNumber:     e.JournalNumber,
		SourceModule:      e.SourceModule,
		SourceReferenceID: e.SourceReferenceID,
		ReversalOfID:      e.ReversalOfID,
		BusinessDate:      e.BusinessDate,
		LocationID:        e.LocationID,
		TotalAmount:       debit,
		Lines:             lines,
	}
}

// JournalEntryVoidedEvent is published after a void commits
type JournalEntryVoidedEvent struct {
	shared.BaseDomainEvent
	JournalNumber   int64     `json:"journalNumber"`
	ReversalEntryID uuid.UUID `json:"reversalEntryId"`
	Reason          string    `json:"reason"`
	VoidedBy        string    `json:"voidedBy"`
}

// NewJournalEntryVoidedEvent builds the voided event for e
func NewJournalEntryVoidedEvent(e *JournalEntry, reversalID uuid.UUID) *JournalEntryVoidedEvent {
	return &JournalEntryVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryVoided, AggregateTypeJournalEntry, e.ID, e.TenantID),
		JournalNumber:   e.JournalNumber,
		ReversalEntryID: reversalID,
		Reason:          e.VoidReason,
		VoidedBy:        e.VoidedBy,
	}
}
