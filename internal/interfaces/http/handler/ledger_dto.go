package handler

import (
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalLineResponse is one line of a journal entry
type JournalLineResponse struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"accountId"`
	DebitAmount  decimal.Decimal `json:"debitAmount"`
	CreditAmount decimal.Decimal `json:"creditAmount"`
	LocationID   *uuid.UUID      `json:"locationId,omitempty"`
	DepartmentID *uuid.UUID      `json:"departmentId,omitempty"`
	Memo         string          `json:"memo,omitempty"`
	SortOrder    int             `json:"sortOrder"`
}

// JournalEntryResponse is a journal entry with its lines
type JournalEntryResponse struct {
	ID                uuid.UUID             `json:"id"`
	TenantID          uuid.UUID             `json:"tenantId"`
	JournalNumber     int64                 `json:"journalNumber"`
	Status            ledger.JournalStatus  `json:"status"`
	SourceModule      string                `json:"sourceModule"`
	SourceReferenceID string                `json:"sourceReferenceId"`
	SourceEntityID    string                `json:"sourceEntityId,omitempty"`
	ReversalOfID      *uuid.UUID            `json:"reversalOfId,omitempty"`
	BusinessDate      string                `json:"businessDate"`
	LocationID        *uuid.UUID            `json:"locationId,omitempty"`
	Memo              string                `json:"memo,omitempty"`
	PostedAt          time.Time             `json:"postedAt"`
	PostedBy          string                `json:"postedBy"`
	VoidedAt          *time.Time            `json:"voidedAt,omitempty"`
	VoidedBy          string                `json:"voidedBy,omitempty"`
	VoidReason        string                `json:"voidReason,omitempty"`
	TotalDebits       decimal.Decimal       `json:"totalDebits"`
	TotalCredits      decimal.Decimal       `json:"totalCredits"`
	Lines             []JournalLineResponse `json:"lines"`
}

// RemappableTenderResponse is a tender waiting for an operator
type RemappableTenderResponse struct {
	TenderID        string                `json:"tenderId"`
	EventID         uuid.UUID             `json:"eventId"`
	EventType       string                `json:"eventType"`
	Status          ledger.DocumentStatus `json:"status"`
	BusinessDate    string                `json:"businessDate"`
	LocationID      *uuid.UUID            `json:"locationId,omitempty"`
	MissingMappings []mapping.EntityRef   `json:"missingMappings"`
	JournalEntryID  *uuid.UUID            `json:"journalEntryId,omitempty"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// RemappableDocumentResponse is a source document waiting for an operator
type RemappableDocumentResponse struct {
	Document        ledger.DocumentRef    `json:"document"`
	EventID         uuid.UUID             `json:"eventId"`
	EventType       string                `json:"eventType"`
	Status          ledger.DocumentStatus `json:"status"`
	BusinessDate    string                `json:"businessDate"`
	LocationID      *uuid.UUID            `json:"locationId,omitempty"`
	MissingMappings []mapping.EntityRef   `json:"missingMappings"`
	JournalEntryID  *uuid.UUID            `json:"journalEntryId,omitempty"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// UnmappedEventResponse is one row of the unmapped backlog
type UnmappedEventResponse struct {
	ID              uuid.UUID              `json:"id"`
	EntityType      string                 `json:"entityType"`
	EntityID        string                 `json:"entityId"`
	EventID         uuid.UUID              `json:"eventId"`
	Status          mapping.UnmappedStatus `json:"status"`
	OccurrenceCount int                    `json:"occurrenceCount"`
	FirstSeenAt     time.Time              `json:"firstSeenAt"`
	LastSeenAt      time.Time              `json:"lastSeenAt"`
	ResolvedAt      *time.Time             `json:"resolvedAt,omitempty"`
}

const businessDateLayout = "2006-01-02"

func toJournalEntryResponse(e *ledger.JournalEntry) JournalEntryResponse {
	resp := JournalEntryResponse{
		ID:                e.ID,
		TenantID:          e.TenantID,
		JournalNumber:     e.JournalNumber,
		Status:            e.Status,
		SourceModule:      e.SourceModule,
		SourceReferenceID: e.SourceReferenceID,
		SourceEntityID:    e.SourceEntityID,
		ReversalOfID:      e.ReversalOfID,
		BusinessDate:      e.BusinessDate.Format(businessDateLayout),
		LocationID:        e.LocationID,
		Memo:              e.Memo,
		PostedAt:          e.PostedAt,
		PostedBy:          e.PostedBy,
		VoidedAt:          e.VoidedAt,
		VoidedBy:          e.VoidedBy,
		VoidReason:        e.VoidReason,
		TotalDebits:       decimal.Zero,
		TotalCredits:      decimal.Zero,
		Lines:             make([]JournalLineResponse, len(e.Lines)),
	}
	for i, l := range e.Lines {
		resp.Lines[i] = JournalLineResponse{
			ID:           l.ID,
			AccountID:    l.AccountID,
			DebitAmount:  l.DebitAmount,
			CreditAmount: l.CreditAmount,
			LocationID:   l.LocationID,
			DepartmentID: l.DepartmentID,
			Memo:         l.Memo,
			SortOrder:    l.SortOrder,
		}
		resp.TotalDebits = resp.TotalDebits.Add(l.DebitAmount)
		resp.TotalCredits = resp.TotalCredits.Add(l.CreditAmount)
	}
	return resp
}

func toRemappableTenderResponse(d ledger.SourceDocument) RemappableTenderResponse {
	missing := d.MissingMappings
	if missing == nil {
		missing = []mapping.EntityRef{}
	}
	return RemappableTenderResponse{
		TenderID:        d.EntityID,
		EventID:         d.EventID,
		EventType:       d.EventType,
		Status:          d.Status,
		BusinessDate:    d.BusinessDate.Format(businessDateLayout),
		LocationID:      d.LocationID,
		MissingMappings: missing,
		JournalEntryID:  d.JournalEntryID,
		UpdatedAt:       d.UpdatedAt,
	}
}

func toUnmappedEventResponse(u mapping.UnmappedEvent) UnmappedEventResponse {
	return UnmappedEventResponse{
		ID:              u.ID,
		EntityType:      u.EntityType,
		EntityID:        u.EntityID,
		EventID:         u.EventID,
		Status:          u.Status,
		OccurrenceCount: u.OccurrenceCount,
		FirstSeenAt:     u.FirstSeenAt,
		LastSeenAt:      u.LastSeenAt,
		ResolvedAt:      u.ResolvedAt,
	}
}

// mapPage converts the items of a page and keeps its counts
func mapPage[T, R any](page shared.Paginated[T], fn func(T) R) shared.Paginated[R] {
	items := make([]R, len(page.Items))
	for i, item := range page.Items {
		items[i] = fn(item)
	}
	return shared.Paginated[R]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

func toRemappableDocumentResponse(d ledger.SourceDocument) RemappableDocumentResponse {
	missing := d.MissingMappings
	if missing == nil {
		missing = []mapping.EntityRef{}
	}
	return RemappableDocumentResponse{
		Document:        d.Ref(),
		EventID:         d.EventID,
		EventType:       d.EventType,
		Status:          d.Status,
		BusinessDate:    d.BusinessDate.Format(businessDateLayout),
		LocationID:      d.LocationID,
		MissingMappings: missing,
		JournalEntryID:  d.JournalEntryID,
		UpdatedAt:       d.UpdatedAt,
	}
}
