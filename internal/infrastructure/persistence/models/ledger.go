package models

import (
	"encoding/json"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalEntryModel is the persistence model of a journal header
type JournalEntryModel struct {
	BaseModel
	TenantID          uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_gl_journal_number,priority:1;uniqueIndex:idx_gl_journal_source,priority:1;index:idx_gl_journal_entity,priority:1"`
	JournalNumber     int64                `gorm:"not null;uniqueIndex:idx_gl_journal_number,priority:2"`
	Status            ledger.JournalStatus `gorm:"type:varchar(20);not null;index"`
	SourceModule      string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_gl_journal_source,priority:2;index:idx_gl_journal_entity,priority:2"`
	SourceReferenceID string               `gorm:"type:varchar(200);not null;uniqueIndex:idx_gl_journal_source,priority:3"`
	SourceEntityID    string               `gorm:"type:varchar(200);index:idx_gl_journal_entity,priority:3"`
	ReversalOfID      *uuid.UUID           `gorm:"type:uuid;index"`
	BusinessDate      time.Time            `gorm:"type:date;not null"`
	LocationID        *uuid.UUID           `gorm:"type:uuid"`
	Memo              string               `gorm:"type:text"`
	PostedAt          time.Time            `gorm:"not null"`
	PostedBy          string               `gorm:"type:varchar(100)"`
	VoidedAt          *time.Time
	VoidedBy          string             `gorm:"type:varchar(100)"`
	VoidReason        string             `gorm:"type:text"`
	Lines             []JournalLineModel `gorm:"foreignKey:JournalEntryID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "gl_journal_entries"
}

// JournalLineModel is the persistence model of a journal line
type JournalLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	JournalEntryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	LocationID     *uuid.UUID      `gorm:"type:uuid"`
	DepartmentID   *uuid.UUID      `gorm:"type:uuid"`
	Memo           string          `gorm:"type:text"`
	SortOrder      int             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "gl_journal_lines"
}

// ToDomain converts the model and its loaded lines into a journal entry
func (m *JournalEntryModel) ToDomain() *ledger.JournalEntry {
	e := &ledger.JournalEntry{
		JournalNumber:     m.JournalNumber,
		Status:            m.Status,
		SourceModule:      m.SourceModule,
		SourceReferenceID: m.SourceReferenceID,
		SourceEntityID:    m.SourceEntityID,
		ReversalOfID:      m.ReversalOfID,
		BusinessDate:      m.BusinessDate,
		LocationID:        m.LocationID,
		Memo:              m.Memo,
		PostedAt:          m.PostedAt,
		PostedBy:          m.PostedBy,
		VoidedAt:          m.VoidedAt,
		VoidedBy:          m.VoidedBy,
		VoidReason:        m.VoidReason,
	}
	e.BaseEntity = m.BaseModel.ToDomain()
	e.TenantID = m.TenantID
	e.Lines = make([]ledger.JournalLine, len(m.Lines))
	for i, l := range m.Lines {
		e.Lines[i] = ledger.JournalLine{
			ID:             l.ID,
			JournalEntryID: l.JournalEntryID,
			AccountID:      l.AccountID,
			DebitAmount:    l.DebitAmount,
			CreditAmount:   l.CreditAmount,
			LocationID:     l.LocationID,
			DepartmentID:   l.DepartmentID,
			Memo:           l.Memo,
			SortOrder:      l.SortOrder,
		}
	}
	return e
}

// JournalEntryModelFromDomain maps an entry and its lines for insertion
func JournalEntryModelFromDomain(e *ledger.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{
		JournalNumber:     e.JournalNumber,
		Status:            e.Status,
		SourceModule:      e.SourceModule,
		SourceReferenceID: e.SourceReferenceID,
		SourceEntityID:    e.SourceEntityID,
		ReversalOfID:      e.ReversalOfID,
		BusinessDate:      e.BusinessDate,
		LocationID:        e.LocationID,
		Memo:              e.Memo,
		PostedAt:          e.PostedAt,
		PostedBy:          e.PostedBy,
		VoidedAt:          e.VoidedAt,
		VoidedBy:          e.VoidedBy,
		VoidReason:        e.VoidReason,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	m.TenantID = e.TenantID
	m.Lines = make([]JournalLineModel, len(e.Lines))
	for i, l := range e.Lines {
		m.Lines[i] = JournalLineModel{
			ID:             l.ID,
			TenantID:       e.TenantID,
			JournalEntryID: e.ID,
			AccountID:      l.AccountID,
			DebitAmount:    l.DebitAmount,
			CreditAmount:   l.CreditAmount,
			LocationID:     l.LocationID,
			DepartmentID:   l.DepartmentID,
			Memo:           l.Memo,
			SortOrder:      l.SortOrder,
		}
	}
	return m
}

// JournalCounterModel holds the last journal number issued per tenant
type JournalCounterModel struct {
	TenantID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastNumber int64     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JournalCounterModel) TableName() string {
	return "gl_journal_counters"
}

// ProcessedEventModel is the idempotency claim of (event, consumer)
type ProcessedEventModel struct {
	EventID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConsumerName string    `gorm:"type:varchar(100);primaryKey"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProcessedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProcessedEventModel) TableName() string {
	return "gl_processed_events"
}

// UnmappedEventModel is one backlog row per unresolved entity
type UnmappedEventModel struct {
	ID              uuid.UUID              `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_gl_unmapped_entity,priority:1"`
	EntityType      string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_gl_unmapped_entity,priority:2"`
	EntityID        string                 `gorm:"type:varchar(200);not null;uniqueIndex:idx_gl_unmapped_entity,priority:3"`
	EventID         uuid.UUID              `gorm:"type:uuid;not null"`
	Status          mapping.UnmappedStatus `gorm:"type:varchar(20);not null;index"`
	OccurrenceCount int                    `gorm:"not null"`
	FirstSeenAt     time.Time              `gorm:"not null"`
	LastSeenAt      time.Time              `gorm:"not null"`
	ResolvedAt      *time.Time
}

// TableName returns the table name for GORM
func (UnmappedEventModel) TableName() string {
	return "gl_unmapped_events"
}

// ToDomain converts the model to a domain row
func (m *UnmappedEventModel) ToDomain() *mapping.UnmappedEvent {
	return &mapping.UnmappedEvent{
		ID:              m.ID,
		TenantID:        m.TenantID,
		EntityType:      m.EntityType,
		EntityID:        m.EntityID,
		EventID:         m.EventID,
		Status:          m.Status,
		OccurrenceCount: m.OccurrenceCount,
		FirstSeenAt:     m.FirstSeenAt,
		LastSeenAt:      m.LastSeenAt,
		ResolvedAt:      m.ResolvedAt,
	}
}

// UnmappedEventModelFromDomain maps a domain row
func UnmappedEventModelFromDomain(u *mapping.UnmappedEvent) *UnmappedEventModel {
	return &UnmappedEventModel{
		ID:              u.ID,
		TenantID:        u.TenantID,
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

// SourceDocumentModel is the snapshot a remap re-composes from
type SourceDocumentModel struct {
	ID              uuid.UUID             `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_gl_source_document,priority:1"`
	SourceModule    string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_gl_source_document,priority:2"`
	EntityType      string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_gl_source_document,priority:3;index:idx_gl_source_status,priority:1"`
	EntityID        string                `gorm:"type:varchar(200);not null;uniqueIndex:idx_gl_source_document,priority:4"`
	EventID         uuid.UUID             `gorm:"type:uuid;not null"`
	EventType       string                `gorm:"type:varchar(100);not null"`
	LocationID      *uuid.UUID            `gorm:"type:uuid"`
	BusinessDate    time.Time             `gorm:"type:date;not null"`
	Payload         []byte                `gorm:"type:jsonb;not null"`
	Status          ledger.DocumentStatus `gorm:"type:varchar(20);not null;index:idx_gl_source_status,priority:2"`
	MissingMappings string                `gorm:"type:text"`
	JournalEntryID  *uuid.UUID            `gorm:"type:uuid"`
	CreatedAt       time.Time             `gorm:"not null"`
	UpdatedAt       time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SourceDocumentModel) TableName() string {
	return "gl_source_documents"
}

// ToDomain converts the model to a source document
func (m *SourceDocumentModel) ToDomain() (*ledger.SourceDocument, error) {
	doc := &ledger.SourceDocument{
		ID:             m.ID,
		TenantID:       m.TenantID,
		SourceModule:   m.SourceModule,
		EntityType:     m.EntityType,
		EntityID:       m.EntityID,
		EventID:        m.EventID,
		EventType:      m.EventType,
		LocationID:     m.LocationID,
		BusinessDate:   m.BusinessDate,
		Payload:        m.Payload,
		Status:         m.Status,
		JournalEntryID: m.JournalEntryID,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.MissingMappings != "" {
		if err := json.Unmarshal([]byte(m.MissingMappings), &doc.MissingMappings); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// SourceDocumentModelFromDomain maps a source document
func SourceDocumentModelFromDomain(d *ledger.SourceDocument) (*SourceDocumentModel, error) {
	m := &SourceDocumentModel{
		ID:             d.ID,
		TenantID:       d.TenantID,
		SourceModule:   d.SourceModule,
		EntityType:     d.EntityType,
		EntityID:       d.EntityID,
		EventID:        d.EventID,
		EventType:      d.EventType,
		LocationID:     d.LocationID,
		BusinessDate:   d.BusinessDate,
		Payload:        d.Payload,
		Status:         d.Status,
		JournalEntryID: d.JournalEntryID,
		CreatedAt:      d.UpdatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if len(d.MissingMappings) > 0 {
		b, err := json.Marshal(d.MissingMappings)
		if err != nil {
			return nil, err
		}
		m.MissingMappings = string(b)
	}
	return m, nil
}

// RevenueActivityModel is an observational revenue movement
type RevenueActivityModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	EventID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	ActivityType string          `gorm:"type:varchar(50);not null"`
	ReferenceID  string          `gorm:"type:varchar(200);not null"`
	LocationID   *uuid.UUID      `gorm:"type:uuid"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BusinessDate time.Time       `gorm:"type:date;not null"`
	RecordedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RevenueActivityModel) TableName() string {
	return "gl_revenue_activity"
}

// RevenueActivityModelFromDomain maps a revenue activity
func RevenueActivityModelFromDomain(a *ledger.RevenueActivity) *RevenueActivityModel {
	return &RevenueActivityModel{
		ID:           a.ID,
		TenantID:     a.TenantID,
		EventID:      a.EventID,
		ActivityType: a.ActivityType,
		ReferenceID:  a.ReferenceID,
		LocationID:   a.LocationID,
		Amount:       a.Amount,
		BusinessDate: a.BusinessDate,
		RecordedAt:   a.RecordedAt,
	}
}

// AccountMappingModel is one (key, target) row of a mapping table. The four
// mapping tables share this shape and are selected with Table().
type AccountMappingModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID      `gorm:"type:uuid;not null"`
	MappingKey string         `gorm:"type:varchar(200);not null"`
	LocationID *uuid.UUID     `gorm:"type:uuid"`
	Target     mapping.Target `gorm:"type:varchar(50);not null"`
	AccountID  uuid.UUID      `gorm:"type:uuid;not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

// MappingTables maps each kind to its table
var MappingTables = map[mapping.MappingKind]string{
	mapping.KindSubDepartment: "gl_sub_department_mappings",
	mapping.KindPaymentType:   "gl_payment_type_mappings",
	mapping.KindTaxGroup:      "gl_tax_group_mappings",
	mapping.KindTenderType:    "gl_tender_type_mappings",
}

// AccountingSettingsModel is the per-tenant settings row
type AccountingSettingsModel struct {
	TenantID     uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Tolerance    decimal.Decimal      `gorm:"type:decimal(18,2);not null"`
	COGSMode     mapping.COGSMode     `gorm:"column:cogs_mode;type:varchar(20);not null"`
	PostingMode  mapping.PostingMode  `gorm:"type:varchar(20);not null"`
	RoundingMode mapping.RoundingMode `gorm:"type:varchar(20);not null"`
	UpdatedAt    time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AccountingSettingsModel) TableName() string {
	return "gl_accounting_settings"
}

// ControlAccountModel is the tenant default account of one target
type ControlAccountModel struct {
	TenantID  uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Target    mapping.Target `gorm:"type:varchar(50);primaryKey"`
	AccountID uuid.UUID      `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (ControlAccountModel) TableName() string {
	return "gl_control_accounts"
}

// ToDomain assembles settings from the row and its control accounts
func (m *AccountingSettingsModel) ToDomain(controls []ControlAccountModel) *mapping.AccountingSettings {
	s := mapping.DefaultSettings(m.TenantID)
	if m.Tolerance.IsPositive() {
		s.Tolerance = m.Tolerance
	}
	if m.COGSMode != "" {
		s.COGSMode = m.COGSMode
	}
	if m.PostingMode != "" {
		s.PostingMode = m.PostingMode
	}
	if m.RoundingMode != "" {
		s.RoundingMode = m.RoundingMode
	}
	for _, c := range controls {
		s.ControlAccounts[c.Target] = c.AccountID
	}
	return s
}

// LedgerModels lists every model of the ledger schema. Tests auto-migrate it;
// production uses the SQL migrations.
func LedgerModels() []any {
	return []any{
		&JournalEntryModel{},
		&JournalLineModel{},
		&JournalCounterModel{},
		&ProcessedEventModel{},
		&UnmappedEventModel{},
		&SourceDocumentModel{},
		&RevenueActivityModel{},
		&AccountingSettingsModel{},
		&ControlAccountModel{},
		&OutboxEntryModel{},
	}
}
