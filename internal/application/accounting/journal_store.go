// Package accounting holds the posting engine application services: the
// journal store, the inbound event pipeline, remap and the read accessors.
package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// JournalStore posts and voids journal entries. Post and Void run inside a
// caller-owned unit of work; PostEntry and VoidEntry open their own.
type JournalStore struct {
	coordinator ledger.TransactionCoordinator
	settings    mapping.SettingsRepository
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// JournalStoreOption configures a JournalStore
type JournalStoreOption func(*JournalStore)

// WithJournalMetrics sets the ledger metrics
func WithJournalMetrics(m *telemetry.LedgerMetrics) JournalStoreOption {
	return func(s *JournalStore) {
		s.metrics = m
	}
}

// WithJournalClock replaces the clock, for tests
func WithJournalClock(now func() time.Time) JournalStoreOption {
	return func(s *JournalStore) {
		s.now = now
	}
}

// NewJournalStore creates a new JournalStore
func NewJournalStore(
	coordinator ledger.TransactionCoordinator,
	settings mapping.SettingsRepository,
	logger *zap.Logger,
	opts ...JournalStoreOption,
) *JournalStore {
	s := &JournalStore{
		coordinator: coordinator,
		settings:    settings,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post writes in as a new entry of the unit-of-work tenant. An entry that
// already exists for the same source reference is returned unchanged. The
// journal number is allocated only after every check passed, so a rejected
// entry never consumes one.
func (s *JournalStore) Post(ctx context.Context, uow ledger.UnitOfWork, in ledger.PostingInput, tolerance decimal.Decimal) (*ledger.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := ledger.ValidateLines(in.Lines, tolerance); err != nil {
		return nil, err
	}

	journals := uow.Journals()
	existing, err := journals.FindBySource(ctx, in.SourceModule, in.SourceReferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up journal by source: %w", err)
	}
	if existing != nil {
		s.logger.Debug("journal already posted for source",
			zap.String("tenant_id", uow.TenantID().String()),
			zap.String("source_module", in.SourceModule),
			zap.String("source_reference_id", in.SourceReferenceID),
			zap.Int64("journal_number", existing.JournalNumber),
		)
		return existing, nil
	}

	number, err := uow.JournalNumbers().Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate journal number: %w", err)
	}
	entry, err := ledger.NewJournalEntry(uow.TenantID(), number, in, tolerance, s.now())
	if err != nil {
		return nil, err
	}
	if err := journals.Insert(ctx, entry); err != nil {
		return nil, err
	}
	uow.Collect(entry.GetDomainEvents()...)
	entry.ClearDomainEvents()

	s.metrics.RecordPosted(ctx, entry.TenantID, entry.SourceModule)
	s.logger.Info("journal entry posted",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("journal_entry_id", entry.ID.String()),
		zap.Int64("journal_number", entry.JournalNumber),
		zap.String("source_module", entry.SourceModule),
		zap.String("source_reference_id", entry.SourceReferenceID),
	)
	return entry, nil
}

// Void reverses the entry and marks it voided. It returns the voided original
// and the reversing entry. The reversal carries the original business date so
// the period it hit nets to zero.
func (s *JournalStore) Void(ctx context.Context, uow ledger.UnitOfWork, journalID uuid.UUID, reason, actor string, tolerance decimal.Decimal) (*ledger.JournalEntry, *ledger.JournalEntry, error) {
	if reason == "" {
		return nil, nil, shared.NewDomainError(shared.CodeValidation, "void reason is required")
	}

	entry, err := uow.Journals().FindByID(ctx, journalID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	if entry == nil {
		return nil, nil, shared.NewDomainErrorf(shared.CodeNotFound, "journal entry %s not found", journalID)
	}
	if entry.Status != ledger.JournalStatusPosted {
		return nil, nil, shared.NewDomainErrorf(shared.CodeValidation, "journal #%d is already %s", entry.JournalNumber, entry.Status)
	}
	if entry.ReversalOfID != nil {
		return nil, nil, shared.NewDomainErrorf(shared.CodeValidation, "journal #%d is a reversal and cannot be voided", entry.JournalNumber)
	}

	reversal, err := s.Post(ctx, uow, entry.ReversalInput(actor, reason, entry.BusinessDate), tolerance)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to post reversal of journal #%d: %w", entry.JournalNumber, err)
	}
	if err := entry.Void(actor, reason, reversal.ID, s.now()); err != nil {
		return nil, nil, err
	}
	if err := uow.Journals().MarkVoided(ctx, entry); err != nil {
		return nil, nil, err
	}
	uow.Collect(entry.GetDomainEvents()...)
	entry.ClearDomainEvents()

	s.metrics.RecordVoided(ctx, entry.TenantID, entry.SourceModule)
	s.logger.Info("journal entry voided",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("journal_entry_id", entry.ID.String()),
		zap.Int64("journal_number", entry.JournalNumber),
		zap.Int64("reversal_number", reversal.JournalNumber),
		zap.String("voided_by", actor),
	)
	return entry, reversal, nil
}

// PostEntry posts in for tenantID in its own unit of work
func (s *JournalStore) PostEntry(ctx context.Context, tenantID uuid.UUID, in ledger.PostingInput) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "post")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrSourceModule, in.SourceModule,
		telemetry.SpanAttrSourceRef, in.SourceReferenceID,
		telemetry.SpanAttrLineCount, len(in.Lines),
	)

	tolerance, err := s.tolerance(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var entry *ledger.JournalEntry
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationPostEntry, in.SourceModule), func(c context.Context) {
		err = s.coordinator.Do(c, tenantID, func(c context.Context, uow ledger.UnitOfWork) error {
			var postErr error
			entry, postErr = s.Post(c, uow, in, tolerance)
			return postErr
		})
	})
	if err != nil {
		s.logPostingError(tenantID, in.SourceReferenceID, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrJournalNumber, entry.JournalNumber)
	telemetry.SetOK(span)
	return entry, nil
}

// VoidEntry voids journalID in its own unit of work and returns the voided original
func (s *JournalStore) VoidEntry(ctx context.Context, tenantID, journalID uuid.UUID, reason, actor string) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "void")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrJournalID, journalID.String(),
	)

	tolerance, err := s.tolerance(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var voided *ledger.JournalEntry
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationVoidEntry, ""), func(c context.Context) {
		err = s.coordinator.Do(c, tenantID, func(c context.Context, uow ledger.UnitOfWork) error {
			var voidErr error
			voided, _, voidErr = s.Void(c, uow, journalID, reason, actor, tolerance)
			return voidErr
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return voided, nil
}

func (s *JournalStore) tolerance(ctx context.Context, tenantID uuid.UUID) (decimal.Decimal, error) {
	settings, err := s.settings.Get(ctx, tenantID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load accounting settings: %w", err)
	}
	return settings.Tolerance, nil
}

// logPostingError logs composer defects at error level; other failures are
// left to the caller.
func (s *JournalStore) logPostingError(tenantID uuid.UUID, reference string, err error) {
	if shared.ErrorCode(err) != shared.CodeUnbalancedEntry {
		return
	}
	s.logger.Error("unbalanced journal entry rejected",
		zap.String("tenant_id", tenantID.String()),
		zap.String("source_reference_id", reference),
		zap.Error(err),
	)
}
