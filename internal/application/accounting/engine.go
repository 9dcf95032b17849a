package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SystemActor is recorded as PostedBy on entries created from inbound events
const SystemActor = "system"

// OutcomeStatus is what processing an inbound event did
type OutcomeStatus string

const (
	OutcomePosted        OutcomeStatus = "posted"
	OutcomeDuplicate     OutcomeStatus = "duplicate"
	OutcomeUnmapped      OutcomeStatus = "unmapped"
	OutcomeSkipped       OutcomeStatus = "skipped"
	OutcomePendingReview OutcomeStatus = "pending_review"
)

// Outcome describes the result of one inbound event
type Outcome struct {
	EventID         uuid.UUID           `json:"eventId"`
	EventType       string              `json:"eventType"`
	Status          OutcomeStatus       `json:"status"`
	JournalEntryID  *uuid.UUID          `json:"journalEntryId,omitempty"`
	JournalNumber   int64               `json:"journalNumber,omitempty"`
	MissingMappings []mapping.EntityRef `json:"missingMappings,omitempty"`
}

// PostingEngine turns inbound business events into journal entries. Accounts
// are resolved and lines composed before the unit of work opens; the unit of
// work then claims the event, writes the entry or the unmapped backlog, and
// snapshots the source document.
type PostingEngine struct {
	composer    *posting.Composer
	resolver    *mapping.Resolver
	coordinator ledger.TransactionCoordinator
	store       *JournalStore
	consumer    string
	seen        SeenCache
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// SeenCache answers redeliveries before the unit of work opens. It is never
// authoritative; the claim inside the unit of work is.
type SeenCache interface {
	Seen(ctx context.Context, eventID uuid.UUID) bool
	Remember(ctx context.Context, eventID uuid.UUID)
}

// PostingEngineOption configures a PostingEngine
type PostingEngineOption func(*PostingEngine)

// WithEngineMetrics sets the ledger metrics
func WithEngineMetrics(m *telemetry.LedgerMetrics) PostingEngineOption {
	return func(e *PostingEngine) {
		e.metrics = m
	}
}

// WithSeenCache puts a seen-cache in front of the claim
func WithSeenCache(c SeenCache) PostingEngineOption {
	return func(e *PostingEngine) {
		e.seen = c
	}
}

// WithEngineClock replaces the clock, for tests
func WithEngineClock(now func() time.Time) PostingEngineOption {
	return func(e *PostingEngine) {
		e.now = now
	}
}

// NewPostingEngine creates a new PostingEngine. consumer is the name the
// idempotency claim is recorded under.
func NewPostingEngine(
	composer *posting.Composer,
	resolver *mapping.Resolver,
	coordinator ledger.TransactionCoordinator,
	store *JournalStore,
	consumer string,
	logger *zap.Logger,
	opts ...PostingEngineOption,
) *PostingEngine {
	e := &PostingEngine{
		composer:    composer,
		resolver:    resolver,
		coordinator: coordinator,
		store:       store,
		consumer:    consumer,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// prepared is everything computed before the unit of work opens
type prepared struct {
	evt      *posting.Event
	settings *mapping.AccountingSettings
	plan     *posting.Plan
	policy   posting.Policy
	accounts mapping.Accounts
	misses   []mapping.Miss
	lines    []ledger.LineInput
	payload  []byte
}

// Process handles one inbound event. Redelivered events return the duplicate
// outcome with a DUPLICATE_EVENT error; events with unresolvable accounts
// commit their backlog rows and return UNMAPPED_ACCOUNT. Both are non-fatal.
func (e *PostingEngine) Process(ctx context.Context, evt *posting.Event) (*Outcome, error) {
	start := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "process")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, evt.TenantID().String(),
		telemetry.SpanAttrEventID, evt.EventID().String(),
		telemetry.SpanAttrEventType, evt.EventType(),
	)

	var (
		outcome *Outcome
		err     error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationProcessEvent, ""), func(c context.Context) {
		outcome, err = e.process(c, evt)
	})

	metricOutcome := telemetry.OutcomeFailed
	if outcome != nil {
		metricOutcome = string(outcome.Status)
		telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, metricOutcome)
	} else if shared.ErrorCode(err) == shared.CodeUnbalancedEntry {
		metricOutcome = telemetry.OutcomeUnbalanced
	}
	e.metrics.RecordEvent(ctx, evt.EventType(), metricOutcome, time.Since(start))

	if err != nil && !shared.IsNonFatal(err) {
		telemetry.RecordError(span, err)
		e.logFailure(evt, err)
	} else {
		telemetry.SetOK(span)
	}
	return outcome, err
}

func (e *PostingEngine) process(ctx context.Context, evt *posting.Event) (*Outcome, error) {
	outcome := &Outcome{EventID: evt.EventID(), EventType: evt.EventType()}
	if e.seen != nil && e.seen.Seen(ctx, evt.EventID()) {
		outcome.Status = OutcomeDuplicate
		return outcome, shared.NewDomainErrorf(shared.CodeDuplicateEvent, "event %s already processed by %s", evt.EventID(), e.consumer)
	}

	p, err := e.prepare(ctx, evt)
	if err != nil {
		return nil, err
	}

	err = e.coordinator.Do(ctx, evt.TenantID(), func(ctx context.Context, uow ledger.UnitOfWork) error {
		claimed, err := uow.ProcessedEvents().TryClaim(ctx, evt.EventID(), e.consumer)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if !claimed {
			return errAlreadyClaimed
		}
		return e.apply(ctx, uow, p, outcome)
	})
	if errors.Is(err, errAlreadyClaimed) {
		e.logger.Info("event already processed",
			zap.String("tenant_id", evt.TenantID().String()),
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
			zap.String("consumer", e.consumer),
		)
		e.remember(ctx, evt)
		outcome.Status = OutcomeDuplicate
		return outcome, shared.NewDomainErrorf(shared.CodeDuplicateEvent, "event %s already processed by %s", evt.EventID(), e.consumer)
	}
	if err != nil {
		return nil, err
	}
	e.remember(ctx, evt)

	if outcome.Status == OutcomeUnmapped {
		return outcome, shared.NewDomainErrorf(shared.CodeUnmappedAccount,
			"%s %s has %d unmapped account(s)", evt.EventType(), p.plan.Source.EntityID, len(outcome.MissingMappings))
	}
	return outcome, nil
}

var errAlreadyClaimed = errors.New("event already claimed")

func (e *PostingEngine) remember(ctx context.Context, evt *posting.Event) {
	if e.seen != nil {
		e.seen.Remember(ctx, evt.EventID())
	}
}

// prepare loads settings, plans the entry and resolves its accounts. No
// transaction is open while this runs.
func (e *PostingEngine) prepare(ctx context.Context, evt *posting.Event) (*prepared, error) {
	tmpl, err := e.composer.Template(evt.EventType())
	if err != nil {
		return nil, err
	}
	settings, err := e.resolver.Settings(ctx, evt.TenantID())
	if err != nil {
		return nil, err
	}
	plan, err := e.composer.Plan(evt, settings)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot %s payload: %w", evt.EventType(), err)
	}

	p := &prepared{
		evt:      evt,
		settings: settings,
		plan:     plan,
		policy:   tmpl.Policy(),
		payload:  payload,
	}
	if plan.Skipped || e.holdForReview(p) {
		return p, nil
	}

	p.accounts, p.misses, err = e.resolver.ResolveAll(ctx, settings, plan.Requests())
	if err != nil {
		return nil, err
	}
	if len(p.misses) > 0 {
		return p, nil
	}
	p.lines, err = e.composer.Build(plan, p.accounts, evt.LocationID())
	if err != nil {
		return nil, err
	}
	return p, nil
}

// holdForReview reports whether a tender waits for an operator under manual posting mode
func (e *PostingEngine) holdForReview(p *prepared) bool {
	return p.settings.PostingMode == mapping.PostingModeManual &&
		p.plan.Source.EntityType == ledger.EntityTypeTender
}

// apply runs inside the unit of work after the claim succeeded
func (e *PostingEngine) apply(ctx context.Context, uow ledger.UnitOfWork, p *prepared, outcome *Outcome) error {
	doc := e.snapshot(uow.TenantID(), p)

	switch {
	case p.plan.Skipped:
		if p.policy == posting.PolicySkipGL {
			if err := e.recordRevenueActivity(ctx, uow, p); err != nil {
				return err
			}
		}
		doc.Status = ledger.DocumentStatusSkipped
		outcome.Status = OutcomeSkipped

	case e.holdForReview(p):
		doc.Status = ledger.DocumentStatusPendingReview
		outcome.Status = OutcomePendingReview

	case len(p.misses) > 0:
		rows, err := e.resolver.RecordMisses(ctx, uow.Unmapped(), uow, uow.TenantID(), p.evt.EventID(), p.misses)
		if err != nil {
			return err
		}
		for _, row := range rows {
			e.metrics.RecordUnmapped(ctx, uow.TenantID(), row.EntityType, 1)
		}
		doc.Status = ledger.DocumentStatusUnmapped
		doc.MissingMappings = mapping.MissRefs(p.misses)
		outcome.Status = OutcomeUnmapped
		outcome.MissingMappings = doc.MissingMappings

	default:
		entry, err := e.store.Post(ctx, uow, ledger.PostingInput{
			SourceModule:      p.plan.Source.Module,
			SourceReferenceID: p.plan.Source.EntityID,
			SourceEntityID:    p.plan.Source.EntityID,
			BusinessDate:      p.plan.Source.BusinessDate,
			LocationID:        p.evt.LocationID(),
			Memo:              p.plan.Memo,
			PostedBy:          SystemActor,
			Lines:             p.lines,
		}, p.settings.Tolerance)
		if err != nil {
			return err
		}
		doc.MarkPosted(entry.ID, e.now())
		outcome.Status = OutcomePosted
		outcome.JournalEntryID = &entry.ID
		outcome.JournalNumber = entry.JournalNumber
	}

	if err := uow.SourceDocuments().Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save source document: %w", err)
	}
	return nil
}

func (e *PostingEngine) snapshot(tenantID uuid.UUID, p *prepared) *ledger.SourceDocument {
	return &ledger.SourceDocument{
		ID:           ledger.SourceDocumentID(tenantID, p.plan.Source.Module, p.plan.Source.EntityType, p.plan.Source.EntityID),
		TenantID:     tenantID,
		SourceModule: p.plan.Source.Module,
		EntityType:   p.plan.Source.EntityType,
		EntityID:     p.plan.Source.EntityID,
		EventID:      p.evt.EventID(),
		EventType:    p.evt.EventType(),
		LocationID:   p.evt.LocationID(),
		BusinessDate: p.plan.Source.BusinessDate,
		Payload:      p.payload,
		UpdatedAt:    e.now(),
	}
}

func (e *PostingEngine) recordRevenueActivity(ctx context.Context, uow ledger.UnitOfWork, p *prepared) error {
	redeemed, ok := p.evt.Data.(*posting.StoredValueRedeemed)
	if !ok {
		return nil
	}
	err := uow.RevenueActivity().Record(ctx, &ledger.RevenueActivity{
		ID:           uuid.New(),
		TenantID:     uow.TenantID(),
		EventID:      p.evt.EventID(),
		ActivityType: p.evt.EventType(),
		ReferenceID:  redeemed.RedemptionID,
		LocationID:   p.evt.LocationID(),
		Amount:       redeemed.AmountCents.Decimal(),
		BusinessDate: redeemed.BusinessDate,
		RecordedAt:   e.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record revenue activity: %w", err)
	}
	return nil
}

func (e *PostingEngine) logFailure(evt *posting.Event, err error) {
	fields := []zap.Field{
		zap.String("tenant_id", evt.TenantID().String()),
		zap.String("event_id", evt.EventID().String()),
		zap.String("event_type", evt.EventType()),
		zap.Error(err),
	}
	switch shared.ErrorCode(err) {
	case shared.CodeUnbalancedEntry:
		e.logger.Error("composer produced an unbalanced entry", fields...)
	case shared.CodeValidation:
		e.logger.Warn("inbound event rejected", fields...)
	default:
		e.logger.Error("failed to process inbound event", fields...)
	}
}
