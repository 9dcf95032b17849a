package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRemapMaxBatch is the largest number of documents one remap call accepts
const DefaultRemapMaxBatch = 100

// RemapRequest asks to re-post source documents against the current
// mappings. TenderIDs is shorthand for POS tender documents; Documents names
// any other document, such as an unmapped card settlement.
type RemapRequest struct {
	TenantID  uuid.UUID            `json:"tenantId" validate:"required"`
	TenderIDs []string             `json:"tenderIds" validate:"omitempty,unique,dive,required"`
	Documents []ledger.DocumentRef `json:"documents" validate:"omitempty,dive"`
	Reason    string               `json:"reason" validate:"required"`
	Actor     string               `json:"actor"`
}

// Targets returns every document the request names, tenders first
func (r *RemapRequest) Targets() []ledger.DocumentRef {
	refs := make([]ledger.DocumentRef, 0, len(r.TenderIDs)+len(r.Documents))
	for _, id := range r.TenderIDs {
		refs = append(refs, ledger.TenderRef(id))
	}
	return append(refs, r.Documents...)
}

// RemapPreview shows what executing a remap would do to one document
type RemapPreview struct {
	Document           ledger.DocumentRef    `json:"document"`
	TenderID           string                `json:"tenderId,omitempty"`
	DocumentStatus     ledger.DocumentStatus `json:"documentStatus"`
	OriginalEntryID    *uuid.UUID            `json:"originalEntryId,omitempty"`
	OriginalLines      []ledger.LineInput    `json:"originalLines"`
	ProjectedLines     []ledger.LineInput    `json:"projectedLines"`
	HasChanges         bool                  `json:"hasChanges"`
	IsNewPosting       bool                  `json:"isNewPosting"`
	UnresolvedMappings []mapping.EntityRef   `json:"unresolvedMappings"`
}

// RemapItemStatus is the result of one tender in a remap batch
type RemapItemStatus string

const (
	RemapItemPosted    RemapItemStatus = "posted"
	RemapItemReposted  RemapItemStatus = "reposted"
	RemapItemUnchanged RemapItemStatus = "unchanged"
	RemapItemFailed    RemapItemStatus = "failed"
)

// RemapItemResult is the outcome of one document
type RemapItemResult struct {
	Document           ledger.DocumentRef  `json:"document"`
	TenderID           string              `json:"tenderId,omitempty"`
	Status             RemapItemStatus     `json:"status"`
	VoidedEntryID      *uuid.UUID          `json:"voidedEntryId,omitempty"`
	NewEntryID         *uuid.UUID          `json:"newEntryId,omitempty"`
	JournalNumber      int64               `json:"journalNumber,omitempty"`
	UnresolvedMappings []mapping.EntityRef `json:"unresolvedMappings,omitempty"`
	Error              *shared.DomainError `json:"error,omitempty"`
}

// Succeeded reports whether the item completed
func (r RemapItemResult) Succeeded() bool {
	return r.Status != RemapItemFailed
}

// RemapSummary counts the items of a batch
type RemapSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// RemapResult is the outcome of a remap batch
type RemapResult struct {
	Results []RemapItemResult `json:"results"`
	Summary RemapSummary      `json:"summary"`
}

// Err returns REMAP_BATCH_PARTIAL_FAILURE when any item failed
func (r *RemapResult) Err() error {
	if r.Summary.Failed == 0 {
		return nil
	}
	return shared.NewDomainErrorf(shared.CodeRemapBatchPartialFailure,
		"%d of %d documents failed to remap", r.Summary.Failed, r.Summary.Total)
}

// RemapService corrects source documents that were unmapped, held for
// review or posted against mappings that have since changed. Posted history
// is never edited: a changed document gets a void and a corrected entry.
type RemapService struct {
	composer    *posting.Composer
	resolver    *mapping.Resolver
	coordinator ledger.TransactionCoordinator
	store       *JournalStore
	queries     ledger.QueryRepository
	validate    *validator.Validate
	maxBatch    int
	metrics     *telemetry.LedgerMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// RemapServiceOption configures a RemapService
type RemapServiceOption func(*RemapService)

// WithRemapMaxBatch sets the largest accepted batch
func WithRemapMaxBatch(n int) RemapServiceOption {
	return func(s *RemapService) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

// WithRemapMetrics sets the ledger metrics
func WithRemapMetrics(m *telemetry.LedgerMetrics) RemapServiceOption {
	return func(s *RemapService) {
		s.metrics = m
	}
}

// NewRemapService creates a new RemapService
func NewRemapService(
	composer *posting.Composer,
	resolver *mapping.Resolver,
	coordinator ledger.TransactionCoordinator,
	store *JournalStore,
	queries ledger.QueryRepository,
	logger *zap.Logger,
	opts ...RemapServiceOption,
) *RemapService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	s := &RemapService{
		composer:    composer,
		resolver:    resolver,
		coordinator: coordinator,
		store:       store,
		queries:     queries,
		validate:    v,
		maxBatch:    DefaultRemapMaxBatch,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// projection is a document re-composed against the current mappings
type projection struct {
	doc       *ledger.SourceDocument
	settings  *mapping.AccountingSettings
	plan      *posting.Plan
	lines     []ledger.LineInput
	missing   []mapping.EntityRef
	dependsOn []mapping.EntityRef
}

// PreviewRemap re-composes tenders and any other named documents without
// writing anything
func (s *RemapService) PreviewRemap(ctx context.Context, tenantID uuid.UUID, tenderIDs []string, documents ...ledger.DocumentRef) ([]RemapPreview, error) {
	req := &RemapRequest{TenantID: tenantID, TenderIDs: tenderIDs, Documents: documents, Reason: "preview"}
	targets := req.Targets()
	ctx, span := telemetry.StartServiceSpan(ctx, "remap", "preview")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrBatchSize, len(targets),
	)

	if err := s.validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	previews := make([]RemapPreview, 0, len(targets))
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationRemapPreview, ""), func(c context.Context) {
		for _, ref := range targets {
			var preview *RemapPreview
			preview, err = s.previewOne(c, tenantID, ref)
			if err != nil {
				return
			}
			previews = append(previews, *preview)
		}
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return previews, nil
}

func (s *RemapService) previewOne(ctx context.Context, tenantID uuid.UUID, ref ledger.DocumentRef) (*RemapPreview, error) {
	proj, err := s.project(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}

	preview := &RemapPreview{
		Document:           ref,
		TenderID:           tenderIDOf(ref),
		DocumentStatus:     proj.doc.Status,
		OriginalLines:      []ledger.LineInput{},
		ProjectedLines:     []ledger.LineInput{},
		UnresolvedMappings: []mapping.EntityRef{},
	}
	if len(proj.missing) > 0 {
		preview.UnresolvedMappings = proj.missing
	}
	if proj.lines != nil {
		preview.ProjectedLines = proj.lines
	}

	original, err := s.activeEntry(ctx, tenantID, proj.doc)
	if err != nil {
		return nil, err
	}
	if original != nil {
		preview.OriginalEntryID = &original.ID
		preview.OriginalLines = original.LineInputs()
	}

	postable := len(proj.missing) == 0 && len(proj.lines) > 0
	switch {
	case !postable:
	case original == nil:
		preview.IsNewPosting = true
		preview.HasChanges = true
	default:
		preview.HasChanges = !ledger.LinesEqual(preview.OriginalLines, proj.lines)
	}
	return preview, nil
}

// activeEntry returns the posted entry the document points at, or nil
func (s *RemapService) activeEntry(ctx context.Context, tenantID uuid.UUID, doc *ledger.SourceDocument) (*ledger.JournalEntry, error) {
	if doc.JournalEntryID == nil {
		return nil, nil
	}
	entry, err := s.queries.GetEntry(ctx, tenantID, *doc.JournalEntryID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	if entry.Status != ledger.JournalStatusPosted {
		return nil, nil
	}
	return entry, nil
}

// ExecuteRemap re-posts each document in its own unit of work. A failed
// document does not affect the others; the result lists every item.
func (s *RemapService) ExecuteRemap(ctx context.Context, req RemapRequest) (*RemapResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	targets := req.Targets()
	ctx, span := telemetry.StartServiceSpan(ctx, "remap", "execute")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, req.TenantID.String(),
		telemetry.SpanAttrBatchSize, len(targets),
	)

	if err := s.validateRequest(&req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &RemapResult{Results: make([]RemapItemResult, 0, len(targets))}
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationRemapExecute, ""), func(c context.Context) {
		for _, ref := range targets {
			item := s.executeOne(c, req, ref)
			s.metrics.RecordRemapItem(c, req.TenantID, item.Succeeded())
			result.Results = append(result.Results, item)
		}
	})

	result.Summary.Total = len(result.Results)
	for _, item := range result.Results {
		if item.Succeeded() {
			result.Summary.Success++
		} else {
			result.Summary.Failed++
		}
	}

	s.logger.Info("remap executed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.String("actor", req.Actor),
		zap.Int("total", result.Summary.Total),
		zap.Int("success", result.Summary.Success),
		zap.Int("failed", result.Summary.Failed),
	)
	if result.Summary.Failed > 0 {
		telemetry.SetAttribute(span, "failed", result.Summary.Failed)
	} else {
		telemetry.SetOK(span)
	}
	return result, nil
}

func (s *RemapService) executeOne(ctx context.Context, req RemapRequest, ref ledger.DocumentRef) RemapItemResult {
	item := RemapItemResult{Document: ref, TenderID: tenderIDOf(ref)}
	fail := func(err error) RemapItemResult {
		item.Status = RemapItemFailed
		item.Error = asDomainError(err)
		s.logger.Warn("remap item failed",
			zap.String("tenant_id", req.TenantID.String()),
			zap.String("document", ref.String()),
			zap.Error(err),
		)
		return item
	}

	proj, err := s.project(ctx, req.TenantID, ref)
	if err != nil {
		return fail(err)
	}
	if len(proj.missing) > 0 {
		item.UnresolvedMappings = proj.missing
		return fail(shared.NewDomainErrorf(shared.CodeUnmappedAccount,
			"%s still has %d unmapped account(s)", describe(ref), len(proj.missing)))
	}
	if len(proj.lines) == 0 {
		return fail(shared.NewDomainErrorf(shared.CodeValidation, "%s has no GL effect", describe(ref)))
	}
	module := proj.plan.Source.Module

	err = s.coordinator.Do(ctx, req.TenantID, func(ctx context.Context, uow ledger.UnitOfWork) error {
		journals := uow.Journals()
		active, err := journals.FindActiveBySourceEntity(ctx, module, ref.EntityID)
		if err != nil {
			return fmt.Errorf("failed to load active entry: %w", err)
		}

		var entry *ledger.JournalEntry
		switch {
		case active != nil && ledger.LinesEqual(active.LineInputs(), proj.lines):
			item.Status = RemapItemUnchanged
			entry = active

		default:
			if active != nil {
				voided, _, err := s.store.Void(ctx, uow, active.ID, req.Reason, req.Actor, proj.settings.Tolerance)
				if err != nil {
					return err
				}
				item.VoidedEntryID = &voided.ID
				item.Status = RemapItemReposted
			} else {
				item.Status = RemapItemPosted
			}
			sourceRef, err := s.nextReference(ctx, journals, module, ref.EntityID)
			if err != nil {
				return err
			}
			entry, err = s.store.Post(ctx, uow, ledger.PostingInput{
				SourceModule:      module,
				SourceReferenceID: sourceRef,
				SourceEntityID:    ref.EntityID,
				BusinessDate:      proj.plan.Source.BusinessDate,
				LocationID:        proj.doc.LocationID,
				Memo:              fmt.Sprintf("%s (remap: %s)", proj.plan.Memo, req.Reason),
				PostedBy:          req.Actor,
				Lines:             proj.lines,
			}, proj.settings.Tolerance)
			if err != nil {
				return err
			}
		}

		if _, err := uow.Unmapped().Resolve(ctx, proj.dependsOn, s.now()); err != nil {
			return fmt.Errorf("failed to resolve unmapped rows: %w", err)
		}
		doc, err := uow.SourceDocuments().Find(ctx, ref.SourceModule, ref.EntityType, ref.EntityID)
		if err != nil {
			return fmt.Errorf("failed to reload source document: %w", err)
		}
		if doc == nil {
			doc = proj.doc
		}
		doc.MarkPosted(entry.ID, s.now())
		if err := uow.SourceDocuments().Save(ctx, doc); err != nil {
			return fmt.Errorf("failed to save source document: %w", err)
		}

		item.NewEntryID = &entry.ID
		item.JournalNumber = entry.JournalNumber
		return nil
	})
	if err != nil {
		item.VoidedEntryID = nil
		item.NewEntryID = nil
		item.JournalNumber = 0
		return fail(err)
	}
	return item
}

// nextReference returns the entity id for its first entry and
// <entity>:remap:<n> for every later one.
func (s *RemapService) nextReference(ctx context.Context, journals ledger.JournalRepository, module, entityID string) (string, error) {
	ref := entityID
	for n := int64(1); ; n++ {
		existing, err := journals.FindBySource(ctx, module, ref)
		if err != nil {
			return "", fmt.Errorf("failed to look up journal by source: %w", err)
		}
		if existing == nil {
			return ref, nil
		}
		ref = posting.RemapReference(entityID, n)
	}
}

// project loads the document snapshot and composes it against current mappings
func (s *RemapService) project(ctx context.Context, tenantID uuid.UUID, ref ledger.DocumentRef) (*projection, error) {
	doc, err := s.queries.FindSourceDocument(ctx, tenantID, ref.SourceModule, ref.EntityType, ref.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", describe(ref), err)
	}
	if doc == nil {
		return nil, shared.NewDomainErrorf(shared.CodeNotFound, "%s not found", describe(ref))
	}

	evt, err := eventFromDocument(doc)
	if err != nil {
		return nil, err
	}
	settings, err := s.resolver.Settings(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	plan, err := s.composer.Plan(evt, settings)
	if err != nil {
		return nil, err
	}

	proj := &projection{doc: doc, settings: settings, plan: plan}
	if plan.Skipped {
		return proj, nil
	}
	reqs := plan.Requests()
	proj.dependsOn = mapping.RequestRefs(reqs)

	accounts, misses, err := s.resolver.ResolveAll(ctx, settings, reqs)
	if err != nil {
		return nil, err
	}
	if len(misses) > 0 {
		proj.missing = mapping.MissRefs(misses)
		return proj, nil
	}
	proj.lines, err = s.composer.Build(plan, accounts, evt.LocationID())
	if err != nil {
		return nil, err
	}
	return proj, nil
}

// eventFromDocument rebuilds the inbound event captured in a snapshot
func eventFromDocument(doc *ledger.SourceDocument) (*posting.Event, error) {
	payload := posting.NewPayload(doc.EventType)
	if payload == nil {
		return nil, shared.NewDomainErrorf(shared.CodeValidation, "source document has unsupported event type %s", doc.EventType)
	}
	if err := json.Unmarshal(doc.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", doc.EventType, err)
	}
	return posting.NewEvent(doc.EventID, doc.TenantID, doc.EventType, doc.BusinessDate, doc.LocationID, payload), nil
}

func (s *RemapService) validateRequest(req *RemapRequest) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return shared.NewDomainErrorf(shared.CodeValidation, "invalid remap request: %v", err)
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return shared.NewDomainErrorf(shared.CodeValidation, "invalid remap request: %s", strings.Join(fields, ", "))
	}
	targets := req.Targets()
	if len(targets) == 0 {
		return shared.NewDomainError(shared.CodeValidation, "invalid remap request: name at least one tender or document")
	}
	if len(targets) > s.maxBatch {
		return shared.NewDomainErrorf(shared.CodeValidation, "at most %d documents per remap, got %d", s.maxBatch, len(targets))
	}
	seen := make(map[ledger.DocumentRef]struct{}, len(targets))
	for _, ref := range targets {
		if _, dup := seen[ref]; dup {
			return shared.NewDomainErrorf(shared.CodeValidation, "invalid remap request: %s named twice", describe(ref))
		}
		seen[ref] = struct{}{}
	}
	return nil
}

// describe names a document in messages, e.g. "tender T-1"
func describe(ref ledger.DocumentRef) string {
	return ref.EntityType + " " + ref.EntityID
}

// tenderIDOf returns the tender id of a tender document, else ""
func tenderIDOf(ref ledger.DocumentRef) string {
	if ref.SourceModule == ledger.SourceModulePOS && ref.EntityType == ledger.EntityTypeTender {
		return ref.EntityID
	}
	return ""
}

// asDomainError keeps domain codes and wraps anything else as an internal error
func asDomainError(err error) *shared.DomainError {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return shared.NewDomainError(de.Code, err.Error())
	}
	return shared.NewDomainError("INTERNAL_ERROR", err.Error())
}
