package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KindCoverage compares the mapped keys of one kind with its open backlog
type KindCoverage struct {
	Kind       mapping.MappingKind `json:"kind"`
	Mapped     int64               `json:"mapped"`
	Unresolved int64               `json:"unresolved"`
}

// MappingCoverage summarises how complete a tenant's mappings are
type MappingCoverage struct {
	Kinds []KindCoverage `json:"kinds"`
	// UnresolvedControlAccounts counts control-account targets without a default
	UnresolvedControlAccounts int64 `json:"unresolvedControlAccounts"`
	TotalUnresolved           int64 `json:"totalUnresolved"`
}

// QueryService serves the read accessors
type QueryService struct {
	queries  ledger.QueryRepository
	mappings mapping.MappingRepository
	logger   *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(queries ledger.QueryRepository, mappings mapping.MappingRepository, logger *zap.Logger) *QueryService {
	return &QueryService{queries: queries, mappings: mappings, logger: logger}
}

// GetJournalEntry returns the entry with its lines
func (s *QueryService) GetJournalEntry(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	entry, err := s.queries.GetEntry(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainErrorf(shared.CodeNotFound, "journal entry %s not found", id)
		}
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	return entry, nil
}

// ListRemappableTenders pages tenders that are unmapped or held for review
func (s *QueryService) ListRemappableTenders(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[ledger.SourceDocument], error) {
	return s.ListRemappableDocuments(ctx, tenantID, ledger.EntityTypeTender, filter)
}

// ListRemappableDocuments pages source documents of any type that are
// unmapped or held for review. An empty entityType lists every type.
func (s *QueryService) ListRemappableDocuments(ctx context.Context, tenantID uuid.UUID, entityType string, filter shared.Filter) (shared.Paginated[ledger.SourceDocument], error) {
	docs, total, err := s.queries.ListRemappableDocuments(ctx, tenantID, entityType, filter)
	if err != nil {
		return shared.Paginated[ledger.SourceDocument]{}, fmt.Errorf("failed to list remappable documents: %w", err)
	}
	if docs == nil {
		docs = []ledger.SourceDocument{}
	}
	return shared.NewPaginated(docs, total, pageOf(filter), filter.Limit()), nil
}

// ListUnmappedEvents pages the unmapped backlog. An empty status lists every row.
func (s *QueryService) ListUnmappedEvents(ctx context.Context, tenantID uuid.UUID, status mapping.UnmappedStatus, filter shared.Filter) (shared.Paginated[mapping.UnmappedEvent], error) {
	switch status {
	case "", mapping.UnmappedStatusUnresolved, mapping.UnmappedStatusResolved:
	default:
		return shared.Paginated[mapping.UnmappedEvent]{}, shared.NewDomainErrorf(shared.CodeValidation, "unknown unmapped status %q", status)
	}

	rows, total, err := s.queries.ListUnmapped(ctx, tenantID, status, filter)
	if err != nil {
		return shared.Paginated[mapping.UnmappedEvent]{}, fmt.Errorf("failed to list unmapped events: %w", err)
	}
	if rows == nil {
		rows = []mapping.UnmappedEvent{}
	}
	return shared.NewPaginated(rows, total, pageOf(filter), filter.Limit()), nil
}

// MappingCoverage returns mapped key counts next to open backlog counts
func (s *QueryService) MappingCoverage(ctx context.Context, tenantID uuid.UUID) (*MappingCoverage, error) {
	mapped, err := s.mappings.CountByKind(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count mappings: %w", err)
	}
	unresolved, err := s.queries.CountUnresolvedByEntityType(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unmapped events: %w", err)
	}

	coverage := &MappingCoverage{Kinds: make([]KindCoverage, 0, len(mapping.MappedKinds))}
	for _, kind := range mapping.MappedKinds {
		kc := KindCoverage{
			Kind:       kind,
			Mapped:     mapped[kind],
			Unresolved: unresolved[string(kind)],
		}
		coverage.Kinds = append(coverage.Kinds, kc)
		coverage.TotalUnresolved += kc.Unresolved
	}
	coverage.UnresolvedControlAccounts = unresolved[string(mapping.KindControlAccount)]
	coverage.TotalUnresolved += coverage.UnresolvedControlAccounts
	return coverage, nil
}

func pageOf(f shared.Filter) int {
	if f.Page < 1 {
		return 1
	}
	return f.Page
}
