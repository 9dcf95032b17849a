package mapping

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResolveRequest asks for the account backing one posting target
type ResolveRequest struct {
	TenantID   uuid.UUID
	LocationID *uuid.UUID
	Kind       MappingKind
	Key        string
	Target     Target
}

// RequestKey identifies a request within one event
type RequestKey struct {
	Kind   MappingKind
	Key    string
	Target Target
}

// LookupKey returns the lookup key of the request
func (r ResolveRequest) LookupKey() RequestKey {
	return RequestKey{Kind: r.Kind, Key: r.Key, Target: r.Target}
}

// EntityRef returns the backlog entity a miss on this request is recorded against
func (r ResolveRequest) EntityRef() EntityRef {
	if r.Kind == KindControlAccount || r.Key == "" {
		return EntityRef{EntityType: string(KindControlAccount), EntityID: string(r.Target)}
	}
	return EntityRef{EntityType: string(r.Kind), EntityID: r.Key}
}

// Resolution is the outcome of a single lookup
type Resolution struct {
	AccountID uuid.UUID
	Strategy  string
	Unmapped  bool
}

// Accounts maps resolved requests to account IDs
type Accounts map[RequestKey]uuid.UUID

// Get returns the account for (kind, key, target)
func (a Accounts) Get(kind MappingKind, key string, target Target) (uuid.UUID, bool) {
	id, ok := a[RequestKey{Kind: kind, Key: key, Target: target}]
	return id, ok
}

// Miss is a request no strategy could answer
type Miss struct {
	Request ResolveRequest
}

// Strategy is one step of the fallback chain. ok=false passes the request on.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, req ResolveRequest, settings *AccountingSettings) (accountID uuid.UUID, ok bool, err error)
}

// LocationOverrideStrategy answers from a mapping row pinned to the request location
type LocationOverrideStrategy struct {
	mappings MappingRepository
}

// NewLocationOverrideStrategy creates the per-location override step
func NewLocationOverrideStrategy(mappings MappingRepository) *LocationOverrideStrategy {
	return &LocationOverrideStrategy{mappings: mappings}
}

// Name returns the strategy name
func (s *LocationOverrideStrategy) Name() string { return "location_override" }

// Resolve looks up the location-pinned row
func (s *LocationOverrideStrategy) Resolve(ctx context.Context, req ResolveRequest, _ *AccountingSettings) (uuid.UUID, bool, error) {
	if req.LocationID == nil || req.Kind == KindControlAccount || req.Key == "" {
		return uuid.Nil, false, nil
	}
	m, err := s.mappings.FindMapping(ctx, req.TenantID, req.Kind, req.Key, req.LocationID)
	if err != nil {
		return uuid.Nil, false, err
	}
	id, ok := m.AccountFor(req.Target)
	return id, ok, nil
}

// KindMappingStrategy answers from the tenant-wide row of the listed kinds
type KindMappingStrategy struct {
	name     string
	kinds    map[MappingKind]bool
	mappings MappingRepository
}

// NewSubDepartmentStrategy creates the category / sub-department step
func NewSubDepartmentStrategy(mappings MappingRepository) *KindMappingStrategy {
	return &KindMappingStrategy{
		name:     "sub_department",
		kinds:    map[MappingKind]bool{KindSubDepartment: true},
		mappings: mappings,
	}
}

// NewTypeMappingStrategy creates the payment-type / tax-group / tender-type step
func NewTypeMappingStrategy(mappings MappingRepository) *KindMappingStrategy {
	return &KindMappingStrategy{
		name:     "type_mapping",
		kinds:    map[MappingKind]bool{KindPaymentType: true, KindTaxGroup: true, KindTenderType: true},
		mappings: mappings,
	}
}

// Name returns the strategy name
func (s *KindMappingStrategy) Name() string { return s.name }

// Resolve looks up the tenant-wide row
func (s *KindMappingStrategy) Resolve(ctx context.Context, req ResolveRequest, _ *AccountingSettings) (uuid.UUID, bool, error) {
	if !s.kinds[req.Kind] || req.Key == "" {
		return uuid.Nil, false, nil
	}
	m, err := s.mappings.FindMapping(ctx, req.TenantID, req.Kind, req.Key, nil)
	if err != nil {
		return uuid.Nil, false, err
	}
	id, ok := m.AccountFor(req.Target)
	return id, ok, nil
}

// ControlAccountStrategy answers from the tenant default control accounts
type ControlAccountStrategy struct{}

// Name returns the strategy name
func (ControlAccountStrategy) Name() string { return "control_account" }

// Resolve reads settings.ControlAccounts
func (ControlAccountStrategy) Resolve(_ context.Context, req ResolveRequest, settings *AccountingSettings) (uuid.UUID, bool, error) {
	if settings == nil {
		return uuid.Nil, false, nil
	}
	id, ok := settings.ControlAccount(req.Target)
	return id, ok, nil
}

// Resolver walks an ordered list of strategies; the first hit wins.
type Resolver struct {
	strategies []Strategy
	settings   SettingsRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewResolver creates a resolver with the standard chain:
// location override, sub-department, type mapping, control account.
func NewResolver(mappings MappingRepository, settings SettingsRepository, logger *zap.Logger) *Resolver {
	return NewResolverWithStrategies(settings, logger,
		NewLocationOverrideStrategy(mappings),
		NewSubDepartmentStrategy(mappings),
		NewTypeMappingStrategy(mappings),
		ControlAccountStrategy{},
	)
}

// NewResolverWithStrategies creates a resolver with a custom chain
func NewResolverWithStrategies(settings SettingsRepository, logger *zap.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		settings:   settings,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Settings loads the tenant settings used by the control account step
func (r *Resolver) Settings(ctx context.Context, tenantID uuid.UUID) (*AccountingSettings, error) {
	settings, err := r.settings.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounting settings: %w", err)
	}
	return settings, nil
}

// Resolve resolves a single request
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	settings, err := r.Settings(ctx, req.TenantID)
	if err != nil {
		return Resolution{}, err
	}
	return r.resolveWith(ctx, req, settings)
}

func (r *Resolver) resolveWith(ctx context.Context, req ResolveRequest, settings *AccountingSettings) (Resolution, error) {
	for _, s := range r.strategies {
		id, ok, err := s.Resolve(ctx, req, settings)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolver step %s failed: %w", s.Name(), err)
		}
		r.logger.Debug("Account resolver step",
			zap.String("strategy", s.Name()),
			zap.String("kind", string(req.Kind)),
			zap.String("key", req.Key),
			zap.String("target", string(req.Target)),
			zap.Bool("hit", ok),
		)
		if ok {
			return Resolution{AccountID: id, Strategy: s.Name()}, nil
		}
	}
	return Resolution{Unmapped: true}, nil
}

// ResolveAll resolves every request of one event. Duplicate requests are
// resolved once. Misses are returned, not treated as errors.
func (r *Resolver) ResolveAll(ctx context.Context, settings *AccountingSettings, reqs []ResolveRequest) (Accounts, []Miss, error) {
	accounts := make(Accounts, len(reqs))
	var misses []Miss
	seen := make(map[RequestKey]bool, len(reqs))
	for _, req := range reqs {
		if seen[req.LookupKey()] {
			continue
		}
		seen[req.LookupKey()] = true

		res, err := r.resolveWith(ctx, req, settings)
		if err != nil {
			return nil, nil, err
		}
		if res.Unmapped {
			misses = append(misses, Miss{Request: req})
			continue
		}
		accounts[req.LookupKey()] = res.AccountID
	}
	return accounts, misses, nil
}

// RecordMisses upserts one backlog row per missing entity and collects an
// unmapped-event-logged event for each. It must run inside the unit of work
// that also claims the source event, so a redelivery never double counts.
func (r *Resolver) RecordMisses(ctx context.Context, repo UnmappedEventRepository, collector shared.EventCollector, tenantID, eventID uuid.UUID, misses []Miss) ([]*UnmappedEvent, error) {
	byRef := make(map[EntityRef][]Target)
	var order []EntityRef
	for _, m := range misses {
		ref := m.Request.EntityRef()
		if _, ok := byRef[ref]; !ok {
			order = append(order, ref)
		}
		byRef[ref] = append(byRef[ref], m.Request.Target)
	}

	now := r.now()
	rows := make([]*UnmappedEvent, 0, len(order))
	for _, ref := range order {
		stored, err := repo.Upsert(ctx, NewUnmappedEvent(tenantID, ref, eventID, now))
		if err != nil {
			return nil, fmt.Errorf("failed to record unmapped %s %s: %w", ref.EntityType, ref.EntityID, err)
		}
		targets := byRef[ref]
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

		r.logger.Warn("GL account unmapped",
			zap.String("tenant_id", tenantID.String()),
			zap.String("entity_type", ref.EntityType),
			zap.String("entity_id", ref.EntityID),
			zap.String("event_id", eventID.String()),
			zap.Int("occurrence_count", stored.OccurrenceCount),
		)
		collector.Collect(NewUnmappedEventLoggedEvent(stored, targets))
		rows = append(rows, stored)
	}
	return rows, nil
}

// MissRefs returns the distinct backlog entities behind misses
func MissRefs(misses []Miss) []EntityRef {
	seen := make(map[EntityRef]bool, len(misses))
	refs := make([]EntityRef, 0, len(misses))
	for _, m := range misses {
		ref := m.Request.EntityRef()
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// RequestRefs returns the distinct backlog entities a set of requests depends on
func RequestRefs(reqs []ResolveRequest) []EntityRef {
	misses := make([]Miss, len(reqs))
	for i, req := range reqs {
		misses[i] = Miss{Request: req}
	}
	return MissRefs(misses)
}
