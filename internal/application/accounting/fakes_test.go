package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memLedger is an in-memory ledger. Do serialises units of work and restores
// the previous state when fn fails, so rollback behaves like the database.
type memLedger struct {
	mu        sync.Mutex
	journals  map[uuid.UUID]*ledger.JournalEntry
	counters  map[uuid.UUID]int64
	claims    map[string]bool
	docs      map[string]*ledger.SourceDocument
	activity  []ledger.RevenueActivity
	unmapped  map[string]*mapping.UnmappedEvent
	published []shared.DomainEvent
	commits   int
}

func newMemLedger() *memLedger {
	return &memLedger{
		journals: map[uuid.UUID]*ledger.JournalEntry{},
		counters: map[uuid.UUID]int64{},
		claims:   map[string]bool{},
		docs:     map[string]*ledger.SourceDocument{},
		unmapped: map[string]*mapping.UnmappedEvent{},
	}
}

func copyEntry(e *ledger.JournalEntry) *ledger.JournalEntry {
	c := *e
	c.Lines = append([]ledger.JournalLine(nil), e.Lines...)
	return &c
}

func copyDoc(d *ledger.SourceDocument) *ledger.SourceDocument {
	c := *d
	c.MissingMappings = append([]mapping.EntityRef(nil), d.MissingMappings...)
	return &c
}

type memState struct {
	journals map[uuid.UUID]*ledger.JournalEntry
	counters map[uuid.UUID]int64
	claims   map[string]bool
	docs     map[string]*ledger.SourceDocument
	activity []ledger.RevenueActivity
	unmapped map[string]*mapping.UnmappedEvent
}

func (m *memLedger) snapshot() memState {
	s := memState{
		journals: make(map[uuid.UUID]*ledger.JournalEntry, len(m.journals)),
		counters: make(map[uuid.UUID]int64, len(m.counters)),
		claims:   make(map[string]bool, len(m.claims)),
		docs:     make(map[string]*ledger.SourceDocument, len(m.docs)),
		activity: append([]ledger.RevenueActivity(nil), m.activity...),
		unmapped: make(map[string]*mapping.UnmappedEvent, len(m.unmapped)),
	}
	for k, v := range m.journals {
		s.journals[k] = copyEntry(v)
	}
	for k, v := range m.counters {
		s.counters[k] = v
	}
	for k, v := range m.claims {
		s.claims[k] = v
	}
	for k, v := range m.docs {
		s.docs[k] = copyDoc(v)
	}
	for k, v := range m.unmapped {
		row := *v
		s.unmapped[k] = &row
	}
	return s
}

func (m *memLedger) restore(s memState) {
	m.journals = s.journals
	m.counters = s.counters
	m.claims = s.claims
	m.docs = s.docs
	m.activity = s.activity
	m.unmapped = s.unmapped
}

func (m *memLedger) Do(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	if tenantID == uuid.Nil {
		return shared.NewDomainError(shared.CodeValidation, "tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.snapshot()
	uow := &memUnitOfWork{ledger: m, tenantID: tenantID}
	if err := fn(ctx, uow); err != nil {
		m.restore(before)
		return err
	}
	m.commits++
	m.published = append(m.published, uow.buffer.Events()...)
	return nil
}

func (m *memLedger) entries(tenantID uuid.UUID) []*ledger.JournalEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.JournalEntry
	for _, e := range m.journals {
		if e.TenantID == tenantID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JournalNumber < out[j].JournalNumber })
	return out
}

func (m *memLedger) doc(tenantID uuid.UUID, module, entityType, entityID string) *ledger.SourceDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[docKey(tenantID, module, entityType, entityID)]; ok {
		return copyDoc(d)
	}
	return nil
}

func (m *memLedger) unmappedRows(tenantID uuid.UUID) []mapping.UnmappedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mapping.UnmappedEvent
	for _, row := range m.unmapped {
		if row.TenantID == tenantID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (m *memLedger) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, e := range m.published {
		out[i] = e.EventType()
	}
	return out
}

func docKey(tenantID uuid.UUID, module, entityType, entityID string) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, module, entityType, entityID)
}

func unmappedKey(tenantID uuid.UUID, ref mapping.EntityRef) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, ref.EntityType, ref.EntityID)
}

// QueryRepository

func (m *memLedger) GetEntry(_ context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.journals[id]
	if !ok || e.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return copyEntry(e), nil
}

func (m *memLedger) ListRemappableDocuments(_ context.Context, tenantID uuid.UUID, entityType string, filter shared.Filter) ([]ledger.SourceDocument, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []ledger.SourceDocument
	for _, d := range m.docs {
		if d.TenantID == tenantID && (entityType == "" || d.EntityType == entityType) && d.IsRemappable() {
			all = append(all, *copyDoc(d))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EntityID < all[j].EntityID })
	return page(all, filter), int64(len(all)), nil
}

func (m *memLedger) ListUnmapped(_ context.Context, tenantID uuid.UUID, status mapping.UnmappedStatus, filter shared.Filter) ([]mapping.UnmappedEvent, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []mapping.UnmappedEvent
	for _, row := range m.unmapped {
		if row.TenantID == tenantID && (status == "" || row.Status == status) {
			all = append(all, *row)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EntityID < all[j].EntityID })
	return page(all, filter), int64(len(all)), nil
}

func (m *memLedger) CountUnresolvedByEntityType(_ context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, row := range m.unmapped {
		if row.TenantID == tenantID && row.Status == mapping.UnmappedStatusUnresolved {
			out[row.EntityType]++
		}
	}
	return out, nil
}

func (m *memLedger) FindSourceDocument(_ context.Context, tenantID uuid.UUID, module, entityType, entityID string) (*ledger.SourceDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[docKey(tenantID, module, entityType, entityID)]; ok {
		return copyDoc(d), nil
	}
	return nil, nil
}

func page[T any](all []T, f shared.Filter) []T {
	start := f.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + f.Limit()
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// memUnitOfWork implements every tenant-bound repository of the unit of work.
// Its methods run with the ledger lock held by Do.
type memUnitOfWork struct {
	ledger   *memLedger
	tenantID uuid.UUID
	buffer   shared.EventBuffer
}

func (u *memUnitOfWork) Collect(events ...shared.DomainEvent) { u.buffer.Collect(events...) }
func (u *memUnitOfWork) TenantID() uuid.UUID                  { return u.tenantID }

func (u *memUnitOfWork) Journals() ledger.JournalRepository                { return u }
func (u *memUnitOfWork) JournalNumbers() ledger.JournalNumberAllocator     { return u }
func (u *memUnitOfWork) ProcessedEvents() ledger.ProcessedEventRepository  { return u }
func (u *memUnitOfWork) SourceDocuments() ledger.SourceDocumentRepository  { return u }
func (u *memUnitOfWork) RevenueActivity() ledger.RevenueActivityRepository { return u }
func (u *memUnitOfWork) Unmapped() mapping.UnmappedEventRepository         { return u }

func (u *memUnitOfWork) FindByID(_ context.Context, id uuid.UUID) (*ledger.JournalEntry, error) {
	e, ok := u.ledger.journals[id]
	if !ok || e.TenantID != u.tenantID {
		return nil, nil
	}
	return copyEntry(e), nil
}

func (u *memUnitOfWork) FindBySource(_ context.Context, module, ref string) (*ledger.JournalEntry, error) {
	for _, e := range u.ledger.journals {
		if e.TenantID == u.tenantID && e.SourceModule == module && e.SourceReferenceID == ref {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

func (u *memUnitOfWork) FindActiveBySourceEntity(_ context.Context, module, entityID string) (*ledger.JournalEntry, error) {
	for _, e := range u.ledger.journals {
		if e.TenantID == u.tenantID && e.SourceModule == module && e.SourceEntityID == entityID &&
			e.Status == ledger.JournalStatusPosted && e.ReversalOfID == nil {
			return copyEntry(e), nil
		}
	}
	return nil, nil
}

func (u *memUnitOfWork) Insert(_ context.Context, entry *ledger.JournalEntry) error {
	if entry.TenantID != u.tenantID {
		return shared.ErrTenantMismatch
	}
	for _, e := range u.ledger.journals {
		if e.TenantID == u.tenantID && e.SourceModule == entry.SourceModule && e.SourceReferenceID == entry.SourceReferenceID {
			return shared.NewDomainError(shared.CodeDuplicateEvent, "journal entry already exists for source")
		}
	}
	u.ledger.journals[entry.ID] = copyEntry(entry)
	return nil
}

func (u *memUnitOfWork) MarkVoided(_ context.Context, entry *ledger.JournalEntry) error {
	stored, ok := u.ledger.journals[entry.ID]
	if !ok || stored.TenantID != u.tenantID || stored.Status != ledger.JournalStatusPosted {
		return shared.ErrConcurrencyConflict
	}
	u.ledger.journals[entry.ID] = copyEntry(entry)
	return nil
}

func (u *memUnitOfWork) Next(context.Context) (int64, error) {
	u.ledger.counters[u.tenantID]++
	return u.ledger.counters[u.tenantID], nil
}

func (u *memUnitOfWork) TryClaim(_ context.Context, eventID uuid.UUID, consumer string) (bool, error) {
	key := eventID.String() + "|" + consumer
	if u.ledger.claims[key] {
		return false, nil
	}
	u.ledger.claims[key] = true
	return true, nil
}

func (u *memUnitOfWork) Save(_ context.Context, doc *ledger.SourceDocument) error {
	key := docKey(u.tenantID, doc.SourceModule, doc.EntityType, doc.EntityID)
	if existing, ok := u.ledger.docs[key]; ok {
		doc.ID = existing.ID
	}
	u.ledger.docs[key] = copyDoc(doc)
	return nil
}

func (u *memUnitOfWork) Find(_ context.Context, module, entityType, entityID string) (*ledger.SourceDocument, error) {
	if d, ok := u.ledger.docs[docKey(u.tenantID, module, entityType, entityID)]; ok {
		return copyDoc(d), nil
	}
	return nil, nil
}

func (u *memUnitOfWork) Record(_ context.Context, activity *ledger.RevenueActivity) error {
	u.ledger.activity = append(u.ledger.activity, *activity)
	return nil
}

func (u *memUnitOfWork) Upsert(_ context.Context, row *mapping.UnmappedEvent) (*mapping.UnmappedEvent, error) {
	key := unmappedKey(u.tenantID, row.Ref())
	if existing, ok := u.ledger.unmapped[key]; ok {
		existing.OccurrenceCount++
		existing.EventID = row.EventID
		existing.LastSeenAt = row.LastSeenAt
		existing.Status = mapping.UnmappedStatusUnresolved
		existing.ResolvedAt = nil
		out := *existing
		return &out, nil
	}
	stored := *row
	u.ledger.unmapped[key] = &stored
	return row, nil
}

func (u *memUnitOfWork) Resolve(_ context.Context, refs []mapping.EntityRef, at time.Time) (int64, error) {
	var n int64
	for _, ref := range refs {
		if row, ok := u.ledger.unmapped[unmappedKey(u.tenantID, ref)]; ok && row.Status == mapping.UnmappedStatusUnresolved {
			row.Status = mapping.UnmappedStatusResolved
			resolved := at
			row.ResolvedAt = &resolved
			n++
		}
	}
	return n, nil
}

var (
	_ ledger.TransactionCoordinator = (*memLedger)(nil)
	_ ledger.QueryRepository        = (*memLedger)(nil)
	_ ledger.UnitOfWork             = (*memUnitOfWork)(nil)
)

// memMappings holds mapping rows keyed by kind, key and location
type memMappings struct {
	mu   sync.Mutex
	rows map[string]*mapping.AccountMapping
	err  error
}

func newMemMappings() *memMappings {
	return &memMappings{rows: map[string]*mapping.AccountMapping{}}
}

func mappingKey(kind mapping.MappingKind, key string, loc *uuid.UUID) string {
	if loc == nil {
		return string(kind) + "|" + key + "|"
	}
	return string(kind) + "|" + key + "|" + loc.String()
}

func (m *memMappings) set(kind mapping.MappingKind, key string, target mapping.Target, account uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mappingKey(kind, key, nil)
	row, ok := m.rows[k]
	if !ok {
		row = &mapping.AccountMapping{Kind: kind, Key: key, Accounts: map[mapping.Target]uuid.UUID{}}
		m.rows[k] = row
	}
	row.Accounts[target] = account
}

func (m *memMappings) FindMapping(_ context.Context, _ uuid.UUID, kind mapping.MappingKind, key string, loc *uuid.UUID) (*mapping.AccountMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[mappingKey(kind, key, loc)]
	if !ok {
		return nil, nil
	}
	out := *row
	out.Accounts = make(map[mapping.Target]uuid.UUID, len(row.Accounts))
	for t, a := range row.Accounts {
		out.Accounts[t] = a
	}
	return &out, nil
}

func (m *memMappings) CountByKind(context.Context, uuid.UUID) (map[mapping.MappingKind]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[mapping.MappingKind]int64{}
	for _, row := range m.rows {
		if row.LocationID == nil {
			out[row.Kind]++
		}
	}
	return out, nil
}

// memSettings returns the configured settings or the defaults
type memSettings struct {
	settings *mapping.AccountingSettings
	err      error
}

func (s *memSettings) Get(_ context.Context, tenantID uuid.UUID) (*mapping.AccountingSettings, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.settings == nil {
		return mapping.DefaultSettings(tenantID), nil
	}
	out := *s.settings
	return &out, nil
}

var errStoreDown = errors.New("store unavailable")

// harness wires the accounting services over the in-memory fakes
type harness struct {
	tenantID uuid.UUID
	ledger   *memLedger
	mappings *memMappings
	settings *memSettings
	store    *JournalStore
	engine   *PostingEngine
	remap    *RemapService
	queries  *QueryService
	now      time.Time

	cash    uuid.UUID
	revenue uuid.UUID
	tax     uuid.UUID
	bank    uuid.UUID
	fees    uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tenantID: uuid.New(),
		ledger:   newMemLedger(),
		mappings: newMemMappings(),
		settings: &memSettings{},
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		cash:     uuid.New(),
		revenue:  uuid.New(),
		tax:      uuid.New(),
		bank:     uuid.New(),
		fees:     uuid.New(),
	}
	clock := func() time.Time { return h.now }
	logger := zap.NewNop()

	composer := posting.NewComposer()
	resolver := mapping.NewResolver(h.mappings, h.settings, logger)
	h.store = NewJournalStore(h.ledger, h.settings, logger, WithJournalClock(clock))
	h.engine = NewPostingEngine(composer, resolver, h.ledger, h.store, "gl-posting", logger, WithEngineClock(clock))
	h.remap = NewRemapService(composer, resolver, h.ledger, h.store, h.ledger, logger, WithRemapMaxBatch(3))
	h.queries = NewQueryService(h.ledger, h.mappings, logger)
	return h
}

// memSeen is an in-process SeenCache
type memSeen struct {
	mu      sync.Mutex
	ids     map[uuid.UUID]bool
	lookups int
	hits    int
}

func (s *memSeen) Seen(_ context.Context, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.ids[id] {
		s.hits++
	}
	return s.ids[id]
}

func (s *memSeen) Remember(_ context.Context, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
}

// useSeenCache rebuilds the engine behind a seen-cache
func (h *harness) useSeenCache() *memSeen {
	seen := &memSeen{ids: map[uuid.UUID]bool{}}
	clock := func() time.Time { return h.now }
	logger := zap.NewNop()
	resolver := mapping.NewResolver(h.mappings, h.settings, logger)
	h.engine = NewPostingEngine(posting.NewComposer(), resolver, h.ledger, h.store, "gl-posting", logger,
		WithEngineClock(clock), WithSeenCache(seen))
	return seen
}

// mapTender maps every account a card tender of the food sub-department needs
func (h *harness) mapTender() {
	h.mappings.set(mapping.KindPaymentType, "card", mapping.TargetUndepositedFunds, h.cash)
	h.mappings.set(mapping.KindSubDepartment, "food", mapping.TargetRevenue, h.revenue)
	h.mappings.set(mapping.KindTaxGroup, "state", mapping.TargetTaxPayable, h.tax)
}

// mapSettlement maps every account a card settlement without chargebacks needs
func (h *harness) mapSettlement() {
	h.mappings.set(mapping.KindPaymentType, "card", mapping.TargetBank, h.bank)
	h.mappings.set(mapping.KindPaymentType, "card", mapping.TargetProcessingFee, h.fees)
	h.mappings.set(mapping.KindPaymentType, "card", mapping.TargetUndepositedFunds, h.cash)
}

var businessDate = time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)

// tenderEvent is a 100.00 card tender: 90.91 food revenue and 9.09 state tax
func (h *harness) tenderEvent(tenderID string) *posting.Event {
	return posting.NewEvent(uuid.New(), h.tenantID, posting.EventTypeTenderCompleted, h.now, nil, &posting.TenderCompleted{
		TenderID:     tenderID,
		OrderID:      "order-" + tenderID,
		TenderType:   "card",
		BusinessDate: businessDate,
		GrossCents:   10000,
		Lines: []posting.SaleLine{{
			SubDepartmentID: "food",
			NetCents:        9091,
			TaxGroupID:      "state",
			TaxCents:        909,
		}},
	})
}

// settlementEvent is a 1000.00 card settlement with 25.00 of processing fees
func (h *harness) settlementEvent(settlementID string) *posting.Event {
	return posting.NewEvent(uuid.New(), h.tenantID, posting.EventTypeCardSettlementCompleted, h.now, nil, &posting.CardSettlementCompleted{
		SettlementID: settlementID,
		PaymentType:  "card",
		BusinessDate: businessDate,
		GrossCents:   100000,
		FeeCents:     2500,
	})
}

// postedInput is a balanced two-line entry for direct store tests
func (h *harness) postedInput(ref string, amount string) ledger.PostingInput {
	return ledger.PostingInput{
		SourceModule:      "manual",
		SourceReferenceID: ref,
		SourceEntityID:    ref,
		BusinessDate:      businessDate,
		Memo:              "adjustment " + ref,
		PostedBy:          "alice",
		Lines: []ledger.LineInput{
			{AccountID: h.cash, Debit: dec(amount)},
			{AccountID: h.revenue, Credit: dec(amount)},
		},
	}
}
