package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/accounting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/application/event"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type mockLedgerQueries struct{ mock.Mock }

func (m *mockLedgerQueries) GetJournalEntry(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, id)
	entry, _ := args.Get(0).(*ledger.JournalEntry)
	return entry, args.Error(1)
}

func (m *mockLedgerQueries) ListRemappableTenders(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[ledger.SourceDocument], error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(shared.Paginated[ledger.SourceDocument]), args.Error(1)
}

func (m *mockLedgerQueries) ListRemappableDocuments(ctx context.Context, tenantID uuid.UUID, entityType string, filter shared.Filter) (shared.Paginated[ledger.SourceDocument], error) {
	args := m.Called(ctx, tenantID, entityType, filter)
	return args.Get(0).(shared.Paginated[ledger.SourceDocument]), args.Error(1)
}

func (m *mockLedgerQueries) ListUnmappedEvents(ctx context.Context, tenantID uuid.UUID, status mapping.UnmappedStatus, filter shared.Filter) (shared.Paginated[mapping.UnmappedEvent], error) {
	args := m.Called(ctx, tenantID, status, filter)
	return args.Get(0).(shared.Paginated[mapping.UnmappedEvent]), args.Error(1)
}

func (m *mockLedgerQueries) MappingCoverage(ctx context.Context, tenantID uuid.UUID) (*accounting.MappingCoverage, error) {
	args := m.Called(ctx, tenantID)
	coverage, _ := args.Get(0).(*accounting.MappingCoverage)
	return coverage, args.Error(1)
}

type mockJournalVoider struct{ mock.Mock }

func (m *mockJournalVoider) VoidEntry(ctx context.Context, tenantID, journalID uuid.UUID, reason, actor string) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, journalID, reason, actor)
	entry, _ := args.Get(0).(*ledger.JournalEntry)
	return entry, args.Error(1)
}

type mockRemapper struct{ mock.Mock }

func (m *mockRemapper) PreviewRemap(ctx context.Context, tenantID uuid.UUID, tenderIDs []string, documents ...ledger.DocumentRef) ([]accounting.RemapPreview, error) {
	args := m.Called(ctx, tenantID, tenderIDs, documents)
	previews, _ := args.Get(0).([]accounting.RemapPreview)
	return previews, args.Error(1)
}

func (m *mockRemapper) ExecuteRemap(ctx context.Context, req accounting.RemapRequest) (*accounting.RemapResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*accounting.RemapResult)
	return result, args.Error(1)
}

type mockEventDecoder struct{ mock.Mock }

func (m *mockEventDecoder) Decode(raw []byte) (*posting.Event, error) {
	args := m.Called(raw)
	evt, _ := args.Get(0).(*posting.Event)
	return evt, args.Error(1)
}

type mockEventProcessor struct{ mock.Mock }

func (m *mockEventProcessor) Process(ctx context.Context, evt *posting.Event) (*accounting.Outcome, error) {
	args := m.Called(ctx, evt)
	outcome, _ := args.Get(0).(*accounting.Outcome)
	return outcome, args.Error(1)
}

type mockOutboxAdmin struct{ mock.Mock }

func (m *mockOutboxAdmin) GetDeadLetterEntries(ctx context.Context, filter event.OutboxFilter) (shared.Paginated[event.OutboxEntryDTO], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[event.OutboxEntryDTO]), args.Error(1)
}

func (m *mockOutboxAdmin) GetEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*event.OutboxEntryDTO)
	return entry, args.Error(1)
}

func (m *mockOutboxAdmin) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error) {
	args := m.Called(ctx, id)
	entry, _ := args.Get(0).(*event.OutboxEntryDTO)
	return entry, args.Error(1)
}

func (m *mockOutboxAdmin) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOutboxAdmin) GetStats(ctx context.Context) (*event.OutboxStatsDTO, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*event.OutboxStatsDTO)
	return stats, args.Error(1)
}

// tenantRouter mounts routes under /api/v1 behind the request id and tenant middleware
func tenantRouter(register func(rg *gin.RouterGroup)) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.Tenant(middleware.TenantConfig{}))
	register(api)
	return r
}

func doJSON(r http.Handler, method, path string, tenantID uuid.UUID, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != uuid.Nil {
		req.Header.Set(middleware.TenantHeader, tenantID.String())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeResponse decodes the envelope, leaving data raw for the caller
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, json.RawMessage) {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return envelope.Response, envelope.Data
}
