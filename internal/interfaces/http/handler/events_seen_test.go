package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/accounting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/cache"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/event"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSettings struct{}

func (stubSettings) Get(_ context.Context, tenantID uuid.UUID) (*mapping.AccountingSettings, error) {
	return mapping.DefaultSettings(tenantID), nil
}

type stubMappings struct{}

func (stubMappings) FindMapping(context.Context, uuid.UUID, mapping.MappingKind, string, *uuid.UUID) (*mapping.AccountMapping, error) {
	return nil, nil
}

func (stubMappings) CountByKind(context.Context, uuid.UUID) (map[mapping.MappingKind]int64, error) {
	return nil, nil
}

// claimedUnitOfWork reports every event as already claimed
type claimedUnitOfWork struct {
	ledger.UnitOfWork
}

func (claimedUnitOfWork) ProcessedEvents() ledger.ProcessedEventRepository { return alreadyClaimed{} }

type alreadyClaimed struct{}

func (alreadyClaimed) TryClaim(context.Context, uuid.UUID, string) (bool, error) { return false, nil }

type mockCoordinator struct{ mock.Mock }

func (m *mockCoordinator) Do(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, uow ledger.UnitOfWork) error) error {
	m.Called(ctx, tenantID)
	return fn(ctx, claimedUnitOfWork{})
}

func TestEventHandler_Ingest_RedeliveryStopsAtSeenCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := event.NewIdempotencyGuard(cache.NewRedisSeenCacheWithClient(client, "gl:seen:"), zap.NewNop(),
		event.WithConsumerName("gl-posting"))
	coordinator := new(mockCoordinator)
	coordinator.On("Do", mock.Anything, mock.Anything).Return()
	engine := accounting.NewPostingEngine(posting.NewComposer(), mapping.NewResolver(stubMappings{}, stubSettings{}, zap.NewNop()),
		coordinator, nil, "gl-posting", zap.NewNop(), accounting.WithSeenCache(guard))

	f := newEventFixture()
	evt := f.event(f.tenantID)
	evt.Data = &posting.TenderCompleted{
		TenderID: "T-1", TenderType: "card", BusinessDate: time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), GrossCents: 1000,
		Lines: []posting.SaleLine{{SubDepartmentID: "food", NetCents: 1000}},
	}
	f.decoder.On("Decode", mock.Anything).Return(evt, nil)
	router := tenantRouter(NewEventHandler(f.decoder, engine).RegisterRoutes)

	for i := 0; i < 2; i++ {
		w := doJSON(router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		_, data := decodeResponse(t, w)
		var got accounting.Outcome
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, accounting.OutcomeDuplicate, got.Status)
		assert.Equal(t, evt.EventID(), got.EventID)
	}

	coordinator.AssertNumberOfCalls(t, "Do", 1)
	assert.True(t, mr.Exists("gl:seen:gl-posting:"+evt.EventID().String()))
	stats := guard.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsMarked)
	assert.Equal(t, int64(1), stats.EventsSeen)
}
