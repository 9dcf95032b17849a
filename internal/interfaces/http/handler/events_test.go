package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/accounting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tenderEnvelope = `{"eventId":"e","eventType":"tender.completed.v1"}`

type eventFixture struct {
	decoder   *mockEventDecoder
	processor *mockEventProcessor
	router    *gin.Engine
	tenantID  uuid.UUID
}

func newEventFixture() *eventFixture {
	f := &eventFixture{
		decoder:   new(mockEventDecoder),
		processor: new(mockEventProcessor),
		tenantID:  uuid.New(),
	}
	h := NewEventHandler(f.decoder, f.processor)
	f.router = tenantRouter(h.RegisterRoutes)
	return f
}

func (f *eventFixture) event(tenantID uuid.UUID) *posting.Event {
	return posting.NewEvent(uuid.New(), tenantID, posting.EventTypeTenderCompleted, time.Now().UTC(), nil, &posting.TenderCompleted{})
}

func TestEventHandler_Ingest_Posted(t *testing.T) {
	f := newEventFixture()
	evt := f.event(f.tenantID)
	entryID := uuid.New()
	outcome := &accounting.Outcome{EventID: evt.EventID(), EventType: evt.EventType(), Status: accounting.OutcomePosted, JournalEntryID: &entryID, JournalNumber: 3}
	f.decoder.On("Decode", []byte(tenderEnvelope)).Return(evt, nil)
	f.processor.On("Process", mock.MatchedBy(func(ctx context.Context) bool {
		return logger.GetEventID(ctx) == evt.EventID().String()
	}), evt).Return(outcome, nil)

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, data := decodeResponse(t, w)
	var got accounting.Outcome
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, accounting.OutcomePosted, got.Status)
	assert.Equal(t, int64(3), got.JournalNumber)
	f.processor.AssertExpectations(t)
}

func TestEventHandler_Ingest_Duplicate(t *testing.T) {
	f := newEventFixture()
	evt := f.event(f.tenantID)
	outcome := &accounting.Outcome{EventID: evt.EventID(), Status: accounting.OutcomeDuplicate}
	f.decoder.On("Decode", mock.Anything).Return(evt, nil)
	f.processor.On("Process", mock.Anything, evt).Return(outcome, shared.ErrDuplicateEvent)

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)

	require.Equal(t, http.StatusOK, w.Code)
	resp, data := decodeResponse(t, w)
	assert.True(t, resp.Success)
	var got accounting.Outcome
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, accounting.OutcomeDuplicate, got.Status)
}

func TestEventHandler_Ingest_Unmapped(t *testing.T) {
	f := newEventFixture()
	evt := f.event(f.tenantID)
	missing := []mapping.EntityRef{{EntityType: "tender_type", EntityID: "gift_card"}}
	outcome := &accounting.Outcome{EventID: evt.EventID(), Status: accounting.OutcomeUnmapped, MissingMappings: missing}
	f.decoder.On("Decode", mock.Anything).Return(evt, nil)
	f.processor.On("Process", mock.Anything, evt).Return(outcome, shared.ErrUnmappedAccount)

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp, data := decodeResponse(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.CodeUnmappedAccount, resp.Error.Code)
	var got accounting.Outcome
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, missing, got.MissingMappings)
}

func TestEventHandler_Ingest_Unbalanced(t *testing.T) {
	f := newEventFixture()
	evt := f.event(f.tenantID)
	f.decoder.On("Decode", mock.Anything).Return(evt, nil)
	f.processor.On("Process", mock.Anything, evt).Return(nil, shared.ErrUnbalancedEntry)

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp, _ := decodeResponse(t, w)
	assert.Equal(t, shared.CodeUnbalancedEntry, resp.Error.Code)
}

func TestEventHandler_Ingest_InfrastructureError(t *testing.T) {
	f := newEventFixture()
	evt := f.event(f.tenantID)
	f.decoder.On("Decode", mock.Anything).Return(evt, nil)
	f.processor.On("Process", mock.Anything, evt).Return(nil, errors.New("deadlock detected"))

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp, _ := decodeResponse(t, w)
	assert.Equal(t, shared.CodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "deadlock")
}

func TestEventHandler_Ingest_DecodeError(t *testing.T) {
	f := newEventFixture()
	f.decoder.On("Decode", mock.Anything).
		Return(nil, shared.NewDomainError(shared.CodeValidation, "unknown event type"))

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, `{"eventType":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := decodeResponse(t, w)
	assert.Equal(t, "unknown event type", resp.Error.Message)
	f.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestEventHandler_Ingest_TenantMismatch(t *testing.T) {
	f := newEventFixture()
	f.decoder.On("Decode", mock.Anything).Return(f.event(uuid.New()), nil)

	w := doJSON(f.router, http.MethodPost, "/api/v1/events", f.tenantID, tenderEnvelope)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp, _ := decodeResponse(t, w)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	f.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}
