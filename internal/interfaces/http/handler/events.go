package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/accounting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/infrastructure/logger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// EventDecoder turns a raw envelope into a posting event
type EventDecoder interface {
	Decode(raw []byte) (*posting.Event, error)
}

// EventProcessor posts one inbound event
type EventProcessor interface {
	Process(ctx context.Context, evt *posting.Event) (*accounting.Outcome, error)
}

// EventHandler accepts inbound business events over HTTP for producers
// without a broker
type EventHandler struct {
	BaseHandler
	decoder   EventDecoder
	processor EventProcessor
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(decoder EventDecoder, processor EventProcessor) *EventHandler {
	return &EventHandler{decoder: decoder, processor: processor}
}

// RegisterRoutes mounts the handler under rg, which must carry the tenant middleware
func (h *EventHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/events", h.Ingest)
}

// Ingest posts one envelope synchronously and returns the outcome.
// Redelivery answers 200 with the duplicate outcome. Unresolved accounts
// answer 409 UNMAPPED_ACCOUNT with the outcome listing the missing mappings;
// the backlog rows are already committed.
// POST /api/v1/events
func (h *EventHandler) Ingest(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
		return
	}

	evt, err := h.decoder.Decode(raw)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if evt.TenantID() != tenantID {
		h.Error(c, http.StatusBadRequest, shared.CodeValidation, "tenantId does not match the X-Tenant-ID header")
		return
	}

	ctx := logger.WithEventID(c.Request.Context(), evt.EventID().String())
	outcome, err := h.processor.Process(ctx, evt)
	switch shared.ErrorCode(err) {
	case "":
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, outcome)
	case shared.CodeDuplicateEvent:
		logger.L(ctx).Debug("duplicate event over http")
		h.Success(c, outcome)
	case shared.CodeUnmappedAccount:
		resp := dto.NewErrorResponse(shared.CodeUnmappedAccount, err.Error(), middleware.GetRequestID(c))
		resp.Data = outcome
		c.JSON(dto.GetHTTPStatus(shared.CodeUnmappedAccount), resp)
	default:
		h.HandleError(c, err)
	}
}
