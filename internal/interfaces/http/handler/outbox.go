package handler

import (
	"context"
	"net/http"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/event"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OutboxAdmin is the operator surface of the outbox
type OutboxAdmin interface {
	GetDeadLetterEntries(ctx context.Context, filter event.OutboxFilter) (shared.Paginated[event.OutboxEntryDTO], error)
	GetEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryDeadEntry(ctx context.Context, id uuid.UUID) (*event.OutboxEntryDTO, error)
	RetryAllDeadEntries(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*event.OutboxStatsDTO, error)
}

// OutboxHandler lets operators inspect and replay GL notifications
type OutboxHandler struct {
	BaseHandler
	admin OutboxAdmin
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(admin OutboxAdmin) *OutboxHandler {
	return &OutboxHandler{admin: admin}
}

// RetryAllResponse reports how many dead entries were reset
type RetryAllResponse struct {
	Count int64 `json:"count"`
}

// RegisterRoutes mounts the handler under rg. The outbox spans tenants, so rg
// carries no tenant middleware.
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	outbox := rg.Group("/outbox")
	outbox.GET("/stats", h.GetStats)
	outbox.GET("/dead", h.GetDeadLetterEntries)
	outbox.POST("/dead/retry-all", h.RetryAllDeadEntries)
	outbox.GET("/:id", h.GetEntry)
	outbox.POST("/:id/retry", h.RetryDeadEntry)
}

// GetDeadLetterEntries pages dead entries, most recent failure first
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	var filter event.OutboxFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.admin.GetDeadLetterEntries(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(page))
}

// GetEntry returns one entry
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	entry, err := h.admin.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryDeadEntry returns a dead entry to the relay queue
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	entry, err := h.admin.RetryDeadEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDeadEntries returns every dead entry to the relay queue
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	count, err := h.admin.RetryAllDeadEntries(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RetryAllResponse{Count: count})
}

// GetStats counts entries per status
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.admin.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
