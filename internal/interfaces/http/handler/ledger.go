package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/JasonPDev313/Oppsera-sub010/internal/application/accounting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/ledger"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/mapping"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// apiActor is recorded on voids and remaps that name no actor
const apiActor = "api"

// LedgerQueries is the read side used by LedgerHandler
type LedgerQueries interface {
	GetJournalEntry(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error)
	ListRemappableTenders(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[ledger.SourceDocument], error)
	ListRemappableDocuments(ctx context.Context, tenantID uuid.UUID, entityType string, filter shared.Filter) (shared.Paginated[ledger.SourceDocument], error)
	ListUnmappedEvents(ctx context.Context, tenantID uuid.UUID, status mapping.UnmappedStatus, filter shared.Filter) (shared.Paginated[mapping.UnmappedEvent], error)
	MappingCoverage(ctx context.Context, tenantID uuid.UUID) (*accounting.MappingCoverage, error)
}

// JournalVoider voids posted entries
type JournalVoider interface {
	VoidEntry(ctx context.Context, tenantID, journalID uuid.UUID, reason, actor string) (*ledger.JournalEntry, error)
}

// Remapper previews and executes remaps of tenders and other source documents
type Remapper interface {
	PreviewRemap(ctx context.Context, tenantID uuid.UUID, tenderIDs []string, documents ...ledger.DocumentRef) ([]accounting.RemapPreview, error)
	ExecuteRemap(ctx context.Context, req accounting.RemapRequest) (*accounting.RemapResult, error)
}

// LedgerHandler serves the GL read accessors and commands
type LedgerHandler struct {
	BaseHandler
	queries  LedgerQueries
	journals JournalVoider
	remaps   Remapper
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(queries LedgerQueries, journals JournalVoider, remaps Remapper) *LedgerHandler {
	return &LedgerHandler{queries: queries, journals: journals, remaps: remaps}
}

// RegisterRoutes mounts the handler under rg, which must carry the tenant middleware
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	gl := rg.Group("/gl")
	gl.GET("/journal-entries/:id", h.GetJournalEntry)
	gl.POST("/journal-entries/:id/void", h.VoidJournalEntry)
	gl.GET("/remappable-tenders", h.ListRemappableTenders)
	gl.GET("/remappable-documents", h.ListRemappableDocuments)
	gl.GET("/mapping-coverage", h.GetMappingCoverage)
	gl.GET("/unmapped-events", h.ListUnmappedEvents)
	gl.POST("/remap/preview", h.PreviewRemap)
	gl.POST("/remap/execute", h.ExecuteRemap)
}

// VoidRequest is the body of a void command
type VoidRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
	Actor  string `json:"actor" binding:"omitempty,max=100"`
}

// DocumentRefRequest names a non-tender source document
type DocumentRefRequest struct {
	SourceModule string `json:"sourceModule" binding:"required,max=50"`
	EntityType   string `json:"entityType" binding:"required,max=50"`
	EntityID     string `json:"entityId" binding:"required,max=100"`
}

// RemapPreviewRequest is the body of a remap preview. At least one tender
// id or document is required.
type RemapPreviewRequest struct {
	TenderIDs []string             `json:"tenderIds" binding:"omitempty,unique,dive,required"`
	Documents []DocumentRefRequest `json:"documents" binding:"omitempty,dive"`
}

// RemapExecuteRequest is the body of a remap execution
type RemapExecuteRequest struct {
	TenderIDs []string             `json:"tenderIds" binding:"omitempty,unique,dive,required"`
	Documents []DocumentRefRequest `json:"documents" binding:"omitempty,dive"`
	Reason    string               `json:"reason" binding:"required,max=500"`
	Actor     string               `json:"actor" binding:"omitempty,max=100"`
}

// RemappableDocumentsRequest is the query of the remappable document list
type RemappableDocumentsRequest struct {
	dto.ListRequest
	EntityType string `form:"entity_type" binding:"omitempty,max=50"`
}

// UnmappedEventsRequest is the query of the unmapped feed
type UnmappedEventsRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,oneof=unresolved resolved"`
}

// GetJournalEntry returns an entry with its lines.
// GET /api/v1/gl/journal-entries/:id
func (h *LedgerHandler) GetJournalEntry(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	entry, err := h.queries.GetJournalEntry(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJournalEntryResponse(entry))
}

// VoidJournalEntry voids a posted entry and returns the voided original.
// POST /api/v1/gl/journal-entries/:id/void
func (h *LedgerHandler) VoidJournalEntry(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req VoidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	entry, err := h.journals.VoidEntry(c.Request.Context(), tenantID, id, strings.TrimSpace(req.Reason), actorOr(req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJournalEntryResponse(entry))
}

// ListRemappableTenders pages tenders that are unmapped or held for review.
// GET /api/v1/gl/remappable-tenders
func (h *LedgerHandler) ListRemappableTenders(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.queries.ListRemappableTenders(c.Request.Context(), tenantID, req.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(mapPage(page, toRemappableTenderResponse)))
}

// ListRemappableDocuments pages source documents of any type that are
// unmapped or held for review, optionally filtered by entity_type.
// GET /api/v1/gl/remappable-documents
func (h *LedgerHandler) ListRemappableDocuments(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req RemappableDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.queries.ListRemappableDocuments(c.Request.Context(), tenantID, req.EntityType, req.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(mapPage(page, toRemappableDocumentResponse)))
}

// GetMappingCoverage compares mapped keys with the open backlog per kind.
// GET /api/v1/gl/mapping-coverage
func (h *LedgerHandler) GetMappingCoverage(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	coverage, err := h.queries.MappingCoverage(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, coverage)
}

// ListUnmappedEvents pages the unmapped backlog, optionally by status.
// GET /api/v1/gl/unmapped-events?status=unresolved
func (h *LedgerHandler) ListUnmappedEvents(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req UnmappedEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.queries.ListUnmappedEvents(c.Request.Context(), tenantID, mapping.UnmappedStatus(req.Status), req.Filter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPageResponse(mapPage(page, toUnmappedEventResponse)))
}

// PreviewRemap shows what a remap would post, without writing.
// POST /api/v1/gl/remap/preview
func (h *LedgerHandler) PreviewRemap(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req RemapPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if !h.hasRemapTargets(c, req.TenderIDs, req.Documents) {
		return
	}

	previews, err := h.remaps.PreviewRemap(c.Request.Context(), tenantID, req.TenderIDs, documentRefs(req.Documents)...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, previews)
}

// ExecuteRemap re-posts documents against the current mappings. When some
// documents fail the response is 207 with the full result and the
// REMAP_BATCH_PARTIAL_FAILURE error.
// POST /api/v1/gl/remap/execute
func (h *LedgerHandler) ExecuteRemap(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req RemapExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if !h.hasRemapTargets(c, req.TenderIDs, req.Documents) {
		return
	}

	result, err := h.remaps.ExecuteRemap(c.Request.Context(), accounting.RemapRequest{
		TenantID:  tenantID,
		TenderIDs: req.TenderIDs,
		Documents: documentRefs(req.Documents),
		Reason:    req.Reason,
		Actor:     actorOr(req.Actor),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := result.Err(); err != nil {
		resp := dto.NewErrorResponse(shared.ErrorCode(err), err.Error(), middleware.GetRequestID(c))
		resp.Data = result
		c.JSON(dto.GetHTTPStatus(shared.CodeRemapBatchPartialFailure), resp)
		return
	}
	h.Success(c, result)
}

func (h *LedgerHandler) hasRemapTargets(c *gin.Context, tenderIDs []string, documents []DocumentRefRequest) bool {
	if len(tenderIDs) == 0 && len(documents) == 0 {
		h.Error(c, http.StatusBadRequest, shared.CodeValidation, "tenderIds or documents is required")
		return false
	}
	return true
}

func documentRefs(in []DocumentRefRequest) []ledger.DocumentRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]ledger.DocumentRef, len(in))
	for i, d := range in {
		out[i] = ledger.DocumentRef{SourceModule: d.SourceModule, EntityType: d.EntityType, EntityID: d.EntityID}
	}
	return out
}

func actorOr(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return apiActor
}
