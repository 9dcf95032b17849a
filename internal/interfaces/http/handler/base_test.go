package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/dto"
	"github.com/JasonPDev313/Oppsera-sub010/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(middleware.RequestIDKey, "req-1")
	return c, w
}

func TestBaseHandler_Success(t *testing.T) {
	c, w := newTestContext()
	h := &BaseHandler{}

	h.Success(c, gin.H{"value": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	resp, data := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.JSONEq(t, `{"value":1}`, string(data))
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "not found",
			err:        shared.NewDomainError(shared.CodeNotFound, "Journal entry not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   shared.CodeNotFound,
			wantMsg:    "Journal entry not found",
		},
		{
			name:       "unbalanced",
			err:        shared.ErrUnbalancedEntry,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   shared.CodeUnbalancedEntry,
		},
		{
			name:       "unmapped",
			err:        shared.ErrUnmappedAccount,
			wantStatus: http.StatusConflict,
			wantCode:   shared.CodeUnmappedAccount,
		},
		{
			name:       "wrapped validation",
			err:        fmt.Errorf("void: %w", shared.NewDomainError(shared.CodeValidation, "reason is required")),
			wantStatus: http.StatusBadRequest,
			wantCode:   shared.CodeValidation,
			wantMsg:    "reason is required",
		},
		{
			name:       "plain error is hidden",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   shared.CodeInternal,
			wantMsg:    "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext()
			h := &BaseHandler{}

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp, _ := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Error.Message)
			}
			assert.Len(t, c.Errors, 1)
		})
	}
}

func TestBaseHandler_HandleError_Nil(t *testing.T) {
	c, w := newTestContext()
	h := &BaseHandler{}

	h.HandleError(c, nil)

	assert.Empty(t, c.Errors)
	assert.Equal(t, 0, w.Body.Len())
}

func TestBaseHandler_TenantID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("missing", func(t *testing.T) {
		c, w := newTestContext()
		_, ok := h.tenantID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeTenantRequired, resp.Error.Code)
	})

	t.Run("present", func(t *testing.T) {
		c, _ := newTestContext()
		tenantID := uuid.New()
		c.Set(middleware.TenantIDKey, tenantID)
		got, ok := h.tenantID(c)
		assert.True(t, ok)
		assert.Equal(t, tenantID, got)
	})
}

func TestBaseHandler_PathID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid", func(t *testing.T) {
		c, _ := newTestContext()
		id := uuid.New()
		c.Params = gin.Params{{Key: "id", Value: id.String()}}
		got, ok := h.pathID(c)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("not a uuid", func(t *testing.T) {
		c, w := newTestContext()
		c.Params = gin.Params{{Key: "id", Value: "je-42"}}
		_, ok := h.pathID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decodeResponse(t, w)
		assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	})
}
