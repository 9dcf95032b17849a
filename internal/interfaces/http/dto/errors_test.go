package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeValidation, http.StatusBadRequest},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeUnbalancedEntry, http.StatusUnprocessableEntity},
		{shared.CodeUnmappedAccount, http.StatusConflict},
		{shared.CodeRemapBatchPartialFailure, http.StatusMultiStatus},
		{shared.CodeDuplicateEvent, http.StatusInternalServerError},
		{shared.CodeTenantMismatch, http.StatusInternalServerError},
		{shared.CodeInternal, http.StatusInternalServerError},
		{ErrCodeTenantRequired, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	t.Run("meta mirrors the page", func(t *testing.T) {
		resp := NewPageResponse(shared.NewPaginated([]string{"a", "b"}, 5, 1, 2))

		assert.True(t, resp.Success)
		assert.Equal(t, []string{"a", "b"}, resp.Data)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(5), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	})

	t.Run("empty page serialises an empty array", func(t *testing.T) {
		resp := NewPageResponse(shared.NewPaginated[string](nil, 0, 1, 20))

		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"data":[]`)
	})
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "tenderIds", Message: "This field is required"},
	})

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Len(t, resp.Error.Details, 1)
}

func TestListRequest_Filter(t *testing.T) {
	f := ListRequest{}.Filter()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 20, f.PageSize)
	assert.Equal(t, "desc", f.OrderDir)

	f = ListRequest{Page: 3, PageSize: 50, OrderDir: "asc"}.Filter()
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, 50, f.PageSize)
	assert.Equal(t, "asc", f.OrderDir)
}
