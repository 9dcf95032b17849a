package dto

import (
	"net/http"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
)

// Error codes raised by the HTTP layer itself. Domain codes come from the
// shared package and pass through unchanged.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeTenantRequired   = "TENANT_REQUIRED"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeRouteNotFound    = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:               http.StatusBadRequest,
	shared.CodeNotFound:                 http.StatusNotFound,
	shared.CodeUnbalancedEntry:          http.StatusUnprocessableEntity,
	shared.CodeUnmappedAccount:          http.StatusConflict,
	shared.CodeRemapBatchPartialFailure: http.StatusMultiStatus,
	shared.CodeInternal:                 http.StatusInternalServerError,

	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeTenantRequired:   http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:      http.StatusTooManyRequests,
	ErrCodeRouteNotFound:    http.StatusNotFound,
	ErrCodeMethodNotAllowed: http.StatusMethodNotAllowed,
}

// GetHTTPStatus returns the HTTP status for an error code. Unknown codes,
// including DUPLICATE_EVENT and TENANT_MISMATCH when they escape a handler,
// are server errors.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
