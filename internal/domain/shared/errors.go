package shared

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the posting engine.
const (
	CodeUnbalancedEntry          = "UNBALANCED_ENTRY"
	CodeUnmappedAccount          = "UNMAPPED_ACCOUNT"
	CodeDuplicateEvent           = "DUPLICATE_EVENT"
	CodeValidation               = "VALIDATION_ERROR"
	CodeNotFound                 = "NOT_FOUND"
	CodeRemapBatchPartialFailure = "REMAP_BATCH_PARTIAL_FAILURE"
	CodeTenantMismatch           = "TENANT_MISMATCH"
	CodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
	CodeInternal                 = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so errors.Is works
// against the sentinels below even when the message differs.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorf creates a domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// Common domain errors
var (
	ErrUnbalancedEntry          = NewDomainError(CodeUnbalancedEntry, "Journal entry is not balanced")
	ErrUnmappedAccount          = NewDomainError(CodeUnmappedAccount, "GL account could not be resolved")
	ErrDuplicateEvent           = NewDomainError(CodeDuplicateEvent, "Event already processed")
	ErrValidation               = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound                 = NewDomainError(CodeNotFound, "Resource not found")
	ErrRemapBatchPartialFailure = NewDomainError(CodeRemapBatchPartialFailure, "Remap batch completed with failures")
	ErrTenantMismatch           = NewDomainError(CodeTenantMismatch, "Resource belongs to another tenant")
	ErrConcurrencyConflict      = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// ErrorCode extracts the domain code from err, or "" when err is not a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNonFatal reports whether err is an expected outcome of at-least-once
// delivery that must not trigger a retry.
func IsNonFatal(err error) bool {
	switch ErrorCode(err) {
	case CodeDuplicateEvent, CodeUnmappedAccount:
		return true
	}
	return false
}
