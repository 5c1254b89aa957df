package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidCategory           = NewDomainError(ErrCodeValidation, "invalid category")
	ErrInvalidSyncStrategy       = NewDomainError(ErrCodeValidation, "invalid sync strategy")
	ErrInvalidResolutionStrategy = NewDomainError(ErrCodeValidation, "invalid resolution strategy")
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrFileNotFound     = NewDomainError(ErrCodeNotFound, "knowledge file not found")
	ErrVersionNotFound  = NewDomainError(ErrCodeNotFound, "file version not found")
	ErrConflictNotFound = NewDomainError(ErrCodeNotFound, "conflict not found")
	ErrSyncRuleNotFound = NewDomainError(ErrCodeNotFound, "sync rule not found")
)

// Already exists errors
var (
	ErrFileAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge file already exists")
)

// Conflict-state errors. A pending conflict is a first-class outcome of the
// update path, not a failure; callers branch on these to drive the resolution
// workflow.
var (
	ErrVersionStale    = NewDomainError(ErrCodeConflict, "stored version has advanced past the version read")
	ErrUpdateConflicts = NewDomainError(ErrCodeConflict, "update conflicts with stored content")
)

// Operation errors
var (
	ErrConflictResolved = NewDomainError(ErrCodeInvalidOperation, "conflict has already been resolved")
	ErrFileInactive     = NewDomainError(ErrCodeInvalidOperation, "cannot modify a deactivated file")
	ErrCannotDeleteFile = NewDomainError(ErrCodeInvalidOperation, "files are deactivated, never deleted")
	ErrMergeNeedsAI     = NewDomainError(ErrCodeInvalidOperation, "merge resolution requires the completion provider")
	ErrSyncRuleInactive = NewDomainError(ErrCodeInvalidOperation, "sync rule is not active")
)
