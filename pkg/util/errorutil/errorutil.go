package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the pipeline and the API surface.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicate          = "DUPLICATE"
	CodeCollaboratorFailed = "COLLABORATOR_FAILED"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError reports a malformed input that must not reach the store.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

// NewNotFound reports a missing upstream record.
func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewDuplicate reports an already-present record. Stages treat this as an
// idempotent skip, never as a failure.
func NewDuplicate(resource string, details map[string]any) error {
	return &DomainError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s already exists", resource),
		HTTPStatus: http.StatusConflict,
		Details:    details,
	}
}

// NewCollaboratorError reports a failed call to an external collaborator
// (classifier, retrieval, sink).
func NewCollaboratorError(name string, err error) error {
	return &DomainError{
		Code:       CodeCollaboratorFailed,
		Message:    fmt.Sprintf("%s call failed", name),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewStoreError reports an unreachable or failing persistence layer.
func NewStoreError(err error) error {
	return &DomainError{
		Code:       CodeStoreUnavailable,
		Message:    "persistence layer unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the DomainError code, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) string {
	return ToDomainError(err).Code
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsDuplicate reports whether err is a DUPLICATE domain error.
func IsDuplicate(err error) bool { return hasCode(err, CodeDuplicate) }

// IsValidation reports whether err is a VALIDATION_FAILED domain error.
func IsValidation(err error) bool { return hasCode(err, CodeValidationFailed) }

// IsStoreUnavailable reports whether err is a STORE_UNAVAILABLE domain error.
func IsStoreUnavailable(err error) bool { return hasCode(err, CodeStoreUnavailable) }

// IsRetryable reports whether the failure class is worth retrying: transient
// collaborator or store failures. Validation and not-found errors are not.
func IsRetryable(err error) bool {
	return hasCode(err, CodeCollaboratorFailed) || hasCode(err, CodeStoreUnavailable)
}
