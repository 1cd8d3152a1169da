package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Error codes surfaced to callers.
const (
	CodeValidation            = "VALIDATION_FAILED"
	CodeNotFound              = "NOT_FOUND"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeConflict              = "CONFLICT"
	CodeRateLimited           = "RATE_LIMITED"
	CodeAssignmentUnavailable = "ASSIGNMENT_UNAVAILABLE"
	CodeInternal              = "INTERNAL_ERROR"
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

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

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

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewAssignmentUnavailable reports that no assignee could be chosen. It wraps
// the directory failure, if any.
func NewAssignmentUnavailable(err error, details map[string]any) error {
	return &DomainError{
		Code:       CodeAssignmentUnavailable,
		Message:    "no assignee available",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    details,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError carrying code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
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
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		return NewNotFound("ticket", nil).(*DomainError)
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, pgx.ErrNoRows):
		return NewNotFound("resource", nil).(*DomainError)
	case errors.Is(err, domain.ErrPermissionDenied):
		return NewDomainError(CodePermissionDenied, err.Error(), http.StatusForbidden, nil)
	case errors.Is(err, domain.ErrEmailTaken):
		return NewDomainError(CodeConflict, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrInvalidRole),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus):
		return NewDomainError(CodeValidation, err.Error(), http.StatusBadRequest, nil)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

// FromStatus builds a DomainError for a bare HTTP status raised by the transport.
func FromStatus(status int, message string) *DomainError {
	return NewDomainError(codeForStatus(status), message, status, nil)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
