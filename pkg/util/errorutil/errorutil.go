package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the client and the sandbox server.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
	CodeNetwork          = "NETWORK_ERROR"
	CodeTokenExpired     = "TOKEN_EXPIRED"
	CodeTokenMalformed   = "TOKEN_MALFORMED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeAPI              = "API_ERROR"
	CodeCircuitOpen      = "CIRCUIT_OPEN"
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

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewNetworkError reports a transport failure talking to the API.
func NewNetworkError(message string, err error) error {
	return &DomainError{Code: CodeNetwork, Message: message, Err: err}
}

// NewTokenExpired reports a stored credential past its exp claim.
func NewTokenExpired() error {
	return NewDomainError(CodeTokenExpired, "session expired, please log in again", http.StatusUnauthorized, nil)
}

// NewTokenMalformed reports a credential that cannot be decoded.
func NewTokenMalformed(err error) error {
	return &DomainError{Code: CodeTokenMalformed, Message: "malformed token", HTTPStatus: http.StatusUnauthorized, Err: err}
}

// NewPermissionDenied reports a local permission gate refusal.
func NewPermissionDenied(resource, action string) error {
	return NewDomainError(CodePermissionDenied,
		fmt.Sprintf("you do not have permission to %s %s", action, resource),
		http.StatusForbidden,
		map[string]any{"resource": resource, "action": action})
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
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err for handlers that return plain errors.
func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Message returns the human-readable part of err, suitable for display.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
