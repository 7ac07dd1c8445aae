package errorutil

import (
	"errors"
	"fmt"
	"net/http"
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
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewDuplicateAccount() error {
	return NewDomainError("DUPLICATE_ACCOUNT", "email already registered", http.StatusBadRequest, nil)
}

func NewNoCredentials() error {
	return NewDomainError("NO_CREDENTIALS", "authentication required", http.StatusUnauthorized, nil)
}

func NewAuthenticationFailed() error {
	return NewDomainError("AUTHENTICATION_FAILED", "authentication failed", http.StatusUnauthorized, nil)
}

func NewAccountNotVerified() error {
	return NewDomainError("ACCOUNT_NOT_VERIFIED", "account not verified, please verify your email", http.StatusUnauthorized, nil)
}

func NewSessionStale() error {
	return NewDomainError("SESSION_STALE", "password has been changed recently, please log in again", http.StatusUnauthorized, nil)
}

func NewAlreadyVerified() error {
	return NewDomainError("ALREADY_VERIFIED", "account is already verified", http.StatusBadRequest, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewRateLimited(retryAfterSeconds int) error {
	return NewDomainError("RATE_LIMITED", "too many requests, try again later",
		http.StatusTooManyRequests, map[string]any{"retry_after": retryAfterSeconds})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError. Unexpected internal
// failures are collapsed into a generic 500 with detail kept for logging
// only.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
