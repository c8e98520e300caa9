package errors

import (
	"errors"
	"fmt"
)

var (
	// Token errors (local, detected before any provider call)
	ErrMissingToken  = errors.New("payment token missing")
	ErrInvalidFormat = errors.New("payment token has invalid format")

	// Provider errors
	ErrTransport           = errors.New("provider unreachable")
	ErrTokenNotFound       = errors.New("token not found at provider")
	ErrAuthKeyMismatch     = errors.New("provider auth key mismatch")
	ErrMalformedResponse   = errors.New("provider response unparseable")
	ErrUnexpectedStatus    = errors.New("unexpected provider status")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrGatewayDisabled     = errors.New("payment gateway disabled")

	// Reconciliation errors
	ErrRateLimited       = errors.New("too many callback attempts")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOwnershipMismatch = errors.New("order belongs to a different user")
	ErrAmountMismatch    = errors.New("payment amount does not match order total")
	ErrAlreadyProcessed  = errors.New("order already processed")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
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

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ProviderStatusError carries the raw status and body of an unexpected
// provider response for diagnostics. It unwraps to ErrUnexpectedStatus.
type ProviderStatusError struct {
	StatusCode int
	Body       string
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("unexpected provider status %d", e.StatusCode)
}

func (e *ProviderStatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// NewProviderStatusError creates a ProviderStatusError, truncating the
// body so diagnostic payloads stay bounded.
func NewProviderStatusError(status int, body []byte) *ProviderStatusError {
	const maxBody = 512
	b := string(body)
	if len(b) > maxBody {
		b = b[:maxBody]
	}
	return &ProviderStatusError{StatusCode: status, Body: b}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
