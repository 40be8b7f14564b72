package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for propagation and transport mapping
type ErrorKind string

const (
	KindValidation     ErrorKind = "VALIDATION"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindBusinessRule   ErrorKind = "BUSINESS_RULE"
	KindConcurrency    ErrorKind = "CONCURRENCY"
	KindInfrastructure ErrorKind = "INFRASTRUCTURE"
)

// DomainError represents a domain-level error.
// Code is stable and machine-readable; Message is safe to show to callers.
type DomainError struct {
	Kind    ErrorKind         `json:"kind"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches domain errors by code so that sentinel comparisons work
// with errors.Is regardless of message or details.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *DomainError) WithDetail(key, value string) *DomainError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// NewDomainError creates a new business rule error with the given code
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    KindBusinessRule,
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports malformed input
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Kind: KindValidation, Code: code, Message: message}
}

// NewNotFoundError reports an entity that is absent or outside the caller's tenant.
// The two cases are deliberately indistinguishable.
func NewNotFoundError(entity string) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: entity + " not found or access denied",
	}
}

// NewBusinessRuleViolation reports an operation that breaks a domain rule
func NewBusinessRuleViolation(code, message string) *DomainError {
	return &DomainError{Kind: KindBusinessRule, Code: code, Message: message}
}

// NewConcurrencyConflict reports a lost update detected at save time
func NewConcurrencyConflict(entity string) *DomainError {
	return &DomainError{
		Kind:    KindConcurrency,
		Code:    CodeConcurrencyConflict,
		Message: entity + " was modified by another process",
	}
}

// NewInfrastructureError wraps a storage or transport failure
func NewInfrastructureError(err error) *DomainError {
	return &DomainError{
		Kind:    KindInfrastructure,
		Code:    CodeInfrastructure,
		Message: "infrastructure failure",
		Err:     err,
	}
}

// KindOf classifies any error. Errors that are not DomainErrors are
// treated as infrastructure failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		if de.Kind == "" {
			return KindBusinessRule
		}
		return de.Kind
	}
	return KindInfrastructure
}

// AsDomainError extracts a DomainError, wrapping unknown errors as infrastructure
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return NewInfrastructureError(err)
}

// Error codes shared across bounded contexts
const (
	CodeNotFound            = "NOT_FOUND"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeInfrastructure      = "INFRASTRUCTURE_ERROR"
	CodeTimeout             = "TIMEOUT"
	CodeCancelled           = "CANCELLED"
)

// Sentinels for errors.Is; matching is by code
var (
	ErrNotFound            = NewNotFoundError("resource")
	ErrConcurrencyConflict = NewConcurrencyConflict("resource")
)
