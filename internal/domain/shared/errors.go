// Package shared contains common domain errors used across the domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"strings"
)

// Base kinds, matched with errors.Is through any DomainError.
var (
	ErrNotFound           = errors.New("entity not found")
	ErrValidation         = errors.New("validation error")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// DomainError carries where an error happened and what kind it is.
type DomainError struct {
	Domain  string // "schedule", "feed", "change", "postgres"
	Op      string // operation that failed, e.g. "FindLesson"
	Kind    error  // sentinel the caller branches on
	Message string
	Err     error // cause, optional
}

// Error formats as "domain.op: message: cause".
func (e *DomainError) Error() string {
	var b strings.Builder
	b.WriteString(e.Domain)
	b.WriteByte('.')
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DomainError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
