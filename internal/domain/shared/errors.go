// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Upstream errors
	ErrFetch   = errors.New("upstream fetch failed")
	ErrTimeout = errors.New("operation timeout")

	// Outbound errors
	ErrDispatch = errors.New("dispatch failed")

	// Query errors
	ErrUnknownCourse = errors.New("unknown course")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "subscription", "canvas", "fanout"
	Op      string // Operation that failed, e.g., "Add", "ListAnnouncements"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Subscription domain errors
var (
	ErrSubscriptionNotFound = NewDomainError("subscription", "Remove", ErrNotFound, "subscription not found")
	ErrSubscriptionExists   = NewDomainError("subscription", "Add", ErrAlreadyExists, "subscription already exists")
)

// IsFetch checks if the error came from an upstream fetch.
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch) || errors.Is(err, ErrTimeout)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsDispatch checks if the error came from an outbound send.
func IsDispatch(err error) bool {
	return errors.Is(err, ErrDispatch)
}
