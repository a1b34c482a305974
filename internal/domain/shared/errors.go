// Package shared contains the error taxonomy used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, checked with errors.Is().
var (
	// ErrAccessDenied means the caller's tenant cannot reach the target.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound means the entity is absent (or hidden from the caller).
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput covers out-of-range thresholds, negative counts and missing ids.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageFailure wraps any failure of the underlying store or cache.
	ErrStorageFailure = errors.New("storage failure")

	// ErrAlreadyExists is reported by adapters on unique-key conflicts.
	ErrAlreadyExists = errors.New("entity already exists")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "progress", "alert", "preference"
	Op      string // operation that failed, e.g. "TopicProgress"
	Kind    error  // base kind for errors.Is() checking
	Message string
	Err     error // underlying error (optional)
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

// Is matches the error kind as well as anything in the wrapped chain.
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

// StorageFailure wraps a store/cache error. Errors that already carry a
// domain kind (not found, already exists) pass through unchanged.
func StorageFailure(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsAlreadyExists(err) || IsStorageFailure(err) {
		return err
	}
	return WrapError(domain, op, ErrStorageFailure, "store call failed", err)
}

// InvalidInput builds an InvalidInput error.
func InvalidInput(domain, op, message string) error {
	return NewDomainError(domain, op, ErrInvalidInput, message)
}

// Progress domain errors.
var (
	ErrStudentNotFound    = NewDomainError("progress", "Find", ErrNotFound, "student not found")
	ErrTopicNotFound      = NewDomainError("progress", "Find", ErrNotFound, "topic not found")
	ErrLessonNotFound     = NewDomainError("progress", "Find", ErrNotFound, "lesson not found")
	ErrAssignmentNotFound = NewDomainError("progress", "Find", ErrNotFound, "assignment not found")
	ErrStudentNotInTenant = NewDomainError("progress", "Authorize", ErrAccessDenied, "student does not belong to caller")
	ErrNegativeCount      = NewDomainError("progress", "Validate", ErrInvalidInput, "counts must be non-negative")
)

// Alert domain errors.
var (
	ErrAlertNotFound      = NewDomainError("alert", "Find", ErrNotFound, "alert not found")
	ErrAlertAlreadyExists = NewDomainError("alert", "Create", ErrAlreadyExists, "unresolved alert already exists for key")
	ErrAlertNotInTenant   = NewDomainError("alert", "Authorize", ErrAccessDenied, "alert does not belong to caller")
)

// Preference domain errors.
var (
	ErrPreferenceNotFound  = NewDomainError("preference", "Find", ErrNotFound, "preference not set")
	ErrThresholdOutOfRange = NewDomainError("preference", "Validate", ErrInvalidInput, "threshold must be between 0 and 100")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied checks if the error is an authorization failure.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsInvalidInput checks if the error is a validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsStorageFailure checks if the error came from the store or cache.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// IsAlreadyExists checks if the error is a unique-key conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
