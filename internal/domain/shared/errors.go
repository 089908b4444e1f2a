// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
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

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrPrecondition    = errors.New("precondition failed")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "course", "review"
	Op      string // Operation that failed, e.g., "Enroll", "ReportProgress"
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

// Detail derives an error of the same kind with a more specific message.
// errors.Is matches both the receiver and its kind.
func (e *DomainError) Detail(format string, args ...any) *DomainError {
	return &DomainError{
		Domain:  e.Domain,
		Op:      e.Op,
		Kind:    e,
		Message: fmt.Sprintf(format, args...),
	}
}

// Enrollment domain errors
var (
	ErrEnrollmentNotFound  = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrAlreadyEnrolled     = NewDomainError("enrollment", "Enroll", ErrAlreadyExists, "student is already enrolled in this course")
	ErrConcurrencyConflict = NewDomainError("enrollment", "Update", ErrConcurrentModification, "enrollment was modified concurrently")
	ErrEnrollmentInactive  = NewDomainError("enrollment", "ReportProgress", ErrInvalidState, "enrollment does not accept progress")
	ErrNotCompleted        = NewDomainError("enrollment", "IssueCertificate", ErrInvalidState, "enrollment is not completed")
	ErrInvalidTransition   = NewDomainError("enrollment", "ChangeStatus", ErrStateTransition, "status transition is not allowed")
	ErrInvalidStatus       = NewDomainError("enrollment", "Validate", ErrValidation, "unknown enrollment status")
	ErrNegativeMinutes     = NewDomainError("enrollment", "ReportProgress", ErrNegativeValue, "minutes spent cannot be negative")
	ErrInvalidPercentage   = NewDomainError("enrollment", "Validate", ErrValueOutOfRange, "percentage must be between 0 and 100")
)

// Course domain errors
var (
	ErrCourseNotFound     = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrLessonNotFound     = NewDomainError("course", "FindLesson", ErrNotFound, "lesson not found in course")
	ErrCourseNotAvailable = NewDomainError("course", "Enroll", ErrPrecondition, "course is not available for enrollment")
)

// Review domain errors
var (
	ErrReviewExists  = NewDomainError("review", "Submit", ErrAlreadyExists, "student has already reviewed this course")
	ErrNotEnrolled   = NewDomainError("review", "Submit", ErrNotFound, "student is not enrolled in this course")
	ErrInvalidRating = NewDomainError("review", "Validate", ErrValueOutOfRange, "rating must be between 1 and 5")
)

// User domain errors
var (
	ErrUserNotFound = NewDomainError("user", "Find", ErrNotFound, "user not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvalidState checks if the error rejects an operation because of lifecycle state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStateTransition)
}

// IsPrecondition checks if the error reports an unmet business precondition.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

// IsConflict checks if the error reports a lost optimistic update.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
