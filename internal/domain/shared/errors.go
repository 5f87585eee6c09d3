// Package shared contains common domain types, errors and events that are used
// across the domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrNotFound marks a reference to a record that does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists marks a uniqueness violation (conflict).
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrValidation marks input outside the domain constraints.
	ErrValidation = errors.New("validation error")

	// ErrStorage marks a failure of the underlying store (I/O, driver, constraint we did not map).
	ErrStorage = errors.New("storage error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "grade", "store"
	Op      string // Operation that failed, e.g., "Create", "AddGrades"
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

// Is implements errors.Is() matching against both the kind and the cause.
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

// Validation builds a validation error for the given operation.
func Validation(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// Storage wraps a store failure.
func Storage(op string, err error) *DomainError {
	return WrapError("store", op, ErrStorage, "storage failure", err)
}

// Student domain errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "roll number already exists")
	ErrEmptyName            = NewDomainError("student", "Validate", ErrValidation, "name cannot be empty")
	ErrEmptyRollNumber      = NewDomainError("student", "Validate", ErrValidation, "roll number cannot be empty")
	ErrNameTooLong          = NewDomainError("student", "Validate", ErrValidation, "name is too long")
	ErrRollNumberTooLong    = NewDomainError("student", "Validate", ErrValidation, "roll number is too long")
	ErrInvalidRollNumber    = NewDomainError("student", "Validate", ErrValidation, "roll number cannot contain '/'")
)

// Grade domain errors
var (
	ErrScoreOutOfRange = NewDomainError("grade", "Validate", ErrValidation, "grade must be between 0 and 100")
	ErrEmptySubject    = NewDomainError("grade", "Validate", ErrValidation, "subject cannot be empty")
	ErrMalformedEntry  = NewDomainError("grade", "Parse", ErrValidation, "invalid format, use subject=score")
	ErrSubjectTooLong  = NewDomainError("grade", "Validate", ErrValidation, "subject is too long")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsStorage checks if the error came from the underlying store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
