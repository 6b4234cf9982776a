package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	// ErrNotFound covers unknown batch ids on status, result and export
	// queries. It is a non-fatal "no such batch" answer, not a failure.
	ErrNotFound = errors.New("batch not found")

	// ErrDuplicateBatch is an id collision at submit time. The batch is
	// never created.
	ErrDuplicateBatch = errors.New("batch id already exists")

	// ErrAlreadyTerminal means a file outcome was recorded twice for the
	// same (batch, index). Normal flow never triggers it; it marks a
	// programming-contract violation and must be reported, not swallowed.
	ErrAlreadyTerminal = errors.New("file outcome already recorded")

	// ErrInvalidTransition means a batch state change would move backwards
	// or off the allowed edges.
	ErrInvalidTransition = errors.New("invalid batch transition")

	// ErrValidation covers a bad submission shape; the batch is never
	// created.
	ErrValidation = errors.New("validation failed")

	// ErrReadOnlyBatch means a mutation was attempted against a batch that
	// only exists as a recovered snapshot after a restart.
	ErrReadOnlyBatch = errors.New("batch recovered from snapshot is read-only")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
