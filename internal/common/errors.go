// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Input errors. Only raised for malformed input documents, never for
	// well-formed documents that happen to carry little data.
	ErrInvalidInput = errors.New("invalid input")

	// Workflow errors.
	ErrIllegalTransition      = errors.New("illegal state transition")
	ErrDuplicateOpenTask      = errors.New("an open review task already exists for this source file")
	ErrConcurrentModification = errors.New("review task was modified concurrently")
	ErrInvalidDecision        = errors.New("invalid review decision")
	ErrDataIntegrity          = errors.New("data integrity violation")
	ErrResetDisabled          = errors.New("full reset is only available in test builds")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StateError reports an operation that is not allowed in the task's current
// state. Nothing is written when it is returned.
type StateError struct {
	Err       error
	TaskID    string
	From      string
	Attempted string
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("task %s: cannot %s while %s", e.TaskID, e.Attempted, e.From)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *StateError) Unwrap() error {
	if e.Err == nil {
		return ErrIllegalTransition
	}
	return e.Err
}

// NewStateError creates a StateError wrapping ErrIllegalTransition.
func NewStateError(taskID, from, attempted string) error {
	return &StateError{TaskID: taskID, From: from, Attempted: attempted, Err: ErrIllegalTransition}
}

// DataIntegrityError reports a reference to data that does not exist or is corrupted.
type DataIntegrityError struct {
	Err error
	Op  string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrDataIntegrity, e.Err)
}

func (e *DataIntegrityError) Unwrap() []error {
	return []error{ErrDataIntegrity, e.Err}
}

// NewDataIntegrityError creates a DataIntegrityError for op.
func NewDataIntegrityError(op string, err error) error {
	return &DataIntegrityError{Op: op, Err: err}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
