// Package storage provides the persistence layer for review tasks and the
// append-only audit logs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/pouchspec/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidStatus  = errors.New("invalid review status")
	ErrInvalidTask    = errors.New("invalid review task")
	ErrInvalidLogItem = errors.New("invalid log entry")
	ErrTxDone         = errors.New("transaction already committed or rolled back")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTask validates a review task before it is stored.
func validateTask(task *model.ReviewTask) error {
	if task == nil {
		return fmt.Errorf("%w: task", ErrNilParameter)
	}
	if strings.TrimSpace(task.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTask)
	}
	if strings.TrimSpace(task.SourceFileID) == "" {
		return fmt.Errorf("%w: missing source file ID", ErrInvalidTask)
	}
	if !task.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, task.Status)
	}
	if task.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrInvalidTask)
	}
	if task.Confidence < 0 || task.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTask)
	}
	if task.Status == model.ReviewApproved && task.FinalizedSpecifications == nil {
		return fmt.Errorf("%w: approved task without finalized specifications", ErrInvalidTask)
	}
	return nil
}

func validateReviewLog(entry *model.ReviewLog) error {
	if entry == nil {
		return fmt.Errorf("%w: review log", ErrNilParameter)
	}
	if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.TaskID) == "" {
		return fmt.Errorf("%w: review log needs an ID and a task ID", ErrInvalidLogItem)
	}
	if entry.Action == "" || entry.Timestamp.IsZero() {
		return fmt.Errorf("%w: review log needs an action and a timestamp", ErrInvalidLogItem)
	}
	return nil
}

func validateExtractionLog(entry *model.ExtractionLog) error {
	if entry == nil {
		return fmt.Errorf("%w: extraction log", ErrNilParameter)
	}
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("%w: extraction log needs an ID", ErrInvalidLogItem)
	}
	if entry.Action == "" || entry.Timestamp.IsZero() {
		return fmt.Errorf("%w: extraction log needs an action and a timestamp", ErrInvalidLogItem)
	}
	return nil
}
