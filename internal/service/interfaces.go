// Package service defines the interfaces shared between the review workflow
// and its persistence layer.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/pouchspec/internal/model"
)

// ReviewReader reads tasks and audit logs. Every method returns copies; the
// caller may modify them freely.
type ReviewReader interface {
	// GetTask returns common.ErrNotFound (wrapped) when no task has the id.
	GetTask(ctx context.Context, id string) (*model.ReviewTask, error)
	// FindOpenTask returns the pending or needs_info task for a source file,
	// or common.ErrNotFound (wrapped) when there is none.
	FindOpenTask(ctx context.Context, sourceFileID string) (*model.ReviewTask, error)
	// ListTasks returns matching tasks, newest first.
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.ReviewTask, error)
	// ListReviewLogs returns review log entries in append order. An empty
	// taskID lists every entry.
	ListReviewLogs(ctx context.Context, taskID string) ([]model.ReviewLog, error)
	// ListExtractionLogs returns extraction log entries in append order. An
	// empty sourceFileID lists every entry.
	ListExtractionLogs(ctx context.Context, sourceFileID string) ([]model.ExtractionLog, error)
}

// ReviewWriter mutates tasks and appends to the audit logs. Log entries can
// never be changed or removed once appended.
type ReviewWriter interface {
	// CreateTask inserts a new task. A second open task for the same source
	// file fails with a *common.StateError wrapping common.ErrDuplicateOpenTask.
	CreateTask(ctx context.Context, task *model.ReviewTask) error
	// UpdateTask replaces a stored task if its revision still equals
	// expectedRevision, then sets task.Revision to expectedRevision+1. A stale
	// revision fails with a *common.StateError wrapping
	// common.ErrConcurrentModification.
	UpdateTask(ctx context.Context, task *model.ReviewTask, expectedRevision int) error
	AppendReviewLog(ctx context.Context, entry *model.ReviewLog) error
	AppendExtractionLog(ctx context.Context, entry *model.ExtractionLog) error
}

// ReviewStore is the persistence contract of the review workflow. Writes made
// directly on the store are individually atomic; BeginTx groups several.
type ReviewStore interface {
	ReviewReader
	ReviewWriter
	BeginTx(ctx context.Context) (ReviewTx, error)
	Close() error
}

// ReviewTx is a unit of work. Reads inside the transaction see its own writes.
// Commit and Rollback may each be called after the other; the second call is
// a no-op.
type ReviewTx interface {
	ReviewReader
	ReviewWriter
	Commit() error
	Rollback() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
