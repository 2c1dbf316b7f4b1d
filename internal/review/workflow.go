// Package review routes extraction results into a human-review cycle and
// keeps the append-only audit trail of everything that happens to a task.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/metrics"
	"github.com/Veraticus/pouchspec/internal/model"
	"github.com/Veraticus/pouchspec/internal/service"
)

// SystemActor is recorded on entries written by the workflow itself.
const SystemActor = "system"

// Workflow is the review gatekeeper and state machine. It is safe for
// concurrent use; every mutation runs in a single store transaction together
// with its audit entry.
type Workflow struct {
	store     service.ReviewStore
	now       func() time.Time
	newID     func() string
	metrics   *metrics.Metrics
	retry     service.RetryOptions
	threshold float64
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithThreshold sets the overall confidence below which a review is opened.
func WithThreshold(threshold float64) Option {
	return func(w *Workflow) {
		w.threshold = threshold
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// WithIDGenerator replaces the task and log id generator.
func WithIDGenerator(newID func() string) Option {
	return func(w *Workflow) {
		w.newID = newID
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithRetry sets the retry policy for transactions that fail with a
// retryable storage error.
func WithRetry(opts service.RetryOptions) Option {
	return func(w *Workflow) {
		w.retry = opts
	}
}

// LogOptions carries the extraction details that are not part of the result.
type LogOptions struct {
	Actor          string
	ProcessingTime time.Duration
}

// New creates a workflow over store.
func New(store service.ReviewStore, opts ...Option) (*Workflow, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: review store is required", common.ErrMissingConfig)
	}

	w := &Workflow{
		store:     store,
		now:       time.Now,
		newID:     uuid.NewString,
		threshold: model.DefaultReviewThreshold,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.threshold < 0 || w.threshold > 1 {
		return nil, fmt.Errorf("%w: review threshold %.2f outside [0,1]", common.ErrInvalidConfig, w.threshold)
	}
	return w, nil
}

// Threshold returns the review threshold in use.
func (w *Workflow) Threshold() float64 {
	return w.threshold
}

// NeedsReview reports whether a result must go to a human before it is used.
func (w *Workflow) NeedsReview(result model.ExtractionResult) bool {
	return result.Specifications.OverallConfidence.Value < w.threshold || !result.Validation.IsValid
}

// ReasonFor explains why a result needs review.
func ReasonFor(result model.ExtractionResult) model.ReviewReason {
	switch {
	case result.Validation.HasCode(model.IssueInsufficientData):
		return model.ReasonInsufficientData
	case !result.Validation.IsValid:
		return model.ReasonValidationFailed
	default:
		return model.ReasonLowConfidence
	}
}

// CreateReviewTask opens a pending task for the source file of specs, or
// returns the task that is already open for it. created reports which.
func (w *Workflow) CreateReviewTask(ctx context.Context, specs model.ProductSpecifications, reason model.ReviewReason) (task *model.ReviewTask, created bool, err error) {
	err = w.inTx(ctx, func(tx service.ReviewTx) error {
		task, created, err = w.openOrReuse(ctx, tx, specs, reason)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	w.recordOpen(task, created)
	return task, created, nil
}

// CreateReviewForLowConfidence is the gatekeeper. It opens or reuses a task
// when the result needs review and returns nil when it can be used as is.
// Either way exactly one extraction log entry is appended.
func (w *Workflow) CreateReviewForLowConfidence(ctx context.Context, result model.ExtractionResult, opts LogOptions) (*model.ReviewTask, error) {
	needsReview := w.NeedsReview(result)

	var (
		task    *model.ReviewTask
		created bool
		outcome model.ExtractionOutcome
	)
	err := w.inTx(ctx, func(tx service.ReviewTx) error {
		task, created, outcome = nil, false, model.OutcomeAutoApproved
		if needsReview {
			var err error
			task, created, err = w.openOrReuse(ctx, tx, result.Specifications, ReasonFor(result))
			if err != nil {
				return err
			}
			outcome = model.OutcomeReviewReused
			if created {
				outcome = model.OutcomeReviewCreated
			}
		}
		taskID := ""
		if task != nil {
			taskID = task.ID
		}
		return tx.AppendExtractionLog(ctx, w.extractionEntry(result, opts, outcome, taskID))
	})
	if err != nil {
		return nil, err
	}

	w.metrics.RecordExtraction(outcome, result.Specifications.OverallConfidence.Value, opts.ProcessingTime.Seconds())
	if task != nil {
		w.recordOpen(task, created)
	}
	slog.Debug("Extraction routed",
		"source_file_id", result.Specifications.SourceFileID,
		"confidence", result.Specifications.OverallConfidence.Value,
		"outcome", outcome)
	return task, nil
}

// LogExtraction appends an extraction entry without routing the result.
func (w *Workflow) LogExtraction(ctx context.Context, result model.ExtractionResult, opts LogOptions) error {
	err := w.inTx(ctx, func(tx service.ReviewTx) error {
		return tx.AppendExtractionLog(ctx, w.extractionEntry(result, opts, model.OutcomeLogged, ""))
	})
	if err != nil {
		return err
	}
	w.metrics.RecordExtraction(model.OutcomeLogged, result.Specifications.OverallConfidence.Value, opts.ProcessingTime.Seconds())
	return nil
}

// ProcessReviewDecision applies a reviewer decision to a pending task.
func (w *Workflow) ProcessReviewDecision(ctx context.Context, taskID string, decision model.ReviewDecision) (*model.ReviewTask, error) {
	if err := validateDecision(taskID, decision); err != nil {
		return nil, err
	}
	next, action, err := decisionOutcome(decision.Decision)
	if err != nil {
		return nil, err
	}

	var task *model.ReviewTask
	err = w.inTx(ctx, func(tx service.ReviewTx) error {
		var err error
		task, err = w.loadTask(ctx, tx, taskID, "process review decision")
		if err != nil {
			return err
		}
		if err := requireTransition(task, next, string(decision.Decision)); err != nil {
			return err
		}

		at := decision.Timestamp
		if at.IsZero() {
			at = w.now()
		}
		before := task.Status
		expected := task.Revision

		edited := false
		switch next {
		case model.ReviewApproved:
			final := task.ProposedSpecifications.Clone()
			if decision.EditedSpecifications != nil {
				final = decision.EditedSpecifications.Clone()
				if final.SourceFileID == "" {
					final.SourceFileID = task.SourceFileID
				}
				if final.SourceFileID != task.SourceFileID {
					return fmt.Errorf("%w: edited specifications belong to %s, task %s is for %s",
						common.ErrInvalidDecision, final.SourceFileID, task.ID, task.SourceFileID)
				}
				edited = true
			}
			task.FinalizedSpecifications = &final
			task.ResolvedAt = &at
		case model.ReviewRejected:
			task.FinalizedSpecifications = nil
			task.ResolvedAt = &at
		}
		task.Status = next
		task.Reviewer = decision.Reviewer
		task.UpdatedAt = at

		if err := tx.UpdateTask(ctx, task, expected); err != nil {
			return err
		}
		return tx.AppendReviewLog(ctx, &model.ReviewLog{
			ID:            w.newID(),
			CorrelationID: task.SourceFileID,
			TaskID:        task.ID,
			Action:        action,
			Actor:         decision.Reviewer,
			Timestamp:     at,
			Payload: model.ReviewPayload{
				BeforeStatus: before,
				AfterStatus:  next,
				Decision:     decision.Decision,
				Reason:       decision.Reason,
				Edited:       edited,
				Confidence:   task.Confidence,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	w.metrics.RecordDecision(decision.Decision)
	slog.Info("Review decision recorded",
		"task_id", task.ID,
		"source_file_id", task.SourceFileID,
		"decision", decision.Decision,
		"reviewer", decision.Reviewer)
	return task, nil
}

// ResumeReview moves a needs_info task back to pending.
func (w *Workflow) ResumeReview(ctx context.Context, taskID, actor, note string) (*model.ReviewTask, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", common.ErrInvalidDecision)
	}
	return w.mutate(ctx, taskID, "resume review", func(task *model.ReviewTask, at time.Time) (*model.ReviewLog, error) {
		if err := requireTransition(task, model.ReviewPending, "resume"); err != nil {
			return nil, err
		}
		task.Status = model.ReviewPending
		return &model.ReviewLog{
			Action: model.ActionResumed,
			Actor:  actor,
			Payload: model.ReviewPayload{
				BeforeStatus: model.ReviewNeedsInfo,
				AfterStatus:  model.ReviewPending,
				Comment:      note,
			},
		}, nil
	})
}

// AddReviewComment appends a comment to an open task without changing its status.
func (w *Workflow) AddReviewComment(ctx context.Context, taskID string, comment model.Comment) (*model.ReviewTask, error) {
	if strings.TrimSpace(comment.Body) == "" {
		return nil, fmt.Errorf("%w: comment body is empty", common.ErrInvalidInput)
	}
	return w.mutate(ctx, taskID, "add review comment", func(task *model.ReviewTask, at time.Time) (*model.ReviewLog, error) {
		if err := requireOpen(task, "comment"); err != nil {
			return nil, err
		}
		if comment.CreatedAt.IsZero() {
			comment.CreatedAt = at
		}
		task.Comments = append(task.Comments, comment)
		return &model.ReviewLog{
			Action: model.ActionCommented,
			Actor:  comment.Author,
			Payload: model.ReviewPayload{
				BeforeStatus: task.Status,
				AfterStatus:  task.Status,
				Comment:      comment.Body,
			},
		}, nil
	})
}

// AssignReviewTask hands an open task to assignee. An empty assignee unassigns it.
func (w *Workflow) AssignReviewTask(ctx context.Context, taskID, assignee, actor string) (*model.ReviewTask, error) {
	return w.mutate(ctx, taskID, "assign review task", func(task *model.ReviewTask, _ time.Time) (*model.ReviewLog, error) {
		if err := requireOpen(task, "assign"); err != nil {
			return nil, err
		}
		task.AssignedTo = strings.TrimSpace(assignee)
		return &model.ReviewLog{
			Action: model.ActionAssigned,
			Actor:  actor,
			Payload: model.ReviewPayload{
				BeforeStatus: task.Status,
				AfterStatus:  task.Status,
				AssignedTo:   task.AssignedTo,
			},
		}, nil
	})
}

// GetReviewTask returns the task with id.
func (w *Workflow) GetReviewTask(ctx context.Context, id string) (*model.ReviewTask, error) {
	return w.store.GetTask(ctx, id)
}

// GetReviewTasks lists tasks matching filter, newest first.
func (w *Workflow) GetReviewTasks(ctx context.Context, filter model.TaskFilter) ([]model.ReviewTask, error) {
	return w.store.ListTasks(ctx, filter)
}

// GetReviewLogs returns the audit trail of one task in append order.
func (w *Workflow) GetReviewLogs(ctx context.Context, taskID string) ([]model.ReviewLog, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: task id is required", common.ErrInvalidInput)
	}
	return w.store.ListReviewLogs(ctx, taskID)
}

// GetAllReviewLogs returns every review log entry in append order.
func (w *Workflow) GetAllReviewLogs(ctx context.Context) ([]model.ReviewLog, error) {
	return w.store.ListReviewLogs(ctx, "")
}

// GetExtractionLogs returns extraction entries for a source file, or all of
// them when sourceFileID is empty.
func (w *Workflow) GetExtractionLogs(ctx context.Context, sourceFileID string) ([]model.ExtractionLog, error) {
	return w.store.ListExtractionLogs(ctx, sourceFileID)
}

// FinalizedSpecifications returns the authoritative specifications of an
// approved task.
func (w *Workflow) FinalizedSpecifications(ctx context.Context, taskID string) (*model.ProductSpecifications, error) {
	task, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.ReviewApproved || task.FinalizedSpecifications == nil {
		return nil, common.NewStateError(task.ID, string(task.Status), "read finalized specifications")
	}
	return task.FinalizedSpecifications, nil
}

// mutate loads a task, applies fn, stores it, and appends the entry fn
// returns, all in one transaction. fn fills in the action-specific fields of
// the entry; ids, correlation and timestamp are set here.
func (w *Workflow) mutate(ctx context.Context, taskID, op string, fn func(*model.ReviewTask, time.Time) (*model.ReviewLog, error)) (*model.ReviewTask, error) {
	var task *model.ReviewTask
	err := w.inTx(ctx, func(tx service.ReviewTx) error {
		var err error
		task, err = w.loadTask(ctx, tx, taskID, op)
		if err != nil {
			return err
		}

		at := w.now()
		expected := task.Revision
		entry, err := fn(task, at)
		if err != nil {
			return err
		}
		task.UpdatedAt = at

		if err := tx.UpdateTask(ctx, task, expected); err != nil {
			return err
		}

		entry.ID = w.newID()
		entry.CorrelationID = task.SourceFileID
		entry.TaskID = task.ID
		entry.Timestamp = at
		entry.Payload.Confidence = task.Confidence
		if entry.Actor == "" {
			entry.Actor = SystemActor
		}
		return tx.AppendReviewLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Review task updated", "task_id", task.ID, "operation", op, "status", task.Status)
	return task, nil
}

// openOrReuse is the check-and-create step. It must run inside a transaction
// so two concurrent callers cannot both create a task.
func (w *Workflow) openOrReuse(ctx context.Context, tx service.ReviewTx, specs model.ProductSpecifications, reason model.ReviewReason) (*model.ReviewTask, bool, error) {
	sourceFileID := strings.TrimSpace(specs.SourceFileID)
	if sourceFileID == "" {
		return nil, false, fmt.Errorf("%w: specifications carry no source file id", common.ErrInvalidInput)
	}

	at := w.now()
	existing, err := tx.FindOpenTask(ctx, sourceFileID)
	switch {
	case err == nil:
		entry := &model.ReviewLog{
			ID:            w.newID(),
			CorrelationID: sourceFileID,
			TaskID:        existing.ID,
			Action:        model.ActionTaskReused,
			Actor:         SystemActor,
			Timestamp:     at,
			Payload: model.ReviewPayload{
				BeforeStatus: existing.Status,
				AfterStatus:  existing.Status,
				Reason:       string(reason),
				Confidence:   specs.OverallConfidence.Value,
			},
		}
		if err := tx.AppendReviewLog(ctx, entry); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, false, err
	}

	task := &model.ReviewTask{
		ID:                     w.newID(),
		SourceFileID:           sourceFileID,
		SourceVersion:          specs.SourceVersion,
		ProposedSpecifications: specs.Clone(),
		Status:                 model.ReviewPending,
		Reason:                 reason,
		Confidence:             model.Clamp01(specs.OverallConfidence.Value),
		CreatedAt:              at,
		UpdatedAt:              at,
	}
	if err := tx.CreateTask(ctx, task); err != nil {
		return nil, false, err
	}

	entry := &model.ReviewLog{
		ID:            w.newID(),
		CorrelationID: sourceFileID,
		TaskID:        task.ID,
		Action:        model.ActionTaskCreated,
		Actor:         SystemActor,
		Timestamp:     at,
		Payload: model.ReviewPayload{
			AfterStatus: model.ReviewPending,
			Reason:      string(reason),
			Confidence:  task.Confidence,
		},
	}
	if err := tx.AppendReviewLog(ctx, entry); err != nil {
		return nil, false, err
	}
	return task, true, nil
}

func (w *Workflow) loadTask(ctx context.Context, tx service.ReviewTx, taskID, op string) (*model.ReviewTask, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("%w: task id is required", common.ErrInvalidInput)
	}
	task, err := tx.GetTask(ctx, taskID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewDataIntegrityError(op, err)
	}
	return task, err
}

func (w *Workflow) extractionEntry(result model.ExtractionResult, opts LogOptions, outcome model.ExtractionOutcome, taskID string) *model.ExtractionLog {
	specs := result.Specifications
	actor := opts.Actor
	if actor == "" {
		actor = SystemActor
	}
	return &model.ExtractionLog{
		ID:            w.newID(),
		CorrelationID: specs.SourceFileID,
		Action:        model.ActionExtraction,
		Actor:         actor,
		Timestamp:     w.now(),
		Payload: model.ExtractionPayload{
			SourceFileID:   specs.SourceFileID,
			SourceVersion:  specs.SourceVersion,
			PouchType:      specs.PouchType,
			Confidence:     specs.OverallConfidence.Value,
			Level:          specs.OverallConfidence.Level,
			IsValid:        result.Validation.IsValid,
			ErrorCount:     len(result.Validation.Errors),
			WarningCount:   len(result.Validation.Warnings),
			Outcome:        outcome,
			TaskID:         taskID,
			ProcessingTime: opts.ProcessingTime,
		},
	}
}

func (w *Workflow) recordOpen(task *model.ReviewTask, created bool) {
	if created {
		w.metrics.RecordTaskCreated(task.Reason)
		slog.Info("Review task created",
			"task_id", task.ID,
			"source_file_id", task.SourceFileID,
			"reason", task.Reason,
			"confidence", task.Confidence)
		return
	}
	w.metrics.RecordTaskReused()
	slog.Info("Reusing open review task", "task_id", task.ID, "source_file_id", task.SourceFileID)
}

// inTx runs fn in a transaction, retrying when the store reports a
// retryable failure such as a busy database.
func (w *Workflow) inTx(ctx context.Context, fn func(service.ReviewTx) error) error {
	return common.WithRetry(ctx, func() error {
		tx, err := w.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	}, w.retry)
}

func validateDecision(taskID string, d model.ReviewDecision) error {
	if strings.TrimSpace(taskID) == "" {
		return fmt.Errorf("%w: task id is required", common.ErrInvalidDecision)
	}
	if d.TaskID != "" && d.TaskID != taskID {
		return fmt.Errorf("%w: decision is for task %s, not %s", common.ErrInvalidDecision, d.TaskID, taskID)
	}
	if strings.TrimSpace(d.Reviewer) == "" {
		return fmt.Errorf("%w: reviewer is required", common.ErrInvalidDecision)
	}
	if d.EditedSpecifications != nil && d.Decision != model.DecisionApprove {
		return fmt.Errorf("%w: edited specifications are only accepted with approve", common.ErrInvalidDecision)
	}
	return nil
}
