package model

import (
	"slices"
	"time"
)

// ReviewStatus is the lifecycle state of a review task.
type ReviewStatus string

// Review status constants.
const (
	// ReviewPending is waiting for a reviewer decision.
	ReviewPending ReviewStatus = "pending"
	// ReviewApproved is terminal; the finalized specifications are authoritative.
	ReviewApproved ReviewStatus = "approved"
	// ReviewRejected is terminal; nothing is finalized.
	ReviewRejected ReviewStatus = "rejected"
	// ReviewNeedsInfo is waiting for more information before it can return to pending.
	ReviewNeedsInfo ReviewStatus = "needs_info"
)

// IsTerminal reports whether no further transition is allowed.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// IsValid reports whether s is a known status.
func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewNeedsInfo:
		return true
	default:
		return false
	}
}

// OpenStatuses are the non-terminal statuses.
var OpenStatuses = []ReviewStatus{ReviewPending, ReviewNeedsInfo}

// DecisionKind is what a reviewer decided.
type DecisionKind string

// Decision kinds.
const (
	DecisionApprove     DecisionKind = "approve"
	DecisionReject      DecisionKind = "reject"
	DecisionRequestInfo DecisionKind = "request_info"
)

// ReviewReason explains why a task was opened.
type ReviewReason string

// Review reasons.
const (
	ReasonLowConfidence    ReviewReason = "low_confidence"
	ReasonValidationFailed ReviewReason = "validation_failed"
	ReasonInsufficientData ReviewReason = "insufficient_data"
	ReasonManual           ReviewReason = "manual"
)

// Comment is a free-text note on a task.
type Comment struct {
	CreatedAt time.Time `json:"createdAt"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
}

// ReviewTask is one human-review cycle for one extraction of a source file.
type ReviewTask struct {
	CreatedAt               time.Time              `json:"createdAt"`
	UpdatedAt               time.Time              `json:"updatedAt"`
	ResolvedAt              *time.Time             `json:"resolvedAt,omitempty"`
	FinalizedSpecifications *ProductSpecifications `json:"finalizedSpecifications,omitempty"`
	ID                      string                 `json:"id"`
	SourceFileID            string                 `json:"sourceFileId"`
	Status                  ReviewStatus           `json:"status"`
	Reason                  ReviewReason           `json:"reason"`
	AssignedTo              string                 `json:"assignedTo,omitempty"`
	Reviewer                string                 `json:"reviewer,omitempty"`
	Comments                []Comment              `json:"comments,omitempty"`
	ProposedSpecifications  ProductSpecifications  `json:"proposedSpecifications"`
	Confidence              float64                `json:"confidence"`
	SourceVersion           int                    `json:"sourceVersion"`
	Revision                int                    `json:"revision"`
}

// IsTerminal reports whether the task can no longer change.
func (t ReviewTask) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsOpen reports whether the task still counts against the one-open-task-per-file rule.
func (t ReviewTask) IsOpen() bool {
	return !t.Status.IsTerminal()
}

// Clone returns a deep copy.
func (t ReviewTask) Clone() ReviewTask {
	out := t
	out.ProposedSpecifications = t.ProposedSpecifications.Clone()
	if t.FinalizedSpecifications != nil {
		f := t.FinalizedSpecifications.Clone()
		out.FinalizedSpecifications = &f
	}
	if t.ResolvedAt != nil {
		r := *t.ResolvedAt
		out.ResolvedAt = &r
	}
	out.Comments = slices.Clone(t.Comments)
	return out
}

// ReviewDecision is a reviewer's verdict on a pending task.
type ReviewDecision struct {
	Timestamp            time.Time              `json:"timestamp"`
	EditedSpecifications *ProductSpecifications `json:"editedSpecifications,omitempty"`
	TaskID               string                 `json:"taskId"`
	Decision             DecisionKind           `json:"decision"`
	Reviewer             string                 `json:"reviewer"`
	Reason               string                 `json:"reason,omitempty"`
}

// TaskFilter narrows task listings. Zero values match everything.
type TaskFilter struct {
	Status       ReviewStatus
	AssignedTo   string
	SourceFileID string
	Limit        int
	OpenOnly     bool
}

// Matches reports whether t passes the filter, ignoring Limit.
func (f TaskFilter) Matches(t ReviewTask) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.SourceFileID != "" && t.SourceFileID != f.SourceFileID {
		return false
	}
	if f.OpenOnly && !t.IsOpen() {
		return false
	}
	return true
}
