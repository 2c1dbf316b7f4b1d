package model

import "time"

// LogAction names what an audit entry records.
type LogAction string

// Audit actions.
const (
	ActionExtraction    LogAction = "extraction"
	ActionTaskCreated   LogAction = "task_created"
	ActionTaskReused    LogAction = "task_reused"
	ActionApproved      LogAction = "approved"
	ActionRejected      LogAction = "rejected"
	ActionInfoRequested LogAction = "info_requested"
	ActionResumed       LogAction = "resumed"
	ActionCommented     LogAction = "commented"
	ActionAssigned      LogAction = "assigned"
)

// ExtractionOutcome is where an extraction was routed.
type ExtractionOutcome string

// Extraction outcomes.
const (
	OutcomeAutoApproved  ExtractionOutcome = "auto_approved"
	OutcomeReviewCreated ExtractionOutcome = "review_created"
	OutcomeReviewReused  ExtractionOutcome = "review_reused"
	OutcomeLogged        ExtractionOutcome = "logged"
)

// ExtractionPayload is the body of an extraction audit entry.
type ExtractionPayload struct {
	SourceFileID   string            `json:"sourceFileId"`
	PouchType      PouchType         `json:"pouchType"`
	Level          ConfidenceLevel   `json:"level"`
	Outcome        ExtractionOutcome `json:"outcome"`
	TaskID         string            `json:"taskId,omitempty"`
	SourceVersion  int               `json:"sourceVersion"`
	Confidence     float64           `json:"confidence"`
	ErrorCount     int               `json:"errorCount"`
	WarningCount   int               `json:"warningCount"`
	ProcessingTime time.Duration     `json:"processingTime"`
	IsValid        bool              `json:"isValid"`
}

// ExtractionLog is an append-only record of one extraction attempt.
// CorrelationID is the source file id.
type ExtractionLog struct {
	Timestamp     time.Time         `json:"timestamp"`
	ID            string            `json:"id"`
	CorrelationID string            `json:"correlationId"`
	Action        LogAction         `json:"action"`
	Actor         string            `json:"actor"`
	Payload       ExtractionPayload `json:"payload"`
}

// ReviewPayload is the body of a review audit entry.
type ReviewPayload struct {
	BeforeStatus ReviewStatus `json:"beforeStatus,omitempty"`
	AfterStatus  ReviewStatus `json:"afterStatus"`
	Decision     DecisionKind `json:"decision,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Comment      string       `json:"comment,omitempty"`
	AssignedTo   string       `json:"assignedTo,omitempty"`
	Confidence   float64      `json:"confidence"`
	Edited       bool         `json:"edited,omitempty"`
}

// ReviewLog is an append-only record of one workflow action on a task.
type ReviewLog struct {
	Timestamp     time.Time     `json:"timestamp"`
	ID            string        `json:"id"`
	CorrelationID string        `json:"correlationId"`
	TaskID        string        `json:"taskId"`
	Action        LogAction     `json:"action"`
	Actor         string        `json:"actor"`
	Payload       ReviewPayload `json:"payload"`
}

// ReviewStatistics summarises the review queue.
type ReviewStatistics struct {
	Total                int           `json:"total"`
	Pending              int           `json:"pending"`
	NeedsInfo            int           `json:"needsInfo"`
	Approved             int           `json:"approved"`
	Rejected             int           `json:"rejected"`
	LowConfidenceCount   int           `json:"lowConfidenceCount"`
	ApprovalRate         float64       `json:"approvalRate"`
	AverageConfidence    float64       `json:"averageConfidence"`
	MeanTimeToResolution time.Duration `json:"meanTimeToResolution"`
}

// ExtractionStatistics summarises the extraction log.
type ExtractionStatistics struct {
	ByPouchType           map[PouchType]int `json:"byPouchType"`
	Total                 int               `json:"total"`
	AutoApproved          int               `json:"autoApproved"`
	PendingReview         int               `json:"pendingReview"`
	Invalid               int               `json:"invalid"`
	AverageConfidence     float64           `json:"averageConfidence"`
	AverageProcessingTime time.Duration     `json:"averageProcessingTime"`
}
