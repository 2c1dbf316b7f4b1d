package review

import (
	"fmt"
	"slices"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
)

// transitions lists the legal moves out of each status. Terminal statuses
// have no entry.
var transitions = map[model.ReviewStatus][]model.ReviewStatus{
	model.ReviewPending:   {model.ReviewApproved, model.ReviewRejected, model.ReviewNeedsInfo},
	model.ReviewNeedsInfo: {model.ReviewPending},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to model.ReviewStatus) bool {
	return slices.Contains(transitions[from], to)
}

// decisionOutcome maps a decision onto its target status and audit action.
func decisionOutcome(kind model.DecisionKind) (model.ReviewStatus, model.LogAction, error) {
	switch kind {
	case model.DecisionApprove:
		return model.ReviewApproved, model.ActionApproved, nil
	case model.DecisionReject:
		return model.ReviewRejected, model.ActionRejected, nil
	case model.DecisionRequestInfo:
		return model.ReviewNeedsInfo, model.ActionInfoRequested, nil
	default:
		return "", "", fmt.Errorf("%w: unknown decision %q", common.ErrInvalidDecision, kind)
	}
}

// requireTransition fails with a StateError when task cannot move to next.
func requireTransition(task *model.ReviewTask, next model.ReviewStatus, attempted string) error {
	if CanTransition(task.Status, next) {
		return nil
	}
	return common.NewStateError(task.ID, string(task.Status), attempted)
}

// requireOpen fails with a StateError when task is terminal.
func requireOpen(task *model.ReviewTask, attempted string) error {
	if task.IsOpen() {
		return nil
	}
	return common.NewStateError(task.ID, string(task.Status), attempted)
}
