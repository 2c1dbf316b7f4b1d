package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/metrics"
	"github.com/Veraticus/pouchspec/internal/model"
	"github.com/Veraticus/pouchspec/internal/service"
	"github.com/Veraticus/pouchspec/internal/testutil"
)

type fakeClock struct {
	t  time.Time
	mu sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWorkflow(t *testing.T, store service.ReviewStore, opts ...Option) *Workflow {
	t.Helper()
	base := []Option{
		WithClock(testutil.Clock()),
		WithIDGenerator(testutil.SequentialIDs("id")),
		WithRetry(service.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond}),
	}
	w, err := New(store, append(base, opts...)...)
	require.NoError(t, err)
	return w
}

func openTask(t *testing.T, w *Workflow, sourceFileID string) *model.ReviewTask {
	t.Helper()
	task, created, err := w.CreateReviewTask(context.Background(),
		testutil.NewSpecBuilder(sourceFileID).Build(), model.ReasonLowConfidence)
	require.NoError(t, err)
	require.True(t, created)
	return task
}

func approve(reviewer string) model.ReviewDecision {
	return model.ReviewDecision{Decision: model.DecisionApprove, Reviewer: reviewer}
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, common.ErrMissingConfig)

	_, err = New(testutil.SetupMemoryStore(t), WithThreshold(1.5))
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	w, err := New(testutil.SetupMemoryStore(t))
	require.NoError(t, err)
	assert.InDelta(t, model.DefaultReviewThreshold, w.Threshold(), 0.0001)
}

func TestCreateReviewForLowConfidence_Gatekeeper(t *testing.T) {
	tests := []struct {
		name        string
		result      model.ExtractionResult
		wantOutcome model.ExtractionOutcome
		wantReason  model.ReviewReason
		wantTask    bool
	}{
		{
			name:        "high confidence and valid is auto approved",
			result:      testutil.Result(testutil.NewSpecBuilder("file-1").WithConfidence(0.85).Build(), true),
			wantOutcome: model.OutcomeAutoApproved,
		},
		{
			name:        "exactly at threshold is auto approved",
			result:      testutil.Result(testutil.NewSpecBuilder("file-2").WithConfidence(0.8).Build(), true),
			wantOutcome: model.OutcomeAutoApproved,
		},
		{
			name:        "low confidence opens a task",
			result:      testutil.Result(testutil.NewSpecBuilder("file-3").WithConfidence(0.45).Build(), true),
			wantOutcome: model.OutcomeReviewCreated,
			wantReason:  model.ReasonLowConfidence,
			wantTask:    true,
		},
		{
			name:        "invalid result with high confidence still opens a task",
			result:      testutil.Result(testutil.NewSpecBuilder("file-4").WithConfidence(0.95).Build(), false, model.IssueFeatureContradiction),
			wantOutcome: model.OutcomeReviewCreated,
			wantReason:  model.ReasonValidationFailed,
			wantTask:    true,
		},
		{
			name: "insufficient data",
			result: testutil.Result(testutil.NewSpecBuilder("file-5").WithConfidence(0).
				WithPouchType(model.PouchTypeUnknown).Build(), false, model.IssueInsufficientData),
			wantOutcome: model.OutcomeReviewCreated,
			wantReason:  model.ReasonInsufficientData,
			wantTask:    true,
		},
	}

	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sourceFileID := tt.result.Specifications.SourceFileID
				task, err := w.CreateReviewForLowConfidence(ctx, tt.result, LogOptions{ProcessingTime: 5 * time.Millisecond})
				require.NoError(t, err)

				logs, err := w.GetExtractionLogs(ctx, sourceFileID)
				require.NoError(t, err)
				require.Len(t, logs, 1)
				assert.Equal(t, tt.wantOutcome, logs[0].Payload.Outcome)
				assert.Equal(t, sourceFileID, logs[0].CorrelationID)
				assert.Equal(t, 5*time.Millisecond, logs[0].Payload.ProcessingTime)
				assert.Equal(t, tt.result.Validation.IsValid, logs[0].Payload.IsValid)

				if !tt.wantTask {
					assert.Nil(t, task)
					assert.Empty(t, logs[0].Payload.TaskID)
					_, err := store.FindOpenTask(ctx, sourceFileID)
					require.ErrorIs(t, err, common.ErrNotFound)
					return
				}
				require.NotNil(t, task)
				assert.Equal(t, model.ReviewPending, task.Status)
				assert.Equal(t, tt.wantReason, task.Reason)
				assert.Equal(t, task.ID, logs[0].Payload.TaskID)
				assert.InDelta(t, tt.result.Specifications.OverallConfidence.Value, task.Confidence, 0.0001)
			})
		}
	})
}

func TestCreateReviewForLowConfidence_ReusesOpenTask(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		result := testutil.Result(testutil.NewSpecBuilder("file-1").WithConfidence(0.4).Build(), true)

		first, err := w.CreateReviewForLowConfidence(ctx, result, LogOptions{})
		require.NoError(t, err)
		rerun := testutil.Result(testutil.NewSpecBuilder("file-1").WithConfidence(0.3).Build(), true)
		second, err := w.CreateReviewForLowConfidence(ctx, rerun, LogOptions{Actor: "batch"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.InDelta(t, 0.4, second.Confidence, 0.001, "open task keeps its proposal")
		assert.InDelta(t, 0.4, second.ProposedSpecifications.OverallConfidence.Value, 0.001)

		tasks, err := w.GetReviewTasks(ctx, model.TaskFilter{SourceFileID: "file-1"})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)

		exLogs, err := w.GetExtractionLogs(ctx, "file-1")
		require.NoError(t, err)
		require.Len(t, exLogs, 2)
		assert.Equal(t, model.OutcomeReviewCreated, exLogs[0].Payload.Outcome)
		assert.Equal(t, model.OutcomeReviewReused, exLogs[1].Payload.Outcome)
		assert.Equal(t, SystemActor, exLogs[0].Actor)
		assert.Equal(t, "batch", exLogs[1].Actor)

		reviewLogs, err := w.GetReviewLogs(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, reviewLogs, 2)
		assert.Equal(t, model.ActionTaskCreated, reviewLogs[0].Action)
		assert.Equal(t, model.ActionTaskReused, reviewLogs[1].Action)
		assert.InDelta(t, 0.3, reviewLogs[1].Payload.Confidence, 0.001)
		assert.InDelta(t, 0.3, exLogs[1].Payload.Confidence, 0.001)
	})
}

func TestCreateReviewTask_RequiresSourceFile(t *testing.T) {
	w := newTestWorkflow(t, testutil.SetupMemoryStore(t))
	_, _, err := w.CreateReviewTask(context.Background(), testutil.NewSpecBuilder("").Build(), model.ReasonManual)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	logs, err := w.GetAllReviewLogs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestProcessReviewDecision_ApproveWithEdits(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		corrected := testutil.NewSpecBuilder("file-1").WithDimensions(140, 200, 40).WithConfidence(1).Build()
		decision := approve("ana")
		decision.EditedSpecifications = &corrected
		decision.Reason = "width measured on the proof"

		updated, err := w.ProcessReviewDecision(ctx, task.ID, decision)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewApproved, updated.Status)
		assert.Equal(t, "ana", updated.Reviewer)
		require.NotNil(t, updated.ResolvedAt)

		stored, err := w.GetReviewTask(ctx, task.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.FinalizedSpecifications)
		if diff := cmp.Diff(corrected, *stored.FinalizedSpecifications, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("finalized specifications mismatch (-want +got):\n%s", diff)
		}
		assert.InDelta(t, 130, stored.ProposedSpecifications.Dimensions.Width, 0.001, "proposal is kept")

		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2, "task_created plus exactly one decision entry")
		entry := logs[1]
		assert.Equal(t, model.ActionApproved, entry.Action)
		assert.Equal(t, "ana", entry.Actor)
		assert.Equal(t, model.ReviewPending, entry.Payload.BeforeStatus)
		assert.Equal(t, model.ReviewApproved, entry.Payload.AfterStatus)
		assert.True(t, entry.Payload.Edited)
		assert.Equal(t, "width measured on the proof", entry.Payload.Reason)

		final, err := w.FinalizedSpecifications(ctx, task.ID)
		require.NoError(t, err)
		assert.InDelta(t, 140, final.Dimensions.Width, 0.001)
	})
}

func TestProcessReviewDecision_TerminalTaskIsImmutable(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		_, err := w.ProcessReviewDecision(ctx, task.ID, approve("ana"))
		require.NoError(t, err)
		before, err := w.GetReviewTask(ctx, task.ID)
		require.NoError(t, err)

		for _, kind := range []model.DecisionKind{model.DecisionApprove, model.DecisionReject, model.DecisionRequestInfo} {
			t.Run(string(kind), func(t *testing.T) {
				_, err := w.ProcessReviewDecision(ctx, task.ID, model.ReviewDecision{Decision: kind, Reviewer: "bo"})
				var stateErr *common.StateError
				require.ErrorAs(t, err, &stateErr)
				require.ErrorIs(t, err, common.ErrIllegalTransition)
				assert.Equal(t, string(model.ReviewApproved), stateErr.From)
			})
		}

		_, err = w.AddReviewComment(ctx, task.ID, model.Comment{Author: "bo", Body: "too late"})
		require.ErrorIs(t, err, common.ErrIllegalTransition)
		_, err = w.AssignReviewTask(ctx, task.ID, "bo", "bo")
		require.ErrorIs(t, err, common.ErrIllegalTransition)

		after, err := w.GetReviewTask(ctx, task.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(before, after, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("terminal task changed (-before +after):\n%s", diff)
		}
		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})
}

func TestProcessReviewDecision_Reject(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		updated, err := w.ProcessReviewDecision(ctx, task.ID, model.ReviewDecision{
			Decision: model.DecisionReject, Reviewer: "ana", Reason: "wrong artwork",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReviewRejected, updated.Status)
		assert.Nil(t, updated.FinalizedSpecifications)
		require.NotNil(t, updated.ResolvedAt)

		_, err = w.FinalizedSpecifications(ctx, task.ID)
		require.ErrorIs(t, err, common.ErrIllegalTransition)

		// The file can be reviewed again.
		again := openTask(t, w, "file-1")
		assert.NotEqual(t, task.ID, again.ID)
	})
}

func TestProcessReviewDecision_NeedsInfoLoop(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		_, err := w.ResumeReview(ctx, task.ID, "ana", "")
		require.ErrorIs(t, err, common.ErrIllegalTransition, "pending cannot resume")

		waiting, err := w.ProcessReviewDecision(ctx, task.ID, model.ReviewDecision{
			Decision: model.DecisionRequestInfo, Reviewer: "ana", Reason: "need the die line",
		})
		require.NoError(t, err)
		assert.Equal(t, model.ReviewNeedsInfo, waiting.Status)
		assert.Nil(t, waiting.ResolvedAt)

		// Still open, so a second extraction reuses it.
		_, created, err := w.CreateReviewTask(ctx, testutil.NewSpecBuilder("file-1").Build(), model.ReasonLowConfidence)
		require.NoError(t, err)
		assert.False(t, created)

		_, err = w.ProcessReviewDecision(ctx, task.ID, approve("ana"))
		require.ErrorIs(t, err, common.ErrIllegalTransition, "needs_info must resume first")

		resumed, err := w.ResumeReview(ctx, task.ID, "ana", "die line attached")
		require.NoError(t, err)
		assert.Equal(t, model.ReviewPending, resumed.Status)

		done, err := w.ProcessReviewDecision(ctx, task.ID, approve("ana"))
		require.NoError(t, err)
		assert.Equal(t, model.ReviewApproved, done.Status)

		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		actions := make([]model.LogAction, 0, len(logs))
		for _, l := range logs {
			actions = append(actions, l.Action)
		}
		assert.Equal(t, []model.LogAction{
			model.ActionTaskCreated,
			model.ActionInfoRequested,
			model.ActionTaskReused,
			model.ActionResumed,
			model.ActionApproved,
		}, actions)
		assert.Equal(t, "die line attached", logs[3].Payload.Comment)
	})
}

func TestProcessReviewDecision_InvalidDecisions(t *testing.T) {
	otherFile := testutil.NewSpecBuilder("file-other").Build()
	sameFile := testutil.NewSpecBuilder("file-1").Build()

	tests := []struct {
		name     string
		decision model.ReviewDecision
		taskID   string
	}{
		{name: "missing reviewer", decision: model.ReviewDecision{Decision: model.DecisionApprove}},
		{name: "blank reviewer", decision: model.ReviewDecision{Decision: model.DecisionApprove, Reviewer: "  "}},
		{name: "unknown decision", decision: model.ReviewDecision{Decision: "escalate", Reviewer: "ana"}},
		{name: "edits on reject", decision: model.ReviewDecision{Decision: model.DecisionReject, Reviewer: "ana", EditedSpecifications: &sameFile}},
		{name: "edits for another file", decision: model.ReviewDecision{Decision: model.DecisionApprove, Reviewer: "ana", EditedSpecifications: &otherFile}},
		{name: "mismatched task id", decision: model.ReviewDecision{TaskID: "another", Decision: model.DecisionApprove, Reviewer: "ana"}},
		{name: "empty task id", decision: approve("ana"), taskID: " "},
	}

	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				taskID := task.ID
				if tt.taskID != "" {
					taskID = tt.taskID
				}
				_, err := w.ProcessReviewDecision(ctx, taskID, tt.decision)
				require.ErrorIs(t, err, common.ErrInvalidDecision)
			})
		}

		stored, err := w.GetReviewTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReviewPending, stored.Status)
		assert.Equal(t, 0, stored.Revision)
		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})
}

func TestProcessReviewDecision_MissingTask(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()

		_, err := w.ProcessReviewDecision(ctx, "ghost", approve("ana"))
		var integrityErr *common.DataIntegrityError
		require.ErrorAs(t, err, &integrityErr)
		require.ErrorIs(t, err, common.ErrDataIntegrity)
		require.ErrorIs(t, err, common.ErrNotFound)

		_, err = w.AddReviewComment(ctx, "ghost", model.Comment{Body: "hello"})
		require.ErrorIs(t, err, common.ErrDataIntegrity)
		_, err = w.ResumeReview(ctx, "ghost", "ana", "")
		require.ErrorIs(t, err, common.ErrDataIntegrity)

		_, err = w.GetReviewTask(ctx, "ghost")
		require.ErrorIs(t, err, common.ErrNotFound)

		logs, err := w.GetAllReviewLogs(ctx)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}

func TestAddReviewComment(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		_, err := w.AddReviewComment(ctx, task.ID, model.Comment{Author: "ana", Body: "   "})
		require.ErrorIs(t, err, common.ErrInvalidInput)

		updated, err := w.AddReviewComment(ctx, task.ID, model.Comment{Author: "ana", Body: "gusset looks off"})
		require.NoError(t, err)
		updated, err = w.AddReviewComment(ctx, updated.ID, model.Comment{Author: "bo", Body: "agreed"})
		require.NoError(t, err)
		assert.Equal(t, model.ReviewPending, updated.Status)
		assert.Equal(t, 2, updated.Revision)

		stored, err := w.GetReviewTask(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, stored.Comments, 2)
		assert.Equal(t, "gusset looks off", stored.Comments[0].Body)
		assert.Equal(t, "bo", stored.Comments[1].Author)
		assert.False(t, stored.Comments[0].CreatedAt.IsZero())

		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, model.ActionCommented, logs[2].Action)
		assert.Equal(t, "agreed", logs[2].Payload.Comment)
		assert.Equal(t, model.ReviewPending, logs[2].Payload.AfterStatus)
	})
}

func TestAssignReviewTask(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")
		openTask(t, w, "file-2")

		_, err := w.AssignReviewTask(ctx, task.ID, " ana ", "lead")
		require.NoError(t, err)

		mine, err := w.GetReviewTasks(ctx, model.TaskFilter{AssignedTo: "ana"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, task.ID, mine[0].ID)

		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, model.ActionAssigned, logs[1].Action)
		assert.Equal(t, "lead", logs[1].Actor)
		assert.Equal(t, "ana", logs[1].Payload.AssignedTo)

		_, err = w.AssignReviewTask(ctx, task.ID, "", "")
		require.NoError(t, err)
		logs, err = w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, SystemActor, logs[2].Actor)
	})
}

func TestProcessReviewDecision_ConcurrentDecisions(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		task := openTask(t, w, "file-1")

		const reviewers = 10
		errs := make([]error, reviewers)
		var wg sync.WaitGroup
		for i := 0; i < reviewers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				kind := model.DecisionApprove
				if i%2 == 1 {
					kind = model.DecisionReject
				}
				_, errs[i] = w.ProcessReviewDecision(ctx, task.ID, model.ReviewDecision{
					Decision: kind, Reviewer: fmt.Sprintf("reviewer-%d", i),
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			var stateErr *common.StateError
			assert.ErrorAs(t, err, &stateErr)
		}
		assert.Equal(t, 1, succeeded)

		stored, err := w.GetReviewTask(ctx, task.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsTerminal())
		assert.Equal(t, 1, stored.Revision)

		logs, err := w.GetReviewLogs(ctx, task.ID)
		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})
}

func TestCreateReviewForLowConfidence_ConcurrentExtractions(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		result := testutil.Result(testutil.NewSpecBuilder("file-1").WithConfidence(0.3).Build(), true)

		const workers = 10
		ids := make([]string, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				task, err := w.CreateReviewForLowConfidence(ctx, result, LogOptions{})
				if err != nil {
					t.Errorf("worker %d: %v", i, err)
					return
				}
				ids[i] = task.ID
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}

		open, err := w.GetReviewTasks(ctx, model.TaskFilter{SourceFileID: "file-1", OpenOnly: true})
		require.NoError(t, err)
		assert.Len(t, open, 1)

		exLogs, err := w.GetExtractionLogs(ctx, "file-1")
		require.NoError(t, err)
		assert.Len(t, exLogs, workers)
	})
}

func TestLogExtraction(t *testing.T) {
	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
		w := newTestWorkflow(t, store)
		ctx := context.Background()
		result := testutil.Result(testutil.NewSpecBuilder("file-1").WithConfidence(0.2).Build(), true)

		require.NoError(t, w.LogExtraction(ctx, result, LogOptions{Actor: "importer"}))

		logs, err := w.GetExtractionLogs(ctx, "")
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, model.OutcomeLogged, logs[0].Payload.Outcome)
		assert.Equal(t, "importer", logs[0].Actor)

		tasks, err := w.GetReviewTasks(ctx, model.TaskFilter{})
		require.NoError(t, err)
		assert.Empty(t, tasks, "logging never opens a task")
	})
}

func TestWorkflow_Metrics(t *testing.T) {
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	w := newTestWorkflow(t, testutil.SetupMemoryStore(t), WithMetrics(m))
	ctx := context.Background()

	low := testutil.Result(testutil.NewSpecBuilder("file-1").WithConfidence(0.3).Build(), true)
	task, err := w.CreateReviewForLowConfidence(ctx, low, LogOptions{})
	require.NoError(t, err)
	_, err = w.CreateReviewForLowConfidence(ctx, low, LogOptions{})
	require.NoError(t, err)
	_, err = w.ProcessReviewDecision(ctx, task.ID, approve("ana"))
	require.NoError(t, err)

	assert.InDelta(t, 1, promtest.ToFloat64(m.ExtractionsTotal.WithLabelValues("review_created")), 0.001)
	assert.InDelta(t, 1, promtest.ToFloat64(m.ExtractionsTotal.WithLabelValues("review_reused")), 0.001)
	assert.InDelta(t, 1, promtest.ToFloat64(m.TasksCreatedTotal.WithLabelValues("low_confidence")), 0.001)
	assert.InDelta(t, 1, promtest.ToFloat64(m.TasksReusedTotal), 0.001)
	assert.InDelta(t, 1, promtest.ToFloat64(m.DecisionsTotal.WithLabelValues("approve")), 0.001)
	assert.InDelta(t, 0, promtest.ToFloat64(m.OpenTasks), 0.001)
}

func TestWorkflow_CancelledContext(t *testing.T) {
	w := newTestWorkflow(t, testutil.SetupMemoryStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := w.CreateReviewTask(ctx, testutil.NewSpecBuilder("file-1").Build(), model.ReasonManual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
