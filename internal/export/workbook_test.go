package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/pouchspec/internal/model"
	"github.com/Veraticus/pouchspec/internal/testutil"
)

func sampleReport() Report {
	resolved := testutil.FixedTime.Add(time.Hour)
	final := testutil.NewSpecBuilder("file-b").WithDimensions(140, 200, 40).Build()
	return Report{
		GeneratedAt: testutil.FixedTime,
		Tasks: []model.ReviewTask{
			{
				ID: "task-a", SourceFileID: "file-a", Status: model.ReviewPending,
				Reason: model.ReasonLowConfidence, Confidence: 0.456,
				ProposedSpecifications: testutil.NewSpecBuilder("file-a").Build(),
				CreatedAt:              testutil.FixedTime,
			},
			{
				ID: "task-b", SourceFileID: "file-b", Status: model.ReviewApproved,
				Reason: model.ReasonValidationFailed, Confidence: 0.3, Reviewer: "ana",
				ProposedSpecifications:  testutil.NewSpecBuilder("file-b").Build(),
				FinalizedSpecifications: &final,
				CreatedAt:               testutil.FixedTime.Add(time.Minute),
				ResolvedAt:              &resolved,
				Comments:                []model.Comment{{Author: "ana", Body: "fixed width"}},
			},
		},
		ReviewLogs: []model.ReviewLog{
			{
				Timestamp: testutil.FixedTime, TaskID: "task-b", CorrelationID: "file-b",
				Action: model.ActionApproved, Actor: "ana",
				Payload: model.ReviewPayload{BeforeStatus: model.ReviewPending, AfterStatus: model.ReviewApproved, Reason: "ok"},
			},
		},
		ReviewStats: model.ReviewStatistics{Total: 2, Pending: 1, Approved: 1, ApprovalRate: 1},
		ExtractionStats: model.ExtractionStatistics{
			Total:       3,
			ByPouchType: map[model.PouchType]int{model.PouchStandUp: 2, model.PouchBox: 1},
		},
	}
}

func TestWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(nil).Write(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SummarySheet, TasksSheet, AuditSheet}, f.GetSheetList())

	t.Run("tasks are newest first and show finalized values", func(t *testing.T) {
		rows, err := f.GetRows(TasksSheet)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Task ID", rows[0][0])
		assert.Equal(t, "task-b", rows[1][0])
		assert.Equal(t, "approved", rows[1][2])
		assert.Equal(t, "140", rows[1][6])
		assert.Equal(t, "PET12/PE80", rows[1][9])
		assert.Equal(t, "2026-03-01 10:00", rows[1][13])
		assert.Equal(t, "1", rows[1][14])
		assert.Equal(t, "task-a", rows[2][0])
		assert.Equal(t, "0.46", rows[2][4])
	})

	t.Run("summary lists pouch types by count", func(t *testing.T) {
		rows, err := f.GetRows(SummarySheet)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01T09:00:00Z", rows[0][1])
		assert.Equal(t, []string{"Total Tasks", "2"}, rows[3])
		last := rows[len(rows)-2:]
		assert.Equal(t, []string{"stand_up", "2"}, last[0])
		assert.Equal(t, []string{"box", "1"}, last[1])
	})

	t.Run("audit rows", func(t *testing.T) {
		rows, err := f.GetRows(AuditSheet)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"2026-03-01 09:00:00", "task-b", "file-b", "approved", "ana", "pending", "approved", "ok"}, rows[1])
	})
}

func TestWriter_WriteNil(t *testing.T) {
	require.ErrorIs(t, NewWriter(nil).Write(nil, Report{}), ErrNilWriter)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
	assert.Equal(t, "été…", truncate("étéété", 4))
}
