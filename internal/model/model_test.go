package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels_Classify(t *testing.T) {
	levels := DefaultLevels()
	tests := []struct {
		name  string
		want  ConfidenceLevel
		value float64
	}{
		{"zero is low", ConfidenceLow, 0},
		{"just under medium", ConfidenceLow, 0.4999},
		{"medium boundary", ConfidenceMedium, 0.5},
		{"just under high", ConfidenceMedium, 0.7999},
		{"high boundary", ConfidenceHigh, 0.8},
		{"one", ConfidenceHigh, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, levels.Classify(tt.value))
		})
	}
}

func TestDefaultThresholds(t *testing.T) {
	assert.InDelta(t, 0.8, DefaultHighConfidence, 1e-9)
	assert.InDelta(t, 0.5, DefaultMediumConfidence, 1e-9)
	assert.InDelta(t, 0.8, DefaultReviewThreshold, 1e-9)
}

func TestParsePouchType(t *testing.T) {
	assert.Equal(t, PouchStandUp, ParsePouchType("stand_up"))
	assert.Equal(t, PouchRollFilm, ParsePouchType("roll_film"))
	assert.Equal(t, PouchTypeUnknown, ParsePouchType(""))
	assert.Equal(t, PouchTypeUnknown, ParsePouchType("STAND_UP"))
	assert.Equal(t, PouchTypeUnknown, ParsePouchType("bag"))
}

func TestClamp01(t *testing.T) {
	assert.InDelta(t, 0.0, Clamp01(-0.2), 1e-9)
	assert.InDelta(t, 0.3, Clamp01(0.3), 1e-9)
	assert.InDelta(t, 1.0, Clamp01(1.7), 1e-9)
}

func TestProcessingFeatures_SetHas(t *testing.T) {
	var f ProcessingFeatures
	for _, feat := range AllFeatures {
		assert.False(t, f.Has(feat), feat)
		f.Set(feat, true)
		assert.True(t, f.Has(feat), feat)
	}
	assert.False(t, f.Has(Feature("laser")))
}

func TestReviewStatus(t *testing.T) {
	assert.False(t, ReviewPending.IsTerminal())
	assert.False(t, ReviewNeedsInfo.IsTerminal())
	assert.True(t, ReviewApproved.IsTerminal())
	assert.True(t, ReviewRejected.IsTerminal())
	assert.False(t, ReviewStatus("closed").IsValid())
}

func TestReviewTask_CloneIsDeep(t *testing.T) {
	resolved := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	final := ProductSpecifications{SourceFileID: "f1", MaterialLayers: []MaterialLayer{{Material: "PET"}}}
	task := ReviewTask{
		ID:                      "t1",
		Status:                  ReviewApproved,
		ResolvedAt:              &resolved,
		FinalizedSpecifications: &final,
		Comments:                []Comment{{Author: "a", Body: "b"}},
		ProposedSpecifications: ProductSpecifications{
			MaterialLayers:    []MaterialLayer{{Material: "AL"}},
			OverallConfidence: ConfidenceScore{Rationale: []string{"x"}},
		},
	}

	clone := task.Clone()
	clone.Comments[0].Body = "changed"
	clone.ProposedSpecifications.MaterialLayers[0].Material = "PE"
	clone.ProposedSpecifications.OverallConfidence.Rationale[0] = "y"
	clone.FinalizedSpecifications.MaterialLayers[0].Material = "CPP"
	*clone.ResolvedAt = resolved.Add(time.Hour)

	require.Len(t, task.Comments, 1)
	assert.Equal(t, "b", task.Comments[0].Body)
	assert.Equal(t, "AL", task.ProposedSpecifications.MaterialLayers[0].Material)
	assert.Equal(t, "x", task.ProposedSpecifications.OverallConfidence.Rationale[0])
	assert.Equal(t, "PET", task.FinalizedSpecifications.MaterialLayers[0].Material)
	assert.Equal(t, resolved, *task.ResolvedAt)
}

func TestTaskFilter_Matches(t *testing.T) {
	task := ReviewTask{Status: ReviewPending, AssignedTo: "kim", SourceFileID: "f1"}
	assert.True(t, TaskFilter{}.Matches(task))
	assert.True(t, TaskFilter{Status: ReviewPending, AssignedTo: "kim"}.Matches(task))
	assert.False(t, TaskFilter{Status: ReviewApproved}.Matches(task))
	assert.False(t, TaskFilter{AssignedTo: "lee"}.Matches(task))
	assert.False(t, TaskFilter{SourceFileID: "f2"}.Matches(task))
	assert.True(t, TaskFilter{OpenOnly: true}.Matches(task))
	task.Status = ReviewRejected
	assert.False(t, TaskFilter{OpenOnly: true}.Matches(task))
}

func TestValidationResult_HasCode(t *testing.T) {
	v := ValidationResult{Errors: []Issue{{Code: IssueInsufficientData}}}
	assert.True(t, v.HasCode(IssueInsufficientData))
	assert.False(t, v.HasCode(IssueDimensionMissing))
}
