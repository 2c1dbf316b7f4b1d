package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/pouchspec/internal/model"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordExtraction(model.OutcomeAutoApproved, 0.9, 0.01)
	m.RecordExtraction(model.OutcomeReviewCreated, 0.4, 0)
	m.RecordExtraction(model.OutcomeReviewCreated, 0.3, 0.02)
	m.RecordTaskCreated(model.ReasonLowConfidence)
	m.RecordTaskCreated(model.ReasonInsufficientData)
	m.RecordTaskReused()
	m.RecordDecision(model.DecisionRequestInfo)
	m.RecordDecision(model.DecisionApprove)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("auto_approved")), 0.001)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("review_created")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksCreatedTotal.WithLabelValues("low_confidence")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TasksReusedTotal), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("approve")), 0.001)
	// Two opened, one approved; request_info keeps the task open.
	assert.InDelta(t, 1, testutil.ToFloat64(m.OpenTasks), 0.001)
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExtractionConfidence))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordExtraction(model.OutcomeLogged, 0.5, 1)
		m.RecordTaskCreated(model.ReasonManual)
		m.RecordTaskReused()
		m.RecordDecision(model.DecisionReject)
	})
}

func TestNewMetrics_Once(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics())
}
