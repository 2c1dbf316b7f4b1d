// Package metrics instruments extraction and review with Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Veraticus/pouchspec/internal/model"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the Prometheus collectors. Every method is safe on a nil
// receiver, so callers without instrumentation pass nil.
type Metrics struct {
	ExtractionsTotal     *prometheus.CounterVec
	ExtractionConfidence prometheus.Histogram
	ExtractionDuration   prometheus.Histogram

	TasksCreatedTotal *prometheus.CounterVec
	TasksReusedTotal  prometheus.Counter
	DecisionsTotal    *prometheus.CounterVec
	OpenTasks         prometheus.Gauge
}

// NewMetrics registers the collectors with the default registry once and
// returns the shared instance.
//
// Metrics:
//   - pouchspec_extractions_total{outcome}
//   - pouchspec_extraction_confidence
//   - pouchspec_extraction_duration_seconds
//   - pouchspec_review_tasks_created_total{reason}
//   - pouchspec_review_tasks_reused_total
//   - pouchspec_review_decisions_total{decision}
//   - pouchspec_review_open_tasks
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsWith(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// NewMetricsWith registers a fresh set of collectors with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pouchspec_extractions_total",
				Help: "Total number of logged extractions by routing outcome",
			},
			[]string{"outcome"},
		),
		ExtractionConfidence: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pouchspec_extraction_confidence",
				Help:    "Overall confidence of logged extractions",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		ExtractionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pouchspec_extraction_duration_seconds",
				Help:    "Time spent extracting specifications",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		TasksCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pouchspec_review_tasks_created_total",
				Help: "Total number of review tasks opened by reason",
			},
			[]string{"reason"},
		),
		TasksReusedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pouchspec_review_tasks_reused_total",
				Help: "Total number of requests that reused an open review task",
			},
		),
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pouchspec_review_decisions_total",
				Help: "Total number of reviewer decisions by kind",
			},
			[]string{"decision"},
		),
		OpenTasks: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pouchspec_review_open_tasks",
				Help: "Review tasks opened or resolved by this process; negative after restarts",
			},
		),
	}
}

// RecordExtraction records one logged extraction.
func (m *Metrics) RecordExtraction(outcome model.ExtractionOutcome, confidence, seconds float64) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(string(outcome)).Inc()
	m.ExtractionConfidence.Observe(confidence)
	if seconds > 0 {
		m.ExtractionDuration.Observe(seconds)
	}
}

// RecordTaskCreated records a newly opened task.
func (m *Metrics) RecordTaskCreated(reason model.ReviewReason) {
	if m == nil {
		return
	}
	m.TasksCreatedTotal.WithLabelValues(string(reason)).Inc()
	m.OpenTasks.Inc()
}

// RecordTaskReused records a request answered with an existing open task.
func (m *Metrics) RecordTaskReused() {
	if m == nil {
		return
	}
	m.TasksReusedTotal.Inc()
}

// RecordDecision records a reviewer decision. Terminal decisions close the task.
func (m *Metrics) RecordDecision(decision model.DecisionKind) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(string(decision)).Inc()
	if decision == model.DecisionApprove || decision == model.DecisionReject {
		m.OpenTasks.Dec()
	}
}
