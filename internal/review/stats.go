package review

import (
	"context"
	"time"

	"github.com/Veraticus/pouchspec/internal/model"
)

// GetReviewStatistics summarises the review queue. Time to resolution is
// measured from each task's task_created entry to its approved or rejected
// entry in the review log.
func (w *Workflow) GetReviewStatistics(ctx context.Context) (model.ReviewStatistics, error) {
	var stats model.ReviewStatistics

	tasks, err := w.store.ListTasks(ctx, model.TaskFilter{})
	if err != nil {
		return stats, err
	}
	logs, err := w.store.ListReviewLogs(ctx, "")
	if err != nil {
		return stats, err
	}

	var confidenceSum float64
	for _, task := range tasks {
		stats.Total++
		confidenceSum += task.Confidence
		if task.Confidence < w.threshold {
			stats.LowConfidenceCount++
		}
		switch task.Status {
		case model.ReviewPending:
			stats.Pending++
		case model.ReviewNeedsInfo:
			stats.NeedsInfo++
		case model.ReviewApproved:
			stats.Approved++
		case model.ReviewRejected:
			stats.Rejected++
		}
	}
	if stats.Total > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Total)
	}
	if resolved := stats.Approved + stats.Rejected; resolved > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(resolved)
	}
	stats.MeanTimeToResolution = meanTimeToResolution(logs)

	return stats, nil
}

func meanTimeToResolution(logs []model.ReviewLog) time.Duration {
	opened := make(map[string]time.Time)
	var (
		total    time.Duration
		resolved int
	)
	for _, entry := range logs {
		switch entry.Action {
		case model.ActionTaskCreated:
			if _, ok := opened[entry.TaskID]; !ok {
				opened[entry.TaskID] = entry.Timestamp
			}
		case model.ActionApproved, model.ActionRejected:
			start, ok := opened[entry.TaskID]
			if !ok {
				continue
			}
			total += entry.Timestamp.Sub(start)
			resolved++
			delete(opened, entry.TaskID)
		}
	}
	if resolved == 0 {
		return 0
	}
	return total / time.Duration(resolved)
}

// GetExtractionStatistics summarises the extraction log.
func (w *Workflow) GetExtractionStatistics(ctx context.Context) (model.ExtractionStatistics, error) {
	stats := model.ExtractionStatistics{ByPouchType: make(map[model.PouchType]int)}

	logs, err := w.store.ListExtractionLogs(ctx, "")
	if err != nil {
		return stats, err
	}

	var (
		confidenceSum  float64
		processingTime time.Duration
	)
	for _, entry := range logs {
		p := entry.Payload
		stats.Total++
		stats.ByPouchType[p.PouchType]++
		confidenceSum += p.Confidence
		processingTime += p.ProcessingTime
		if !p.IsValid {
			stats.Invalid++
		}
		switch p.Outcome {
		case model.OutcomeAutoApproved:
			stats.AutoApproved++
		case model.OutcomeReviewCreated, model.OutcomeReviewReused:
			stats.PendingReview++
		}
	}
	if stats.Total > 0 {
		stats.AverageConfidence = confidenceSum / float64(stats.Total)
		stats.AverageProcessingTime = processingTime / time.Duration(stats.Total)
	}
	return stats, nil
}
