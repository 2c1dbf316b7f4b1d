// Package export writes the review queue and its statistics to an XLSX workbook.
package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/pouchspec/internal/model"
)

// Sheet names.
const (
	SummarySheet = "Summary"
	TasksSheet   = "Tasks"
	AuditSheet   = "Audit"
)

// ErrNilWriter is returned when no destination is given.
var ErrNilWriter = errors.New("export destination is nil")

// Report is everything that goes into one workbook.
type Report struct {
	GeneratedAt     time.Time
	Tasks           []model.ReviewTask
	ReviewLogs      []model.ReviewLog
	ReviewStats     model.ReviewStatistics
	ExtractionStats model.ExtractionStatistics
}

// Writer renders reports as XLSX.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a workbook writer.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// Write renders report and writes the workbook to out.
func (w *Writer) Write(out io.Writer, report Report) error {
	if out == nil {
		return ErrNilWriter
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}
	for _, name := range []string{TasksSheet, AuditSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []struct {
		name    string
		rows    [][]any
		headers []int
		widths  map[string]float64
	}{
		{
			name:    SummarySheet,
			rows:    prepareSummaryRows(report),
			headers: []int{1, 3, 14, 22},
			widths:  map[string]float64{"A": 28, "B": 18},
		},
		{
			name:    TasksSheet,
			rows:    prepareTaskRows(report.Tasks),
			headers: []int{1},
			widths:  map[string]float64{"A": 38, "B": 24, "C": 12, "D": 18, "F": 14, "J": 16, "K": 20, "L": 20},
		},
		{
			name:    AuditSheet,
			rows:    prepareAuditRows(report.ReviewLogs),
			headers: []int{1},
			widths:  map[string]float64{"A": 20, "B": 38, "C": 24, "D": 16, "E": 16, "H": 40},
		},
	}

	for _, s := range sheets {
		if err := writeRows(f, s.name, s.rows); err != nil {
			return err
		}
		for _, row := range s.headers {
			if err := f.SetRowStyle(s.name, row, row, bold); err != nil {
				return fmt.Errorf("failed to style %s row %d: %w", s.name, row, err)
			}
		}
		for col, width := range s.widths {
			_ = f.SetColWidth(s.name, col, col, width)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(out); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	w.logger.Info("Exported review workbook",
		"tasks", len(report.Tasks),
		"log_entries", len(report.ReviewLogs),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func prepareSummaryRows(report Report) [][]any {
	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	rs := report.ReviewStats
	es := report.ExtractionStats

	rows := [][]any{
		{"Pouch Specification Review", generated.UTC().Format(time.RFC3339)},
		{},
		{"Review Queue"},
		{"Total Tasks", rs.Total},
		{"Pending", rs.Pending},
		{"Needs Info", rs.NeedsInfo},
		{"Approved", rs.Approved},
		{"Rejected", rs.Rejected},
		{"Low Confidence", rs.LowConfidenceCount},
		{"Approval Rate", round2(rs.ApprovalRate)},
		{"Average Confidence", round2(rs.AverageConfidence)},
		{"Mean Time To Resolution", rs.MeanTimeToResolution.Round(time.Second).String()},
		{},
		{"Extractions"},
		{"Total", es.Total},
		{"Auto Approved", es.AutoApproved},
		{"Sent To Review", es.PendingReview},
		{"Invalid", es.Invalid},
		{"Average Confidence", round2(es.AverageConfidence)},
		{"Average Processing Time", es.AverageProcessingTime.String()},
		{},
		{"Pouch Type", "Count"},
	}

	types := make([]model.PouchType, 0, len(es.ByPouchType))
	for pt := range es.ByPouchType {
		types = append(types, pt)
	}
	sort.Slice(types, func(i, j int) bool {
		if es.ByPouchType[types[i]] != es.ByPouchType[types[j]] {
			return es.ByPouchType[types[i]] > es.ByPouchType[types[j]]
		}
		return types[i] < types[j]
	})
	for _, pt := range types {
		rows = append(rows, []any{string(pt), es.ByPouchType[pt]})
	}
	return rows
}

func prepareTaskRows(tasks []model.ReviewTask) [][]any {
	rows := make([][]any, 0, len(tasks)+1)
	rows = append(rows, []any{
		"Task ID", "Source File", "Status", "Reason", "Confidence", "Pouch Type",
		"Width (mm)", "Height (mm)", "Gusset (mm)", "Materials", "Assigned To", "Reviewer",
		"Created", "Resolved", "Comments",
	})

	sorted := make([]model.ReviewTask, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	for _, t := range sorted {
		specs := t.ProposedSpecifications
		if t.FinalizedSpecifications != nil {
			specs = *t.FinalizedSpecifications
		}
		resolved := ""
		if t.ResolvedAt != nil {
			resolved = t.ResolvedAt.UTC().Format("2006-01-02 15:04")
		}
		rows = append(rows, []any{
			t.ID,
			t.SourceFileID,
			string(t.Status),
			string(t.Reason),
			round2(t.Confidence),
			string(specs.PouchType),
			specs.Dimensions.Width,
			specs.Dimensions.Height,
			specs.Dimensions.Gusset,
			materialStack(specs.MaterialLayers),
			t.AssignedTo,
			t.Reviewer,
			t.CreatedAt.UTC().Format("2006-01-02 15:04"),
			resolved,
			len(t.Comments),
		})
	}
	return rows
}

func prepareAuditRows(logs []model.ReviewLog) [][]any {
	rows := make([][]any, 0, len(logs)+1)
	rows = append(rows, []any{"Timestamp", "Task ID", "Source File", "Action", "Actor", "From", "To", "Note"})
	for _, l := range logs {
		note := l.Payload.Reason
		if l.Payload.Comment != "" {
			note = l.Payload.Comment
		}
		rows = append(rows, []any{
			l.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			l.TaskID,
			l.CorrelationID,
			string(l.Action),
			l.Actor,
			string(l.Payload.BeforeStatus),
			string(l.Payload.AfterStatus),
			truncate(note, 140),
		})
	}
	return rows
}

func materialStack(layers []model.MaterialLayer) string {
	parts := make([]string, 0, len(layers))
	for _, l := range layers {
		if l.ThicknessMicron > 0 {
			parts = append(parts, fmt.Sprintf("%s%g", l.Material, l.ThicknessMicron))
			continue
		}
		parts = append(parts, l.Material)
	}
	return strings.Join(parts, "/")
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
