package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/pouchspec/internal/model"
)

var fieldOrder = []model.Field{
	model.FieldPouchType,
	model.FieldWidth,
	model.FieldHeight,
	model.FieldGusset,
	model.FieldMaterials,
	model.FieldFeatures,
}

// FormatConfidence renders a confidence value colored by its level.
func FormatConfidence(value float64, level model.ConfidenceLevel) string {
	text := fmt.Sprintf("%.2f (%s)", value, level)
	switch level {
	case model.ConfidenceHigh:
		return SuccessStyle.Render(text)
	case model.ConfidenceMedium:
		return WarningStyle.Render(text)
	default:
		return ErrorStyle.Render(text)
	}
}

// FormatStatus renders a review status.
func FormatStatus(status model.ReviewStatus) string {
	switch status {
	case model.ReviewApproved:
		return SuccessStyle.Render(string(status))
	case model.ReviewRejected:
		return ErrorStyle.Render(string(status))
	case model.ReviewNeedsInfo:
		return WarningStyle.Render(string(status))
	default:
		return InfoStyle.Render(string(status))
	}
}

// RenderTable lays rows out in aligned columns under a styled header.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = TableCellStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...)))
	b.WriteString("\n")

	for _, row := range rows {
		cells = cells[:0]
		for i := range headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			cells = append(cells, TableCellStyle.Width(widths[i]+2).Render(value))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTaskTable lists review tasks one per line.
func RenderTaskTable(tasks []model.ReviewTask) string {
	if len(tasks) == 0 {
		return SubtleStyle.Render("No review tasks.") + "\n"
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.SourceFileID,
			string(t.Status),
			string(t.Reason),
			fmt.Sprintf("%.2f", t.Confidence),
			t.AssignedTo,
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return RenderTable([]string{"ID", "FILE", "STATUS", "REASON", "CONF", "ASSIGNED", "CREATED"}, rows)
}

// RenderSpecifications describes extracted specifications.
func RenderSpecifications(specs model.ProductSpecifications) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pouch type:  %s\n", specs.PouchType)
	d := specs.Dimensions
	fmt.Fprintf(&b, "Dimensions:  W %g × H %g", d.Width, d.Height)
	if d.Gusset > 0 {
		fmt.Fprintf(&b, " × G %g", d.Gusset)
	}
	fmt.Fprintf(&b, " %s\n", d.Unit)

	if len(specs.MaterialLayers) == 0 {
		b.WriteString("Materials:   " + SubtleStyle.Render("none found") + "\n")
	} else {
		parts := make([]string, 0, len(specs.MaterialLayers))
		for _, l := range specs.MaterialLayers {
			part := l.Material
			if l.ThicknessMicron > 0 {
				part = fmt.Sprintf("%s %gµm", l.Material, l.ThicknessMicron)
			}
			parts = append(parts, part)
		}
		b.WriteString("Materials:   " + strings.Join(parts, " / ") + "\n")
	}

	var features []string
	for _, f := range model.AllFeatures {
		if specs.ProcessingFeatures.Has(f) {
			features = append(features, string(f))
		}
	}
	if len(features) == 0 {
		features = []string{SubtleStyle.Render("none")}
	}
	b.WriteString("Features:    " + strings.Join(features, ", ") + "\n")
	b.WriteString("Confidence:  " + FormatConfidence(specs.OverallConfidence.Value, specs.OverallConfidence.Level))
	return b.String()
}

// RenderExtraction summarises one extraction result.
func RenderExtraction(result model.ExtractionResult) string {
	var b strings.Builder
	b.WriteString(RenderSpecifications(result.Specifications))
	b.WriteString("\n")

	for _, f := range fieldOrder {
		score, ok := result.Confidence.Fields[f]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-11s %s\n", f, FormatConfidence(score.Value, score.Level))
	}
	for _, issue := range result.Validation.Errors {
		b.WriteString(FormatError(issue.Code+": "+issue.Message) + "\n")
	}
	for _, issue := range result.Validation.Warnings {
		b.WriteString(FormatWarning(issue.Code+": "+issue.Message) + "\n")
	}
	if cc := result.CrossCheck; cc != nil {
		fmt.Fprintf(&b, "Quotation %s agreement: %.2f\n", cc.QuotationID, cc.AgreementScore)
	}
	return RenderBox(result.Specifications.SourceFileID, strings.TrimRight(b.String(), "\n"))
}

// RenderTaskDetail shows one task with its comments and audit trail.
func RenderTaskDetail(task model.ReviewTask, logs []model.ReviewLog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status:      %s\n", FormatStatus(task.Status))
	fmt.Fprintf(&b, "Source file: %s (v%d)\n", task.SourceFileID, task.SourceVersion)
	fmt.Fprintf(&b, "Reason:      %s\n", task.Reason)
	if task.AssignedTo != "" {
		fmt.Fprintf(&b, "Assigned to: %s\n", task.AssignedTo)
	}
	if task.Reviewer != "" {
		fmt.Fprintf(&b, "Reviewer:    %s\n", task.Reviewer)
	}
	b.WriteString("\n" + BoldStyle.Render("Proposed") + "\n")
	b.WriteString(RenderSpecifications(task.ProposedSpecifications) + "\n")
	if task.FinalizedSpecifications != nil {
		b.WriteString("\n" + BoldStyle.Render("Finalized") + "\n")
		b.WriteString(RenderSpecifications(*task.FinalizedSpecifications) + "\n")
	}

	if len(task.Comments) > 0 {
		b.WriteString("\n" + BoldStyle.Render("Comments") + "\n")
		for _, c := range task.Comments {
			fmt.Fprintf(&b, "  %s %s: %s\n", SubtleStyle.Render(c.CreatedAt.Local().Format("01-02 15:04")), c.Author, c.Body)
		}
	}

	if len(logs) > 0 {
		b.WriteString("\n" + BoldStyle.Render("History") + "\n")
		for _, l := range logs {
			line := fmt.Sprintf("  %s %-14s %s", SubtleStyle.Render(l.Timestamp.Local().Format("01-02 15:04:05")), l.Action, l.Actor)
			if l.Payload.Reason != "" {
				line += " " + SubtleStyle.Render("("+l.Payload.Reason+")")
			}
			b.WriteString(line + "\n")
		}
	}
	return RenderBox(ReviewIcon+" "+task.ID, strings.TrimRight(b.String(), "\n"))
}

// RenderStatistics summarises the review queue and extraction history.
func RenderStatistics(rs model.ReviewStatistics, es model.ExtractionStatistics) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(ChartIcon+" Review queue") + "\n")
	fmt.Fprintf(&b, "Tasks:            %d (pending %d, needs info %d, approved %d, rejected %d)\n",
		rs.Total, rs.Pending, rs.NeedsInfo, rs.Approved, rs.Rejected)
	fmt.Fprintf(&b, "Low confidence:   %d\n", rs.LowConfidenceCount)
	fmt.Fprintf(&b, "Approval rate:    %.0f%%\n", rs.ApprovalRate*100)
	fmt.Fprintf(&b, "Avg confidence:   %.2f\n", rs.AverageConfidence)
	fmt.Fprintf(&b, "Time to resolve:  %s\n\n", rs.MeanTimeToResolution.Round(time.Second))

	b.WriteString(TitleStyle.Render(ChartIcon+" Extractions") + "\n")
	fmt.Fprintf(&b, "Total:            %d (auto approved %d, sent to review %d, invalid %d)\n",
		es.Total, es.AutoApproved, es.PendingReview, es.Invalid)
	fmt.Fprintf(&b, "Avg confidence:   %.2f\n", es.AverageConfidence)
	fmt.Fprintf(&b, "Avg time:         %s\n", es.AverageProcessingTime.Round(time.Millisecond))

	types := make([]string, 0, len(es.ByPouchType))
	for pt := range es.ByPouchType {
		types = append(types, string(pt))
	}
	sort.Strings(types)
	for _, pt := range types {
		fmt.Fprintf(&b, "  %-16s %d\n", pt, es.ByPouchType[model.PouchType(pt)])
	}
	return b.String()
}
