package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/cli"
	"github.com/Veraticus/pouchspec/internal/export"
	"github.com/Veraticus/pouchspec/internal/model"
)

func exportCmd() *cobra.Command {
	var (
		outPath string
		status  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the review queue, audit log and statistics to an XLSX workbook",
		Example: `  pouchspec export --out review-2026-03.xlsx
  pouchspec export --out approved.xlsx --status approved`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tasks, err := a.workflow.GetReviewTasks(ctx, model.TaskFilter{Status: model.ReviewStatus(status)})
			if err != nil {
				return fmt.Errorf("failed to list review tasks: %w", err)
			}
			logs, err := a.workflow.GetAllReviewLogs(ctx)
			if err != nil {
				return fmt.Errorf("failed to read review log: %w", err)
			}
			rs, err := a.workflow.GetReviewStatistics(ctx)
			if err != nil {
				return err
			}
			es, err := a.workflow.GetExtractionStatistics(ctx)
			if err != nil {
				return err
			}

			f, err := os.Create(outPath) //nolint:gosec // user-chosen output path
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer func() { _ = f.Close() }()

			report := export.Report{
				GeneratedAt:     time.Now(),
				Tasks:           tasks,
				ReviewLogs:      logs,
				ReviewStats:     rs,
				ExtractionStats: es,
			}
			if err := export.NewWriter(slog.Default()).Write(f, report); err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d tasks to %s", len(tasks), outPath)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "pouchspec-review.xlsx", "output workbook path")
	cmd.Flags().StringVar(&status, "status", "", "only export tasks in this status")
	return cmd
}
