package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/cli"
	"github.com/Veraticus/pouchspec/internal/model"
	"github.com/Veraticus/pouchspec/internal/review"
)

func extractCmd() *cobra.Command {
	var (
		quotationPath string
		noReview      bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "extract <design-file.json>",
		Short: "Extract specifications from one design file",
		Long: `Extract pouch specifications from a decoded design file.

Results below the review threshold, or that fail validation, open a review
task (or reuse the one already open for the file). Every run is recorded in
the extraction log.`,
		Example: `  # Extract and route to review when needed
  pouchspec extract designs/coffee-250g.json

  # Cross-check against the quotation the customer accepted
  pouchspec extract designs/coffee-250g.json --quotation quotes/q-1042.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			file, err := readDesignFile(args[0])
			if err != nil {
				return err
			}
			quotation, err := readQuotation(quotationPath)
			if err != nil {
				return err
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ex, err := a.extractor()
			if err != nil {
				return err
			}

			start := time.Now()
			result := ex.ExtractSpecifications(file, quotation)
			opts := review.LogOptions{Actor: defaultActor(), ProcessingTime: time.Since(start)}

			var task *model.ReviewTask
			if noReview {
				err = a.workflow.LogExtraction(ctx, result, opts)
			} else {
				task, err = a.workflow.CreateReviewForLowConfidence(ctx, result, opts)
			}
			if err != nil {
				return fmt.Errorf("failed to record extraction: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, struct {
					Result model.ExtractionResult `json:"result"`
					Task   *model.ReviewTask      `json:"task,omitempty"`
				}{result, task})
			}

			fmt.Fprintln(out, cli.RenderExtraction(result))
			switch {
			case noReview:
				fmt.Fprintln(out, cli.FormatInfo("Logged without review routing"))
			case task == nil:
				fmt.Fprintln(out, cli.FormatSuccess("Confidence is above the review threshold"))
			default:
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Review task %s (%s)", task.ID, task.Reason)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&quotationPath, "quotation", "q", "", "quotation JSON to cross-check against")
	cmd.Flags().BoolVar(&noReview, "no-review", false, "record the extraction without opening a review task")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}
