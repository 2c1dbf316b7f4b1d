package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/cli"
	"github.com/Veraticus/pouchspec/internal/model"
)

func statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the review queue and extraction history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			rs, err := a.workflow.GetReviewStatistics(ctx)
			if err != nil {
				return fmt.Errorf("failed to compute review statistics: %w", err)
			}
			es, err := a.workflow.GetExtractionStatistics(ctx)
			if err != nil {
				return fmt.Errorf("failed to compute extraction statistics: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Review     model.ReviewStatistics     `json:"review"`
					Extraction model.ExtractionStatistics `json:"extraction"`
				}{rs, es})
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderStatistics(rs, es))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}
