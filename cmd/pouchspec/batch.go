package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/cli"
	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/extractor"
	"github.com/Veraticus/pouchspec/internal/review"
)

type batchSummary struct {
	failed   []string
	total    int
	auto     int
	reviewed int
}

func batchCmd() *cobra.Command {
	var (
		parallel    int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "batch <file-or-dir>...",
		Short: "Extract specifications from many design files",
		Long: `Extract every *.json design file under the given paths in parallel and
route each result through the review gatekeeper.`,
		Example: `  pouchspec batch designs/ --parallel 8
  pouchspec batch designs/ --metrics-addr :9102`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectDesignFiles(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return common.NewUserError("no design files found", nil)
			}

			handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
			ctx, stop := handler.HandleInterrupts(cmd.Context(), "pouchspec batch "+strings.Join(args, " "))
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			addr := metricsAddr
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			serveMetrics(ctx, addr)

			if !cmd.Flags().Changed("parallel") {
				parallel = a.cfg.Parallel
			}

			ex, err := a.extractor()
			if err != nil {
				return err
			}

			summary := batchSummary{total: len(paths)}
			inputs := make([]extractor.BatchInput, 0, len(paths))
			for _, p := range paths {
				file, err := readDesignFile(p)
				if err != nil {
					slog.Warn("Skipping unreadable design file", "path", p, "error", err)
					summary.failed = append(summary.failed, p)
					continue
				}
				inputs = append(inputs, extractor.BatchInput{File: *file})
			}

			start := time.Now()
			items := ex.ExtractBatch(ctx, inputs, parallel)
			var perItem time.Duration
			if len(items) > 0 {
				perItem = time.Since(start) / time.Duration(len(items))
			}

			bar := progressbar.NewOptions(len(items),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Routing extractions...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)

			actor := defaultActor()
			for _, item := range items {
				if item.Err != nil {
					summary.failed = append(summary.failed, item.FileID)
					continue
				}
				task, err := a.workflow.CreateReviewForLowConfidence(ctx, item.Result,
					review.LogOptions{Actor: actor, ProcessingTime: perItem})
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					slog.Error("Failed to record extraction", "file_id", item.FileID, "error", err)
					summary.failed = append(summary.failed, item.FileID)
					continue
				}
				if task == nil {
					summary.auto++
				} else {
					summary.reviewed++
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())

			if handler.WasInterrupted() {
				return ctx.Err()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderBox("Batch complete", renderBatchSummary(summary, time.Since(start))))
			return nil
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "number of files to extract concurrently (default: extraction.parallel)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func renderBatchSummary(s batchSummary, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Files:         %d\n", s.total)
	fmt.Fprintf(&b, "  • Auto approved: %d\n", s.auto)
	fmt.Fprintf(&b, "  • Sent to review: %d\n", s.reviewed)
	fmt.Fprintf(&b, "  • Failed:        %d\n", len(s.failed))
	fmt.Fprintf(&b, "  • Time taken:    %s", elapsed.Round(time.Millisecond))
	for _, f := range s.failed {
		b.WriteString("\n    " + cli.ErrorStyle.Render(f))
	}
	return b.String()
}

// collectDesignFiles expands directories to the *.json files they contain.
func collectDesignFiles(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		err := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if path == arg || strings.EqualFold(filepath.Ext(path), ".json") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
