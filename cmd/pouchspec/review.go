package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/cli"
	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work the review queue",
		Long: `List, inspect and decide review tasks.

A task is pending until a reviewer approves, rejects, or asks for more
information. Approved and rejected tasks are final.`,
		Example: `  pouchspec review list --open
  pouchspec review show <task-id>
  pouchspec review approve <task-id> --edited corrected.json
  pouchspec review request-info <task-id> --reason "need the die line"
  pouchspec review resume <task-id> --note "die line attached"`,
	}

	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewShowCmd())
	cmd.AddCommand(decisionCmd(model.DecisionApprove, "approve", "Approve a task, optionally with corrected specifications"))
	cmd.AddCommand(decisionCmd(model.DecisionReject, "reject", "Reject a task"))
	cmd.AddCommand(decisionCmd(model.DecisionRequestInfo, "request-info", "Ask for more information before deciding"))
	cmd.AddCommand(reviewResumeCmd())
	cmd.AddCommand(reviewCommentCmd())
	cmd.AddCommand(reviewAssignCmd())

	return cmd
}

func reviewListCmd() *cobra.Command {
	var (
		filter model.TaskFilter
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review tasks, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				filter.Status = model.ReviewStatus(status)
				if !filter.Status.IsValid() {
					return common.NewUserError(fmt.Sprintf("unknown status %q", status), common.ErrInvalidInput)
				}
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tasks, err := a.workflow.GetReviewTasks(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list review tasks: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RenderTaskTable(tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only tasks in this status (pending, needs_info, approved, rejected)")
	cmd.Flags().StringVar(&filter.AssignedTo, "assigned", "", "only tasks assigned to this reviewer")
	cmd.Flags().StringVar(&filter.SourceFileID, "file", "", "only tasks for this source file id")
	cmd.Flags().BoolVar(&filter.OpenOnly, "open", false, "only pending and needs_info tasks")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tasks as JSON")

	return cmd
}

func reviewShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its comments and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.workflow.GetReviewTask(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load task: %w", err)
			}
			logs, err := a.workflow.GetReviewLogs(ctx, task.ID)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Task *model.ReviewTask `json:"task"`
					Logs []model.ReviewLog `json:"logs"`
				}{task, logs})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTaskDetail(*task, logs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the task and its log as JSON")
	return cmd
}

func decisionCmd(kind model.DecisionKind, use, short string) *cobra.Command {
	var (
		reviewer   string
		reason     string
		editedPath string
	)

	cmd := &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if reviewer == "" {
				reviewer = defaultActor()
			}

			decision := model.ReviewDecision{
				TaskID:   args[0],
				Decision: kind,
				Reviewer: reviewer,
				Reason:   reason,
			}
			if editedPath != "" {
				specs, err := readSpecifications(editedPath)
				if err != nil {
					return err
				}
				decision.EditedSpecifications = specs
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.workflow.ProcessReviewDecision(ctx, args[0], decision)
			if err != nil {
				return decisionError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Task %s is now %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(task.ID),
				cli.FormatStatus(task.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer name (default: current user)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	if kind == model.DecisionApprove {
		cmd.Flags().StringVar(&editedPath, "edited", "", "JSON file with corrected specifications")
	}
	return cmd
}

func reviewResumeCmd() *cobra.Command {
	var (
		actor string
		note  string
	)

	cmd := &cobra.Command{
		Use:   "resume <task-id>",
		Short: "Return a needs_info task to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if actor == "" {
				actor = defaultActor()
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.workflow.ResumeReview(ctx, args[0], actor, note)
			if err != nil {
				return decisionError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Task %s is %s again\n",
				cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(task.ID), cli.FormatStatus(task.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "who is resuming (default: current user)")
	cmd.Flags().StringVar(&note, "note", "", "what was provided")
	return cmd
}

func reviewCommentCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "comment <task-id> <text>...",
		Short: "Add a comment to an open task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if author == "" {
				author = defaultActor()
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.workflow.AddReviewComment(ctx, args[0], model.Comment{
				Author: author,
				Body:   strings.Join(args[1:], " "),
			})
			if err != nil {
				return decisionError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Comment added to %s (%d total)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(task.ID), len(task.Comments))
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "comment author (default: current user)")
	return cmd
}

func reviewAssignCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "assign <task-id> [assignee]",
		Short: "Assign an open task; omit the assignee to unassign",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			assignee := ""
			if len(args) == 2 {
				assignee = args[1]
			}
			if actor == "" {
				actor = defaultActor()
			}
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.workflow.AssignReviewTask(ctx, args[0], assignee, actor)
			if err != nil {
				return decisionError(err)
			}
			who := task.AssignedTo
			if who == "" {
				who = "nobody"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Task %s assigned to %s\n",
				cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(task.ID), who)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "who is assigning (default: current user)")
	return cmd
}

// decisionError turns workflow failures into messages a reviewer can act on.
func decisionError(err error) error {
	var stateErr *common.StateError
	switch {
	case errors.As(err, &stateErr):
		return common.NewUserError(fmt.Sprintf("task %s is %s and cannot %s", stateErr.TaskID, stateErr.From, stateErr.Attempted), err)
	case errors.Is(err, common.ErrDataIntegrity):
		return common.NewUserError("no such review task", err)
	case errors.Is(err, common.ErrInvalidDecision), errors.Is(err, common.ErrInvalidInput):
		return common.NewUserError("invalid request", err)
	default:
		return err
	}
}
