package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/cli"
	"github.com/Veraticus/pouchspec/internal/storage"
)

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage database snapshots",
		Long: `Create, list, verify, restore, and delete snapshots of the review database.

Snapshots are full copies stored in a snapshots directory next to the database.`,
		Example: `  pouchspec db backup --name before-reimport
  pouchspec db backups
  pouchspec db restore before-reimport`,
	}

	cmd.AddCommand(dbBackupCmd())
	cmd.AddCommand(dbBackupsCmd())
	cmd.AddCommand(dbVerifyCmd())
	cmd.AddCommand(dbRestoreCmd())
	cmd.AddCommand(dbDeleteCmd())

	return cmd
}

// withSnapshots opens the database and hands a snapshot manager to fn.
func withSnapshots(cmd *cobra.Command, fn func(*storage.SnapshotManager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manager, err := storage.NewSnapshotManager(store)
	if err != nil {
		return fmt.Errorf("failed to create snapshot manager: %w", err)
	}
	return fn(manager)
}

func dbBackupCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd, func(m *storage.SnapshotManager) error {
				info, err := m.Create(cmd.Context(), name, description)
				if err != nil {
					return fmt.Errorf("failed to create snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Created snapshot %s (%s, %d tasks)\n",
					cli.SuccessStyle.Render(cli.SuccessIcon),
					cli.InfoStyle.Render(info.Name),
					formatFileSize(info.FileSize),
					info.TaskCount)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "snapshot name (generated if not provided)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description of the snapshot")
	return cmd
}

func dbBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "backups",
		Aliases: []string{"list"},
		Short:   "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd, func(m *storage.SnapshotManager) error {
				snapshots, err := m.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list snapshots: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(snapshots) == 0 {
					fmt.Fprintln(out, cli.SubtleStyle.Render("No snapshots found."))
					return nil
				}

				fmt.Fprintln(out, cli.BoldStyle.Render(cli.FolderIcon+" Snapshots in "+m.Dir()))
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tCREATED\tSIZE\tTASKS\tLOG ENTRIES\tSCHEMA\tTYPE")
				now := time.Now()
				for _, s := range snapshots {
					kind := "manual"
					if s.IsAuto {
						kind = "auto"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						s.Name,
						formatRelativeTime(s.CreatedAt, now),
						formatFileSize(s.FileSize),
						s.TaskCount,
						s.ReviewLogCount+s.ExtractionLogCount,
						s.SchemaVersion,
						kind)
				}
				return w.Flush()
			})
		},
	}
}

func dbVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <name>",
		Short: "Check a snapshot's integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd, func(m *storage.SnapshotManager) error {
				if err := m.Verify(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Snapshot "+args[0]+" is intact"))
				return nil
			})
		},
	}
}

func dbRestoreCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Replace the database with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !force && !confirm(cmd, fmt.Sprintf("This will replace the review database with snapshot %s.", name)) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Restore cancelled."))
				return nil
			}
			return withSnapshots(cmd, func(m *storage.SnapshotManager) error {
				if _, err := m.AutoSnapshot(cmd.Context(), "restore"); err != nil {
					return err
				}
				if err := m.Restore(cmd.Context(), name); err != nil {
					return fmt.Errorf("failed to restore snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Restored from snapshot %s\n",
					cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(name))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")
	return cmd
}

func dbDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !force && !confirm(cmd, fmt.Sprintf("This will permanently delete snapshot %s.", name)) {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Deletion cancelled."))
				return nil
			}
			return withSnapshots(cmd, func(m *storage.SnapshotManager) error {
				if err := m.Delete(cmd.Context(), name); err != nil {
					return fmt.Errorf("failed to delete snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted snapshot %s\n",
					cli.SuccessStyle.Render(cli.SuccessIcon), cli.InfoStyle.Render(name))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")
	return cmd
}

func confirm(cmd *cobra.Command, warning string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\nContinue? (y/N) ", cli.WarningStyle.Render(cli.WarningIcon), warning)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}
