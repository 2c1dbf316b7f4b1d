package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/pouchspec/internal/heuristics"
)

func tablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect the heuristic tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective heuristic tables as YAML",
		Long: `Print the tables in effect (defaults plus any --tables override).
The output is a valid override file and a good starting point for tuning.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tables, err := cfg.LoadTables()
			if err != nil {
				return err
			}
			data, err := heuristics.Marshal(tables)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
