package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/inspector"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize converted Parquet tables using DuckDB",
	Long: `Groups every <data_dir>/<yyyy_q>/parquet/*.parquet file by table name and uses an
in-memory DuckDB to report each table's schema, file count and total row count.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		logger.Info("Starting Parquet inspection.", "data_dir", cfg.DataDir)
		tables, err := inspector.Inspect(cmd.Context(), cfg.DataDir, cmd.OutOrStdout(), logger)
		if err != nil {
			logger.Error("Inspection completed with errors", "error", err)
			return fmt.Errorf("inspection failed: %w", err)
		}
		logger.Info("Parquet inspection completed.", "tables", len(tables))
		return nil
	},
}
