package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/config"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert extracted TSV tables to Parquet",
	Long: `Converts every <data_dir>/<yyyy_q>/source/*.tsv into
<data_dir>/<yyyy_q>/parquet/<table>.parquet using a pool of workers.
Column types are inferred from the first rows of each file. Existing
Parquet files are skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()
		return finishBatch(cmd.OutOrStdout(), runConvert(ctx, getConfig(), nil))
	},
}

func init() {
	convertCmd.Flags().Int("workers", config.DefaultConvertWorkers, "Number of concurrent conversion workers")
	convertCmd.Flags().Int("schema-rows", config.DefaultSchemaRowLimit, "Rows sampled for column type inference")
	bindFlags(convertCmd.Flags(), map[string]string{
		"convert.workers":     "workers",
		"convert.schema_rows": "schema-rows",
	})
}
