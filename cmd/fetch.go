package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [period...]",
	Short: "Download and extract the notes archive for each period",
	Long: `Downloads <period>_notes.zip for every period (or only the named ones, e.g.
2019q3 2020_1) and extracts its tables into <data_dir>/<yyyy_q>/source.
Files that already exist locally are kept. A failed period is logged and the
batch continues with the next one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		periods, err := resolvePeriods(cfg, args, time.Now())
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		getLogger().Info("Starting fetch.", "periods", len(periods))
		sum, err := runFetch(ctx, cfg, periods, nil)
		if err != nil {
			return err
		}
		return finishBatch(cmd.OutOrStdout(), sum)
	},
}
