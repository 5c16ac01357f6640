package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/config"
	"github.com/brensch/edgarfsn/internal/report"
)

var (
	skipConvert bool
	skipUpload  bool
)

var runCmd = &cobra.Command{
	Use:   "run [period...]",
	Short: "Run the full fetch, convert and upload workflow",
	Long: `Performs the complete pipeline:
1. Fetches and extracts the notes archive for every period (or the named ones).
2. Converts the extracted TSV tables to Parquet (unless --skip-convert).
3. Uploads the data tree to the configured bucket (unless --skip-upload, or
   when no bucket is configured).
Each phase is best-effort; failures are reported in the phase summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		periods, err := resolvePeriods(cfg, args, time.Now())
		if err != nil {
			return err
		}
		if err := cfg.ValidateFetch(); err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		out := cmd.OutOrStdout()
		var summaries []report.Summary

		logger.Info("Starting run workflow.", "periods", len(periods), "run_id", getLedger().RunID())
		fetchSum, err := runFetch(ctx, cfg, periods, nil)
		if err != nil {
			return fmt.Errorf("fetch phase: %w", err)
		}
		summaries = append(summaries, fetchSum)

		if !skipConvert && ctx.Err() == nil {
			summaries = append(summaries, runConvert(ctx, cfg, nil))
		}

		switch {
		case skipUpload || ctx.Err() != nil:
		case cfg.Bucket.Name == "":
			logger.Warn("No bucket configured; skipping upload.")
		default:
			sum, err := runUpload(ctx, cfg, nil)
			if err != nil {
				return fmt.Errorf("upload phase: %w", err)
			}
			summaries = append(summaries, sum)
		}

		var firstErr error
		for _, s := range summaries {
			if err := finishBatch(out, s); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	},
}

func init() {
	fs := runCmd.Flags()
	fs.BoolVar(&skipConvert, "skip-convert", false, "Do not convert TSV tables to Parquet")
	fs.BoolVar(&skipUpload, "skip-upload", false, "Do not upload the data tree")
	fs.Bool("concurrent", false, "Upload files using a pool of workers")
	fs.Int("upload-workers", config.DefaultUploadWorkers, "Number of upload workers with --concurrent")
	fs.Int("convert-workers", config.DefaultConvertWorkers, "Number of concurrent conversion workers")
	bindFlags(fs, map[string]string{
		"upload.concurrent": "concurrent",
		"upload.workers":    "upload-workers",
		"convert.workers":   "convert-workers",
	})
}
