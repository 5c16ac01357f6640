package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/config"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the local data tree to the configured bucket",
	Long: `Walks <data_dir> and uploads every regular file to the bucket, keyed by its
path relative to <data_dir> (optionally under bucket.key_prefix). Uploads run
one at a time unless --concurrent is set. A failed upload is logged and the
walk continues.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		sum, err := runUpload(ctx, getConfig(), nil)
		if err != nil {
			return err
		}
		return finishBatch(cmd.OutOrStdout(), sum)
	},
}

func init() {
	fs := uploadCmd.Flags()
	fs.Bool("concurrent", false, "Upload files using a pool of workers")
	fs.Int("workers", config.DefaultUploadWorkers, "Number of upload workers with --concurrent")
	fs.String("key-prefix", "", "Prefix prepended to every object key")
	bindFlags(fs, map[string]string{
		"upload.concurrent": "concurrent",
		"upload.workers":    "workers",
		"bucket.key_prefix": "key-prefix",
	})
}
