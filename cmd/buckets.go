package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/bucket"
)

var bucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "Manage buckets on the configured object store",
}

var bucketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the buckets visible to the configured credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := bucket.New(cmd.Context(), getConfig())
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.ListBuckets(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var bucketsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a bucket (defaults to bucket.name) in the configured region",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		name := cfg.Bucket.Name
		if len(args) > 0 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("bucket name required")
		}

		store, err := bucket.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.CreateBucket(cmd.Context(), name, cfg.Bucket.Region); err != nil {
			return err
		}
		getLogger().Info("Bucket ready.", "bucket", name, "backend", cfg.Bucket.Backend, "region", cfg.Bucket.Region)
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

func init() {
	bucketsCmd.AddCommand(bucketsListCmd, bucketsCreateCmd)
}
