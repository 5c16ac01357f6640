package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brensch/edgarfsn/internal/db"
)

var (
	stateLimit       int
	stateFilterEvent string
)

var stateCmd = &cobra.Command{
	Use:   "state [item-type]",
	Short: "View the ledger history for periods, entries, parquet files or objects",
	Long: `Queries the DuckDB ledger and displays the event history.
Specify 'archives', 'entries', 'parquet' or 'objects' to filter by item type.
Use --event to filter by event (e.g. download_end, upload_end, error).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		typeFilter := ""
		if len(args) > 0 {
			var err error
			if typeFilter, err = itemTypeFilter(args[0]); err != nil {
				return err
			}
		}

		logger.Debug("Querying ledger", "type_filter", typeFilter, "event_filter", stateFilterEvent, "limit", stateLimit)
		out := cmd.OutOrStdout()
		if err := getLedger().DisplayHistory(cmd.Context(), out, typeFilter, stateFilterEvent, stateLimit); err != nil {
			logger.Error("Failed to display ledger history", "error", err)
			return err
		}

		completed, err := getLedger().CompletedPeriods(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nCompleted periods (%d): %s\n", len(completed), strings.Join(completed, " "))
		return nil
	},
}

func itemTypeFilter(arg string) (string, error) {
	switch strings.ToLower(arg) {
	case "archive", "archives", "period", "periods":
		return db.ItemTypeArchive, nil
	case "entry", "entries":
		return db.ItemTypeEntry, nil
	case "parquet":
		return db.ItemTypeParquet, nil
	case "object", "objects":
		return db.ItemTypeObject, nil
	}
	return "", fmt.Errorf("invalid item type filter: %s (use archives, entries, parquet or objects)", arg)
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of ledger records displayed")
	stateCmd.Flags().StringVarP(&stateFilterEvent, "event", "e", "", "Filter records by event (e.g. download_end, error)")
}
