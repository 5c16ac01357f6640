package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the filing periods from the configured start year to the current quarter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		periods, err := resolvePeriods(cfg, nil, time.Now())
		if err != nil {
			return err
		}
		completed, err := getLedger().CompletedPeriods(cmd.Context())
		if err != nil {
			getLogger().Warn("Could not read completed periods from ledger.", "error", err)
		}
		done := make(map[string]bool, len(completed))
		for _, id := range completed {
			done[id] = true
		}

		out := cmd.OutOrStdout()
		for _, p := range periods {
			mark := " "
			if done[p.String()] {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s\t%s\n", mark, p, p.Dir())
		}
		fmt.Fprintf(out, "%d periods, %d complete in ledger\n", len(periods), len(done))
		return nil
	},
}
