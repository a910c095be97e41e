package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"moexwatch/internal/app"
)

var (
	backfillWindow string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Seed the state file from MOEX candle history",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.BackfillOptions{DryRun: backfillDryRun}

		if backfillWindow != "" {
			window, err := time.ParseDuration(backfillWindow)
			if err != nil {
				return fmt.Errorf("invalid --window value: %w", err)
			}
			opts.Window = window
		}

		return getApp().Backfill(cmd.Context(), opts)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillWindow, "window", "", "How far back to fetch candles (defaults to config)")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Fetch and report without writing the state file")
}
