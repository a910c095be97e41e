package cli

import (
	"github.com/spf13/cobra"

	"moexwatch/internal/app"
)

var (
	simulateDiff  float64
	simulateValue float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a test move alert to the configured chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Diff:  simulateDiff,
			Value: simulateValue,
		})
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateDiff, "diff", 0, "Simulated move in index points (sign picks the direction)")
	simulateCmd.Flags().Float64Var(&simulateValue, "value", 0, "Simulated current index value")
}
