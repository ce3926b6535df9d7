package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateTotal int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a simulated alert for the given portfolio total",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("total") {
			return errors.New("--total must be provided")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateTotal)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateTotal, "total", 0, "Portfolio total to evaluate against the threshold band")
}
