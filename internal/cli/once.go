package cli

import (
	"github.com/spf13/cobra"

	"portfolio-watch/internal/app"
)

var (
	onceDate      string
	onceNoPersist bool
	onceNoNotify  bool
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Value the portfolio once and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.OnceOptions{
			NoPersist: onceNoPersist,
			NoNotify:  onceNoNotify,
		}
		if onceDate != "" {
			day, err := parseDay("date", onceDate)
			if err != nil {
				return err
			}
			opts.Date = day
		}

		_, err := getApp().Once(cmd.Context(), opts)
		return err
	},
}

func init() {
	onceCmd.Flags().StringVar(&onceDate, "date", "", "Valuation date (YYYY-MM-DD, defaults to today)")
	onceCmd.Flags().BoolVar(&onceNoPersist, "no-persist", false, "Do not write the daily log")
	onceCmd.Flags().BoolVar(&onceNoNotify, "no-notify", false, "Do not send alerts")
}
