package main

import (
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded plan runs and how they changed",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Duration("window", 0, "only show runs within this window of the newest run (0 shows all)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	window, err := cmd.Flags().GetDuration("window")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.app.History(window)
	if err != nil {
		return err
	}
	printTrend(cmd.OutOrStdout(), report)
	return nil
}
