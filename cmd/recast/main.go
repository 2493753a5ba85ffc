package main

import (
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "recast",
	Short:         "Rule-driven source search and rewrite planning",
	Long:          "recast runs search/transform rules over a source tree and records the proposed edits as a plan.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(initCmd)

	rootCmd.PersistentFlags().String("config", "", "path to recast.toml (default: discovered from the working directory)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
