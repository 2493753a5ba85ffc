package main

import (
	"fmt"
	"recast/internal/core/app"
	"recast/internal/core/config"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [rule files...]",
	Short: "Compile rule files and report errors",
	Long:  "Decode and compile rule files (default: the configured rules.files) without running them.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().Bool("print", false, "print each compiled pattern in KDL form")
}

func runCheck(cmd *cobra.Command, args []string) error {
	printRules, err := cmd.Flags().GetBool("print")
	if err != nil {
		return err
	}

	cfg, base, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	files := args
	if len(files) == 0 {
		paths, err := config.ResolvePaths(cfg, base)
		if err != nil {
			return err
		}
		files = paths.RuleFiles
	}
	loaded, err := app.CheckRules(files, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, file := range files {
		fmt.Fprintf(out, "%s %s: %d patterns\n", okStyle.Render("ok"), file, len(loaded[file]))
		if !printRules {
			continue
		}
		for _, pat := range loaded[file] {
			fmt.Fprintln(out, mutedStyle.Render(pat.String()))
		}
	}
	return nil
}
