package main

import (
	"recast/internal/core/config"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [paths...]",
	Short: "Run the rules and write the resulting plan",
	Long:  "Scan the given paths (default: the project root), run every rule and write the recorded issues as a plan.",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringP("output", "o", "", "plan output file, - for stdout (overrides plan.output)")
	planCmd.Flags().String("format", "", "plan format: json or msgpack (overrides plan.format)")
	planCmd.Flags().Bool("preview", false, "print unified diffs of the planned edits")
}

func runPlan(cmd *cobra.Command, args []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	preview, err := cmd.Flags().GetBool("preview")
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd, func(cfg *config.Config) {
		if cmd.Flags().Changed("output") {
			cfg.Plan.Output = output
		}
		if cmd.Flags().Changed("format") {
			cfg.Plan.Format = format
		}
		if preview {
			cfg.Plan.Preview = true
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.app.Plan(ctx, args)
	if err != nil && res == nil {
		return err
	}
	if res != nil {
		if werr := s.app.WritePlan(res.Plan, cmd.OutOrStdout()); werr != nil {
			return werr
		}
		if s.cfg.Plan.Preview {
			previews, perr := s.app.Preview(res.Plan)
			if perr != nil {
				return perr
			}
			printPreviews(cmd.ErrOrStderr(), previews)
		}
		if herr := s.app.RecordRun("plan", res); herr != nil {
			s.logger.Warn("failed to record run", "error", herr)
		}
		printPlanSummary(cmd.ErrOrStderr(), res)
	}
	return err
}
