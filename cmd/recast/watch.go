package main

import (
	"context"
	"recast/internal/core/app"
	"recast/internal/shared/observability"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Re-plan changed files until interrupted",
	Long:  "Run an initial plan, then watch the project and re-plan every debounced batch of changes. Rule file edits reload the rules.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if addr := s.cfg.Observability.MetricsAddress; addr != "" {
		server := observability.NewServer(addr, func(context.Context) map[string]any {
			return map[string]any{
				"index_version": s.app.Snapshot().Version,
				"patterns":      len(s.app.Patterns()),
			}
		})
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(context.Background()); err != nil {
				s.logger.Warn("observability server shutdown failed", "error", err)
			}
		}()
	}

	out := cmd.ErrOrStderr()
	return s.app.Watch(ctx, args, func(res *app.Result, err error) {
		if err != nil {
			printError(out, err)
			if res == nil {
				return
			}
		}
		if werr := s.app.WritePlan(res.Plan, cmd.OutOrStdout()); werr != nil {
			printError(out, werr)
		}
		printPlanSummary(out, res)
	})
}
