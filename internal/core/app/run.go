package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"recast/internal/data/history"
	"recast/internal/engine/index"
	"recast/internal/engine/plan"
	"recast/internal/shared/util"
	"time"
)

// Result is one completed (or cancelled) plan run.
type Result struct {
	Plan         *plan.Plan
	Files        []string
	Duration     time.Duration
	Failures     int
	IndexVersion uint64
}

// Plan scans roots, refreshes the index when enabled and runs every pattern.
// On cancellation the partial result is returned with ctx's error.
func (a *App) Plan(ctx context.Context, roots []string) (*Result, error) {
	start := time.Now()
	files, err := a.ScanFiles(roots)
	if err != nil {
		return nil, err
	}

	if a.Config.Index.Enabled {
		task := index.StartNext(ctx, a.Parser, a.Snapshot(), a.indexable(files), a.indexOptions())
		next, err := task.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		a.setSnapshot(next)
	}

	return a.planFiles(ctx, files, start)
}

func (a *App) planFiles(ctx context.Context, files []string, start time.Time) (*Result, error) {
	d := a.newDriver()
	p, err := d.Run(ctx, files)
	res := &Result{
		Plan:         p,
		Files:        files,
		Duration:     time.Since(start),
		Failures:     d.Failures(),
		IndexVersion: a.Snapshot().Version,
	}
	a.logger.Info("plan complete",
		"files", len(files),
		"patterns", len(d.Patterns()),
		"issues", p.Len(),
		"failures", res.Failures,
		"duration", res.Duration,
		"heap_mb", util.HeapAllocMB(),
	)
	return res, err
}

func (a *App) indexable(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if a.Parser.IsSupportedPath(f) {
			out = append(out, f)
		}
	}
	return out
}

// WritePlan encodes p to the configured output. An empty output or "-"
// writes to stdout.
func (a *App) WritePlan(p *plan.Plan, stdout io.Writer) error {
	format := plan.Format(a.Config.Plan.Format)
	target := a.Paths.PlanOutput
	if target == "" || target == "-" {
		return p.Encode(stdout, format)
	}

	f, err := util.CreateWithDirs(target)
	if err != nil {
		return fmt.Errorf("create plan output %q: %w", target, err)
	}
	if err := p.Encode(f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Preview applies p in memory to the files on disk.
func (a *App) Preview(p *plan.Plan) ([]plan.FilePreview, error) {
	return p.Preview(func(path string) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

// RecordRun saves res to the run history. It is a no-op when history is
// disabled.
func (a *App) RecordRun(command string, res *Result) error {
	if !a.Config.History.Enabled || res == nil || res.Plan == nil {
		return nil
	}
	store, err := history.Open(a.Paths.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(a.runRecord(command, res))
}

func (a *App) runRecord(command string, res *Result) history.Run {
	counts := make(map[string]int)
	for _, issue := range res.Plan.Issues {
		counts[issue.Pattern]++
	}
	return history.Run{
		ID:           res.Plan.ID,
		ProjectKey:   a.Paths.ProjectRoot,
		Command:      command,
		Timestamp:    res.Plan.CreatedAt,
		Duration:     res.Duration,
		FileCount:    len(res.Files),
		PatternCount: len(res.Plan.Patterns),
		IssueCount:   res.Plan.Len(),
		FailureCount: res.Failures,
		Fingerprint:  res.Plan.Fingerprint(),
		IndexVersion: res.IndexVersion,
		Patterns:     counts,
	}
}

// History loads the runs recorded for this project within window of the
// newest one. A zero window returns every run.
func (a *App) History(window time.Duration) (history.TrendReport, error) {
	store, err := history.Open(a.Paths.HistoryPath)
	if err != nil {
		return history.TrendReport{}, err
	}
	defer store.Close()

	runs, err := store.LoadRuns(a.Paths.ProjectRoot, time.Time{})
	if err != nil {
		return history.TrendReport{}, err
	}
	return history.BuildTrendReport(a.Paths.ProjectRoot, runs, window)
}
