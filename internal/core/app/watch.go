package app

import (
	"context"
	"fmt"
	"path/filepath"
	"recast/internal/core/watcher"
	"recast/internal/engine/index"
	"recast/internal/shared/util"
	"time"
)

// Watch plans roots once and then re-plans every debounced batch of changed
// files until ctx ends. A change to a rule file reloads the rules and
// re-plans everything. onResult receives every run, failed ones included;
// successful runs are also recorded to history when it is enabled.
func (a *App) Watch(ctx context.Context, roots []string, onResult func(*Result, error)) error {
	recorder, err := a.StartRecorder()
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			a.logger.Warn("failed to close history", "error", err)
		}
	}()
	report := func(res *Result, err error) {
		if err == nil && res != nil {
			recorder.Record(a.runRecord("watch", res))
		}
		onResult(res, err)
	}

	report(a.Plan(ctx, roots))
	if ctx.Err() != nil {
		return nil
	}

	changes := make(chan []string, 16)
	w, err := watcher.NewWatcher(a.Paths.ProjectRoot, a.Config.Watch.Debounce, a.exclude, func(paths []string) {
		select {
		case changes <- paths:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	w.SetFilter(func(path string) bool {
		return a.IsRuleFile(path) || a.Accepts(path)
	})
	w.SetLimiter(util.NewLimiter(a.Config.Watch.RatePerSecond, 1))
	if err := w.Watch(a.watchRoots(roots)); err != nil {
		return err
	}
	a.logger.Info("watching for changes", "root", a.Paths.ProjectRoot, "debounce", a.Config.Watch.Debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-changes:
			report(a.HandleChanges(ctx, roots, paths))
		}
	}
}

// HandleChanges re-plans one batch of changed paths.
func (a *App) HandleChanges(ctx context.Context, roots, paths []string) (*Result, error) {
	start := time.Now()

	var files []string
	for _, path := range paths {
		if a.IsRuleFile(path) {
			a.logger.Info("rule file changed, reloading", "path", path)
			if err := a.ReloadRules(); err != nil {
				return nil, fmt.Errorf("reload rules: %w", err)
			}
			return a.Plan(ctx, roots)
		}
		files = append(files, filepath.Clean(path))
	}

	var task *index.Task
	if a.Config.Index.Enabled {
		task = index.StartNext(ctx, a.Parser, a.Snapshot(), a.indexable(files), a.indexOptions())
	}

	present := files[:0]
	for _, f := range files {
		if exists(f) {
			present = append(present, f)
		}
	}

	if task != nil {
		next, err := task.Wait(ctx)
		if err != nil {
			return nil, fmt.Errorf("update index: %w", err)
		}
		a.setSnapshot(next)
	}
	return a.planFiles(ctx, present, start)
}

func (a *App) watchRoots(roots []string) []string {
	if len(roots) == 0 {
		return []string{a.Paths.ProjectRoot}
	}
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(a.Paths.ProjectRoot, root)
		}
		out = append(out, filepath.Clean(root))
	}
	return out
}
