// Package pattern runs compiled patterns over files and records what their
// actions propose into a plan.
package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"recast/internal/core/errors"
	"recast/internal/engine/artifact"
	"recast/internal/engine/deps"
	"recast/internal/engine/plan"
	"recast/internal/engine/rule"
	"recast/internal/engine/source"
	"recast/internal/shared/observability"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

type Options struct {
	Logger *slog.Logger
	// Seeds are set into the cache for every file, e.g. the index snapshot.
	Seeds map[deps.Key]any
}

// Driver matches, executes and records. A Driver runs one plan at a time.
type Driver struct {
	patterns []*rule.Pattern
	graph    *deps.Graph
	seeds    map[deps.Key]any
	logger   *slog.Logger
	failures int
}

func New(patterns []*rule.Pattern, graph *deps.Graph, opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	seeds := make(map[deps.Key]any, len(opts.Seeds))
	for k, v := range opts.Seeds {
		seeds[k] = v
	}
	return &Driver{patterns: patterns, graph: graph, seeds: seeds, logger: opts.Logger}
}

// Seed replaces a per-file seed for subsequent runs. A nil value removes it.
func (d *Driver) Seed(k deps.Key, v any) {
	if v == nil {
		delete(d.seeds, k)
		return
	}
	d.seeds[k] = v
}

func (d *Driver) Patterns() []*rule.Pattern {
	return d.patterns
}

// Failures is the number of failed (pattern, file) pairs in the last run.
func (d *Driver) Failures() int {
	return d.failures
}

// Run processes files from disk. Cancellation is checked between files; the
// plan built so far is returned with ctx's error.
func (d *Driver) Run(ctx context.Context, paths []string) (*plan.Plan, error) {
	return d.run(ctx, len(paths), func(c *deps.Context, i int) string {
		c.Set(artifact.KeyPath, paths[i])
		return paths[i]
	})
}

// RunSources processes in-memory contents.
func (d *Driver) RunSources(ctx context.Context, sources []*source.FileContents) (*plan.Plan, error) {
	return d.run(ctx, len(sources), func(c *deps.Context, i int) string {
		c.Set(artifact.KeyPath, sources[i].Path())
		c.Set(artifact.KeyContents, sources[i])
		return sources[i].Path()
	})
}

func (d *Driver) run(ctx context.Context, n int, load func(c *deps.Context, i int) string) (*plan.Plan, error) {
	ctx, span := observability.Tracer.Start(ctx, "pattern.run")
	defer span.End()
	span.SetAttributes(attribute.Int("files", n), attribute.Int("patterns", len(d.patterns)))
	start := time.Now()
	defer func() { observability.RunDuration.Observe(time.Since(start).Seconds()) }()

	p := plan.New()
	for _, pat := range d.patterns {
		p.AddPattern(pat.Name, pat.String())
	}
	var ids plan.IDGenerator
	d.failures = 0
	c := deps.NewContext(d.graph, d.logger)
	defer c.Reset()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		c.Reset()
		for k, v := range d.seeds {
			c.Set(k, v)
		}
		path := load(c, i)
		for _, pat := range d.patterns {
			if err := d.runPattern(c, p, &ids, pat, path); err != nil {
				d.failures++
				observability.PatternFailuresTotal.WithLabelValues(pat.Name).Inc()
				d.logger.Warn("pattern failed", "path", path, "pattern", pat.String(), "error", err)
			}
		}
		observability.FilesProcessedTotal.Inc()
	}

	span.SetAttributes(attribute.Int("issues", p.Len()))
	d.logger.Debug("run complete", "files", n, "issues", p.Len())
	return p, nil
}

// runPattern handles one (pattern, file) pair. A panic is returned as an
// error so that one bad pair never ends the run.
func (d *Driver) runPattern(c *deps.Context, p *plan.Plan, ids *plan.IDGenerator, pat *rule.Pattern, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.CodeInternal, "panic: %v", r)
		}
	}()

	if !pat.Search.Search.Applies(path) {
		return nil
	}
	matches, err := pat.Search.Search.Find(c)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}
	fc, ok := deps.Get[*source.FileContents](c, artifact.KeyContents)
	if !ok {
		return errors.AddContext(errors.New(errors.CodeNotFound, "file contents unavailable"), errors.CtxPath, path)
	}

	for _, m := range matches {
		issue, err := plan.NewIssue(ids.Next(), pat.Name, fc, m.Range)
		if err != nil {
			return err
		}
		c.Set(artifact.KeyMatch, m)
		c.Set(artifact.KeyIssue, issue)

		steps, err := pat.Action.Action.Steps(c, issue)
		if err != nil {
			return fmt.Errorf("action at %s: %w", m.Range, err)
		}
		if err := issue.Finalize(fc, steps); err != nil {
			return err
		}
		c.Set(artifact.KeyIssue, issue)
		p.Add(issue)
		observability.IssuesRecordedTotal.WithLabelValues(pat.Name).Inc()

		if d.logger.Enabled(context.Background(), slog.LevelDebug) {
			at, _ := deps.Get[string](c, artifact.KeyFormattedRange)
			d.logger.Debug("issue recorded", "pattern", pat.Name, "at", at, "steps", len(steps))
		}
	}
	return nil
}
