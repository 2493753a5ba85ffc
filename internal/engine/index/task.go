package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"recast/internal/engine/parser"
	"recast/internal/shared/observability"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// MaxDepth caps the overlay chain under a snapshot. A build whose result
// would sit deeper is merged regardless of MergeThreshold.
const MaxDepth = 32

type Options struct {
	// Workers bounds concurrent extraction. Zero means 4.
	Workers int
	// MergeThreshold promotes the result to plain bases once the overlays
	// since the last merge carry more changes than this, counted across
	// every layer. Zero leaves only the MaxDepth cap.
	MergeThreshold int
	Logger         *slog.Logger
}

// Inputs are what a Task reads.
type Inputs struct {
	Version uint64
	Paths   []string
}

// Task builds the successor of a snapshot in the background. Its output is
// written exactly once; Wait blocks until then. Dropping a Task abandons
// its result, the goroutine still runs to completion or cancellation.
type Task struct {
	Inputs Inputs

	done chan struct{}
	out  *Snapshot
	err  error
}

// StartNext re-extracts paths and applies the results on top of current.
// Missing files are removed from the index; unchanged files are skipped.
func StartNext(ctx context.Context, p *parser.Parser, current *Snapshot, paths []string, opts Options) *Task {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	t := &Task{
		Inputs: Inputs{Version: current.Version, Paths: sorted},
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		t.out, t.err = build(ctx, p, current, sorted, opts)
	}()
	return t
}

// Build indexes paths from scratch.
func Build(ctx context.Context, p *parser.Parser, paths []string, opts Options) (*Snapshot, error) {
	return StartNext(ctx, p, Empty(), paths, opts).Wait(ctx)
}

// Done is closed once the output is available.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait returns the next snapshot, or ctx's error if ctx ends first.
func (t *Task) Wait(ctx context.Context) (*Snapshot, error) {
	select {
	case <-t.done:
		return t.out, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func build(ctx context.Context, p *parser.Parser, current *Snapshot, paths []string, opts Options) (*Snapshot, error) {
	ctx, span := observability.Tracer.Start(ctx, "index.build")
	defer span.End()
	span.SetAttributes(attribute.Int("files", len(paths)), attribute.Int64("base_version", int64(current.Version)))
	start := time.Now()

	updates := make([]*Update, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := extract(p, current, path)
			if err != nil {
				opts.Logger.Warn("index extraction failed", "path", path, "error", err)
				return nil
			}
			updates[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	next := current.Next()
	applied := 0
	for _, u := range updates {
		if u == nil {
			continue
		}
		next.Apply(*u)
		applied++
	}
	if next.Depth() > MaxDepth || (opts.MergeThreshold > 0 && next.PendingChanges() > opts.MergeThreshold) {
		next = next.Merge()
		observability.SnapshotMergesTotal.Inc()
	}

	observability.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	observability.IndexSymbols.Set(float64(next.Symbols.Len()))
	opts.Logger.Debug("index snapshot built", "version", next.Version, "files", len(paths), "updated", applied)
	return next, nil
}

// extract returns nil when the file is unchanged or was never indexed and
// is now gone.
func extract(p *parser.Parser, current *Snapshot, path string) (*Update, error) {
	old, known := current.File(path)
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if !known {
			return nil, nil
		}
		return &Update{Path: path}, nil
	}
	if err != nil {
		return nil, err
	}
	return ExtractContent(p, path, content, old, known)
}

// ExtractContent builds the update for in-memory content. prev is the
// current entry for path, if any; an unchanged hash yields nil.
func ExtractContent(p *parser.Parser, path string, content []byte, prev FileEntry, known bool) (*Update, error) {
	hash := xxhash.Sum64(content)
	if known && prev.Hash == hash {
		return nil, nil
	}
	lang := p.Language(path)
	entry := &FileEntry{Path: path, Language: lang, Hash: hash}
	if !parser.HasSymbolQuery(lang) {
		return &Update{Path: path, Entry: entry}, nil
	}
	tree, err := p.Parse(path, content)
	if err != nil {
		return nil, err
	}
	defer tree.Release()
	symbols, err := parser.ExtractSymbols(tree)
	if err != nil {
		return nil, err
	}
	return &Update{Path: path, Entry: entry, Symbols: symbols}, nil
}
