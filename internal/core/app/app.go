// Package app wires configuration, rules, parsing, indexing, the pattern
// driver and run history into the operations the CLI exposes.
package app

import (
	"fmt"
	"log/slog"
	"recast/internal/core/config"
	"recast/internal/engine/artifact"
	"recast/internal/engine/deps"
	"recast/internal/engine/index"
	"recast/internal/engine/nodes"
	"recast/internal/engine/parser"
	"recast/internal/engine/pattern"
	"recast/internal/engine/rule"
	"recast/internal/shared/util"
	"sync"
)

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths
	Parser *parser.Parser

	compiler *rule.Compiler
	graph    *deps.Graph
	include  *util.GlobSet
	exclude  *util.GlobSet
	logger   *slog.Logger

	mu       sync.RWMutex
	patterns []*rule.Pattern
	snapshot *index.Snapshot
}

// New builds the parser and compiler for cfg and loads the configured rule
// files. paths must come from config.ResolvePaths.
func New(cfg *config.Config, paths config.ResolvedPaths, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := parser.BuildLanguageRegistry(cfg.LanguageOverrides())
	if err != nil {
		return nil, err
	}
	loader, err := parser.NewGrammarLoader(registry)
	if err != nil {
		return nil, err
	}
	p := parser.NewParser(loader, logger)

	compiler, err := nodes.NewCompiler(logger)
	if err != nil {
		return nil, err
	}

	include, err := cfg.IncludeSet()
	if err != nil {
		return nil, fmt.Errorf("invalid scan.include: %w", err)
	}
	exclude, err := cfg.ExcludeSet()
	if err != nil {
		return nil, fmt.Errorf("invalid scan.exclude: %w", err)
	}

	a := &App{
		Config:   cfg,
		Paths:    paths,
		Parser:   p,
		compiler: compiler,
		graph:    artifact.NewGraph(p),
		include:  include,
		exclude:  exclude,
		logger:   logger,
		snapshot: index.Empty(),
	}
	if err := a.ReloadRules(); err != nil {
		return nil, err
	}
	return a, nil
}

// ReloadRules recompiles every configured rule file. On error the previously
// loaded patterns stay active.
func (a *App) ReloadRules() error {
	var patterns []*rule.Pattern
	seen := make(map[string]string)
	for _, file := range a.Paths.RuleFiles {
		loaded, err := a.compiler.LoadFile(file)
		if err != nil {
			return err
		}
		for _, pat := range loaded {
			if prev, ok := seen[pat.Name]; ok {
				a.logger.Warn("duplicate pattern name", "pattern", pat.Name, "file", file, "first", prev)
			}
			seen[pat.Name] = file
		}
		patterns = append(patterns, loaded...)
	}

	a.mu.Lock()
	a.patterns = patterns
	a.mu.Unlock()
	a.logger.Debug("rules loaded", "files", len(a.Paths.RuleFiles), "patterns", len(patterns))
	return nil
}

// CheckRules compiles files without building an App.
func CheckRules(files []string, logger *slog.Logger) (map[string][]*rule.Pattern, error) {
	compiler, err := nodes.NewCompiler(logger)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*rule.Pattern, len(files))
	for _, file := range files {
		patterns, err := compiler.LoadFile(file)
		if err != nil {
			return out, err
		}
		out[file] = patterns
	}
	return out, nil
}

func (a *App) Patterns() []*rule.Pattern {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*rule.Pattern(nil), a.patterns...)
}

// Snapshot returns the current semantic index snapshot.
func (a *App) Snapshot() *index.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

func (a *App) setSnapshot(s *index.Snapshot) {
	a.mu.Lock()
	a.snapshot = s
	a.mu.Unlock()
}

func (a *App) indexOptions() index.Options {
	return index.Options{
		Workers:        a.Config.Index.Workers,
		MergeThreshold: a.Config.Index.MergeThreshold,
		Logger:         a.logger,
	}
}

func (a *App) newDriver() *pattern.Driver {
	seeds := map[deps.Key]any{}
	if a.Config.Index.Enabled {
		seeds[artifact.KeyIndex] = a.Snapshot()
	}
	return pattern.New(a.Patterns(), a.graph, pattern.Options{Logger: a.logger, Seeds: seeds})
}
