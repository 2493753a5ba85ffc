package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DefaultLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, DefaultFile), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "pkg", "inner")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Plan.Output = "out/plan.json"

	got, err := ResolvePaths(cfg, sub)
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != filepath.Clean(root) {
		t.Fatalf("expected project root %q, got %q", root, got.ProjectRoot)
	}
	if got.StateDir != filepath.Join(root, ".recast") {
		t.Fatalf("unexpected state dir: %q", got.StateDir)
	}
	if got.HistoryPath != filepath.Join(root, ".recast", "history.db") {
		t.Fatalf("unexpected history path: %q", got.HistoryPath)
	}
	if got.PlanOutput != filepath.Join(root, "out", "plan.json") {
		t.Fatalf("unexpected plan output: %q", got.PlanOutput)
	}
	if len(got.RuleFiles) != 1 || got.RuleFiles[0] != filepath.Join(root, "rules.kdl") {
		t.Fatalf("unexpected rule files: %v", got.RuleFiles)
	}
	if Locate(root) != filepath.Join(root, DefaultFile) {
		t.Fatalf("expected config to be located in %q", root)
	}
}

func TestResolvePaths_AbsoluteOverrides(t *testing.T) {
	root := t.TempDir()
	historyPath := filepath.Join(root, "custom", "runs.db")
	cfg := Default()
	cfg.Paths.ProjectRoot = root
	cfg.History.Path = historyPath
	cfg.Plan.Output = "-"

	got, err := ResolvePaths(cfg, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if got.ProjectRoot != root {
		t.Fatalf("unexpected project root: %q", got.ProjectRoot)
	}
	if got.HistoryPath != historyPath {
		t.Fatalf("unexpected history path: %q", got.HistoryPath)
	}
	if got.PlanOutput != "-" {
		t.Fatalf("stdout marker must be kept, got %q", got.PlanOutput)
	}
}

func TestResolvePaths_EmptyCwd(t *testing.T) {
	if _, err := ResolvePaths(Default(), " "); err == nil {
		t.Fatal("expected error for empty cwd")
	}
}

func TestResolveRelative(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "repo")
	if got := ResolveRelative(base, ""); got != base {
		t.Errorf("empty value: got %q", got)
	}
	if got := ResolveRelative(base, "a/../b"); got != filepath.Join(base, "b") {
		t.Errorf("relative value: got %q", got)
	}
	abs := filepath.Join(string(filepath.Separator), "elsewhere")
	if got := ResolveRelative(base, abs); got != abs {
		t.Errorf("absolute value: got %q", got)
	}
}
