package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rootMarkers identify a project root, in order of preference.
var rootMarkers = []string{DefaultFile, ".git", "go.mod"}

// ResolvedPaths holds the absolute locations a run reads and writes.
// PlanOutput stays "" or "-" when the plan goes to stdout.
type ResolvedPaths struct {
	ProjectRoot string
	StateDir    string
	HistoryPath string
	PlanOutput  string
	RuleFiles   []string
}

// ResolvePaths anchors cfg's relative paths. The project root is relative to
// base (usually the directory of the config file); everything else is
// relative to the project root, and the history database to the state dir.
func ResolvePaths(cfg *Config, base string) (ResolvedPaths, error) {
	if strings.TrimSpace(base) == "" {
		return ResolvedPaths{}, fmt.Errorf("base directory must not be empty")
	}

	root := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if root == "" {
		detected, err := DetectProjectRoot([]string{base})
		if err != nil {
			return ResolvedPaths{}, err
		}
		root = detected
	} else {
		root = ResolveRelative(base, root)
	}

	out := ResolvedPaths{
		ProjectRoot: root,
		StateDir:    ResolveRelative(root, cfg.Paths.StateDir),
		PlanOutput:  strings.TrimSpace(cfg.Plan.Output),
		RuleFiles:   make([]string, 0, len(cfg.Rules.Files)),
	}
	out.HistoryPath = ResolveRelative(out.StateDir, cfg.History.Path)
	if out.PlanOutput != "" && out.PlanOutput != "-" {
		out.PlanOutput = ResolveRelative(root, out.PlanOutput)
	}
	for _, f := range cfg.Rules.Files {
		out.RuleFiles = append(out.RuleFiles, ResolveRelative(root, f))
	}
	return out, nil
}

// ResolveRelative joins value onto base unless it is already absolute. A
// blank value resolves to base itself.
func ResolveRelative(base, value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return filepath.Clean(base)
	case filepath.IsAbs(value):
		return filepath.Clean(value)
	default:
		return filepath.Join(base, value)
	}
}

// DetectProjectRoot walks up from each candidate looking for a root marker.
// It falls back to the working directory when nothing is found.
func DetectProjectRoot(candidates []string) (string, error) {
	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		dir, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			dir = filepath.Dir(dir)
		}
		if root, ok := findMarkedAncestor(dir); ok {
			return root, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}

func findMarkedAncestor(dir string) (string, bool) {
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Locate returns the configuration file for a project root, or "" when absent.
func Locate(projectRoot string) string {
	path := filepath.Join(projectRoot, DefaultFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
