package app

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"recast/internal/shared/util"
	"sort"
)

// ScanFiles walks roots and returns the files a run should visit, sorted and
// deduplicated. Relative roots are taken from the project root; no roots
// means the whole project.
func (a *App) ScanFiles(roots []string) ([]string, error) {
	if len(roots) == 0 {
		roots = []string{a.Paths.ProjectRoot}
	}

	seen := make(map[string]bool)
	var files []string
	for _, root := range roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(a.Paths.ProjectRoot, root)
		}
		root = filepath.Clean(root)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && a.excluded(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || seen[path] {
				return nil
			}
			if !a.Accepts(path) {
				return nil
			}
			if limit := a.Config.Scan.MaxFileSize; limit > 0 {
				info, err := d.Info()
				if err != nil {
					return err
				}
				if info.Size() > limit {
					slog.Debug("skipping large file", "path", path, "size", info.Size(), "max", limit)
					return nil
				}
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// Accepts reports whether path is in scan scope. With no include patterns
// only files of an enabled language are in scope.
func (a *App) Accepts(path string) bool {
	if a.excluded(path) {
		return false
	}
	if a.include.Empty() {
		return a.Parser.IsSupportedPath(path)
	}
	return a.include.Match(a.relative(path))
}

// IsRuleFile reports whether path is one of the configured rule files.
func (a *App) IsRuleFile(path string) bool {
	clean := filepath.Clean(path)
	for _, f := range a.Paths.RuleFiles {
		if f == clean {
			return true
		}
	}
	return false
}

func (a *App) excluded(path string) bool {
	return a.exclude.Match(a.relative(path))
}

func (a *App) relative(path string) string {
	return util.RelSlash(a.Paths.ProjectRoot, path)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
