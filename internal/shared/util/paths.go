package util

import (
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// NormalizePatternPath cleans a path for glob matching: forward slashes, no
// leading "./", and "" for the current directory.
func NormalizePatternPath(s string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// HasPathPrefix returns true when p equals prefix or is contained within it.
func HasPathPrefix(p, prefix string) bool {
	p = NormalizePatternPath(p)
	prefix = NormalizePatternPath(prefix)
	if p == "" || prefix == "" {
		return p == prefix
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func ContainsPathSeparator(value string) bool {
	return strings.ContainsAny(value, `/\`)
}

// RelSlash returns target relative to root with forward slashes. A target
// outside root, or one that cannot be made relative, is returned as-is.
func RelSlash(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
