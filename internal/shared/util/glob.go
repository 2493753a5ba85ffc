package util

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// GlobSet matches slash-separated relative paths against a list of patterns.
// A pattern without a separator also matches against the base name.
type GlobSet struct {
	patterns []string
	full     []glob.Glob
	base     []bool
}

// CompileGlobs compiles patterns with '/' as the separator.
func CompileGlobs(patterns []string) (*GlobSet, error) {
	set := &GlobSet{}
	for _, raw := range patterns {
		p := NormalizePatternPath(raw)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", raw, err)
		}
		set.patterns = append(set.patterns, p)
		set.full = append(set.full, g)
		set.base = append(set.base, !ContainsPathSeparator(p))
	}
	return set, nil
}

// Match reports whether rel matches any pattern. A nil or empty set matches nothing.
func (s *GlobSet) Match(rel string) bool {
	if s == nil {
		return false
	}
	rel = NormalizePatternPath(rel)
	name := path.Base(rel)
	for i, g := range s.full {
		if g.Match(rel) {
			return true
		}
		if s.base[i] && g.Match(name) {
			return true
		}
		if strings.HasSuffix(s.patterns[i], "/**") && HasPathPrefix(rel, strings.TrimSuffix(s.patterns[i], "/**")) {
			return true
		}
	}
	return false
}

// Empty reports whether the set holds no patterns.
func (s *GlobSet) Empty() bool {
	return s == nil || len(s.full) == 0
}

// Patterns returns the normalized source patterns.
func (s *GlobSet) Patterns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.patterns...)
}
