// Package artifact names the standard values a pattern run keeps in its
// dependency cache and registers how they derive from one another.
//
//	path ──> contents ──> text
//	             └──────> syntax tree
//	match ──> groups
//	issue ──> formatted range
package artifact

import (
	"fmt"
	"os"
	"recast/internal/engine/deps"
	"recast/internal/engine/parser"
	"recast/internal/engine/plan"
	"recast/internal/engine/rule"
	"recast/internal/engine/source"
	"strconv"
)

const (
	// KeyPath holds the file path (string).
	KeyPath deps.Key = "path"
	// KeyContents holds the *source.FileContents of the current file.
	KeyContents deps.Key = "contents"
	// KeyText holds the raw file text (string).
	KeyText deps.Key = "text"
	// KeySyntaxTree holds the *parser.Tree of the current file.
	KeySyntaxTree deps.Key = "syntax-tree"
	// KeyMatch holds the rule.Match being acted on.
	KeyMatch deps.Key = "match"
	// KeyGroups holds the match's captures by name and by index (map[string]string).
	KeyGroups deps.Key = "groups"
	// KeyIssue holds the *plan.Issue being built or just recorded.
	KeyIssue deps.Key = "issue"
	// KeyFormattedRange holds "path:l:c-l:c" for the current issue's working
	// range. Move the range with SetIssueRange so a cached value is dropped.
	KeyFormattedRange deps.Key = "formatted-range"
	// KeyIndex holds the current *index.Snapshot. It is only ever seeded.
	KeyIndex deps.Key = "index"
)

// NewGraph returns the standard derivation graph. p may be nil, in which
// case syntax trees are never available.
func NewGraph(p *parser.Parser) *deps.Graph {
	g := deps.NewGraph().
		Derive(KeyContents, KeyPath, readContents).
		Derive(KeyText, KeyContents, contentsText).
		Derive(KeyGroups, KeyMatch, matchGroups).
		Derive(KeyFormattedRange, KeyIssue, formatIssue)
	if p != nil {
		g.Derive(KeySyntaxTree, KeyContents, parseContents(p))
	}
	return g
}

func readContents(src any) (any, error) {
	path, ok := src.(string)
	if !ok {
		return nil, fmt.Errorf("path is %T", src)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return source.New(path, string(data), info.ModTime()), nil
}

func contentsText(src any) (any, error) {
	fc, ok := src.(*source.FileContents)
	if !ok || fc == nil {
		return nil, fmt.Errorf("contents is %T", src)
	}
	return fc.Text(), nil
}

func parseContents(p *parser.Parser) deps.Producer {
	return func(src any) (any, error) {
		fc, ok := src.(*source.FileContents)
		if !ok || fc == nil {
			return nil, fmt.Errorf("contents is %T", src)
		}
		if !p.IsSupportedPath(fc.Path()) {
			return nil, nil
		}
		return p.Parse(fc.Path(), []byte(fc.Text()))
	}
}

func matchGroups(src any) (any, error) {
	m, ok := src.(rule.Match)
	if !ok {
		return nil, fmt.Errorf("match is %T", src)
	}
	groups := make(map[string]string, len(m.Groups)*2+1)
	for i, g := range m.Groups {
		groups[strconv.Itoa(i+1)] = g.Text
		if g.Name != "" {
			groups[g.Name] = g.Text
		}
	}
	return groups, nil
}

func formatIssue(src any) (any, error) {
	issue, ok := src.(*plan.Issue)
	if !ok || issue == nil {
		return nil, fmt.Errorf("issue is %T", src)
	}
	rendered, err := issue.RenderRange()
	if err != nil {
		return nil, err
	}
	return issue.Location.Path + ":" + rendered, nil
}

// SetIssueRange moves issue's working range and drops what c derived from
// the old one.
func SetIssueRange(c *deps.Context, issue *plan.Issue, r source.Range) error {
	if err := issue.SetRange(r); err != nil {
		return err
	}
	c.Invalidate(KeyFormattedRange)
	return nil
}
