package nodes

import (
	"fmt"
	"path/filepath"
	"recast/internal/core/errors"
	"recast/internal/engine/artifact"
	"recast/internal/engine/deps"
	"recast/internal/engine/index"
	"recast/internal/engine/parser"
	"recast/internal/engine/rule"
	"recast/internal/engine/source"
	"recast/internal/shared/util"
	"regexp"
	"strconv"
	"strings"
)

// Search kinds.
const (
	KindText   rule.Kind = "text"
	KindRegex  rule.Kind = "regex"
	KindQuery  rule.Kind = "query"
	KindSymbol rule.Kind = "symbol"
)

// Kinds is the closed set of search kinds.
var Kinds = []rule.Kind{KindText, KindRegex, KindQuery, KindSymbol}

// fileFilter restricts a search to paths matching any of its globs. No globs
// means every path.
type fileFilter struct {
	globs *util.GlobSet
}

func newFileFilter(s rule.Spec) (fileFilter, error) {
	var patterns []string
	if v, ok := s.Element.Attr("files"); ok {
		patterns = append(patterns, strings.Split(v, ",")...)
	}
	for _, n := range childrenNamed(s.Children, "files") {
		patterns = append(patterns, n.Data)
	}
	set, err := util.CompileGlobs(patterns)
	if err != nil {
		return fileFilter{}, fmt.Errorf("files: %w", err)
	}
	return fileFilter{globs: set}, nil
}

func (f fileFilter) Applies(path string) bool {
	return f.globs.Empty() || f.globs.Match(filepath.ToSlash(path))
}

func contents(c *deps.Context) (*source.FileContents, error) {
	fc, ok := deps.Get[*source.FileContents](c, artifact.KeyContents)
	if !ok || fc == nil {
		return nil, errors.New(errors.CodeNotFound, "file contents unavailable")
	}
	return fc, nil
}

// regexSearch also backs literal text search.
type regexSearch struct {
	fileFilter
	re *regexp.Regexp
}

func (s *regexSearch) Find(c *deps.Context) ([]rule.Match, error) {
	fc, err := contents(c)
	if err != nil {
		return nil, err
	}
	text := fc.Text()
	names := s.re.SubexpNames()
	var out []rule.Match
	for _, loc := range s.re.FindAllStringSubmatchIndex(text, -1) {
		m := rule.Match{Range: source.Range{Start: loc[0], End: loc[1]}}
		for i := 1; i < len(names); i++ {
			g := rule.Group{Name: names[i], Range: source.Range{Start: loc[2*i], End: loc[2*i+1]}}
			if g.Range.Start >= 0 {
				g.Text = text[g.Range.Start:g.Range.End]
			}
			m.Groups = append(m.Groups, g)
		}
		out = append(out, m)
	}
	return out, nil
}

// submatches rebuilds the regexp submatch index slice for m.
func submatches(m rule.Match) []int {
	out := make([]int, 0, 2+2*len(m.Groups))
	out = append(out, m.Range.Start, m.Range.End)
	for _, g := range m.Groups {
		out = append(out, g.Range.Start, g.Range.End)
	}
	return out
}

func ignoreCase(s rule.Spec) (bool, error) {
	raw, ok := s.Element.Attr("ignore-case")
	if n := childNamed(s.Children, "ignore-case"); n != nil {
		raw, ok = n.Data, true
	}
	if !ok {
		return false, nil
	}
	if raw == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("ignore-case: %w", err)
	}
	return v, nil
}

// needle is the node's text, or its value option when it has options.
func needle(s rule.Spec) string {
	if n := childNamed(s.Children, "value"); n != nil {
		return n.Data
	}
	return s.Data
}

func newTextSearch(s rule.Spec) (*rule.Node, error) {
	lit := needle(s)
	if lit == "" {
		return nil, fmt.Errorf("text search needs a value")
	}
	fold, err := ignoreCase(s)
	if err != nil {
		return nil, err
	}
	expr := regexp.QuoteMeta(lit)
	if fold {
		expr = "(?i)" + expr
	}
	filter, err := newFileFilter(s)
	if err != nil {
		return nil, err
	}
	return &rule.Node{Kind: KindText, Data: s.Data, Search: &regexSearch{fileFilter: filter, re: regexp.MustCompile(expr)}}, nil
}

func newRegexSearch(s rule.Spec) (*rule.Node, error) {
	expr := needle(s)
	if expr == "" {
		return nil, fmt.Errorf("regex search needs an expression")
	}
	fold, err := ignoreCase(s)
	if err != nil {
		return nil, err
	}
	if fold {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	filter, err := newFileFilter(s)
	if err != nil {
		return nil, err
	}
	return &rule.Node{Kind: KindRegex, Data: s.Data, Search: &regexSearch{fileFilter: filter, re: re}}, nil
}

// MatchCapture names the query capture that becomes the match range.
const MatchCapture = "match"

type querySearch struct {
	fileFilter
	query    string
	language string
}

func (s *querySearch) Find(c *deps.Context) ([]rule.Match, error) {
	tree, ok := deps.Get[*parser.Tree](c, artifact.KeySyntaxTree)
	if !ok {
		return nil, nil
	}
	if s.language != "" && tree.Language != s.language {
		return nil, nil
	}
	matches, err := tree.Query(s.query)
	if err != nil {
		return nil, err
	}
	out := make([]rule.Match, 0, len(matches))
	for _, qm := range matches {
		anchor, ok := qm.Capture(MatchCapture)
		if !ok {
			if len(qm.Captures) == 0 {
				continue
			}
			anchor = qm.Captures[0]
		}
		m := rule.Match{Range: source.Range{Start: anchor.Start, End: anchor.End}}
		for _, qc := range qm.Captures {
			m.Groups = append(m.Groups, rule.Group{
				Name:  qc.Name,
				Range: source.Range{Start: qc.Start, End: qc.End},
				Text:  qc.Text,
			})
		}
		out = append(out, m)
	}
	return out, nil
}

func newQuerySearch(s rule.Spec) (*rule.Node, error) {
	q := needle(s)
	if q == "" {
		return nil, fmt.Errorf("query search needs a query")
	}
	filter, err := newFileFilter(s)
	if err != nil {
		return nil, err
	}
	lang, _ := s.Element.Attr("language")
	if n := childNamed(s.Children, "language"); n != nil {
		lang = n.Data
	}
	return &rule.Node{Kind: KindQuery, Data: s.Data, Search: &querySearch{fileFilter: filter, query: q, language: lang}}, nil
}

// symbolSearch finds references to a name the semantic index defines.
type symbolSearch struct {
	fileFilter
	name string
}

func (s *symbolSearch) Find(c *deps.Context) ([]rule.Match, error) {
	snap, ok := deps.Get[*index.Snapshot](c, artifact.KeyIndex)
	if !ok || !snap.Defines(s.name) {
		return nil, nil
	}
	tree, ok := deps.Get[*parser.Tree](c, artifact.KeySyntaxTree)
	if !ok {
		return nil, nil
	}
	ids := tree.Identifiers(s.name)
	out := make([]rule.Match, 0, len(ids))
	for _, id := range ids {
		out = append(out, rule.Match{Range: source.Range{Start: id.Start, End: id.End}})
	}
	return out, nil
}

func newSymbolSearch(s rule.Spec) (*rule.Node, error) {
	name := needle(s)
	if name == "" {
		return nil, fmt.Errorf("symbol search needs a name")
	}
	filter, err := newFileFilter(s)
	if err != nil {
		return nil, err
	}
	return &rule.Node{Kind: KindSymbol, Data: s.Data, Search: &symbolSearch{fileFilter: filter, name: name}}, nil
}

func childNamed(children []*rule.Node, name string) *rule.Node {
	for _, c := range children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func childrenNamed(children []*rule.Node, name string) []*rule.Node {
	var out []*rule.Node
	for _, c := range children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
