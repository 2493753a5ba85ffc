// Package parser wraps tree-sitter: language detection, parsing and queries.
package parser

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"recast/internal/core/errors"
	"recast/internal/shared/observability"
	"recast/internal/shared/util"
	"strings"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type Parser struct {
	loader     *GrammarLoader
	pools      map[string]*ParserPool
	extensions map[string]string
	logger     *slog.Logger
}

func NewParser(loader *GrammarLoader, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Parser{
		loader:     loader,
		pools:      make(map[string]*ParserPool),
		extensions: make(map[string]string),
		logger:     logger,
	}
	for lang, spec := range loader.LanguageRegistry() {
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			p.extensions[strings.ToLower(ext)] = lang
		}
		if grammar, ok := loader.Language(lang); ok {
			p.pools[lang] = NewParserPool(grammar)
		}
	}
	return p
}

// Language returns the language ID for path, or "" if unsupported.
func (p *Parser) Language(path string) string {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.Language(path) != ""
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}

// Parse parses content with the grammar selected by path. The caller owns
// the returned Tree and must Release it.
func (p *Parser) Parse(path string, content []byte) (*Tree, error) {
	lang := p.Language(path)
	if lang == "" {
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported language"), errors.CtxPath, path)
	}
	pool := p.pools[lang]
	grammar, ok := p.loader.Language(lang)
	if pool == nil || !ok {
		return nil, errors.AddContext(errors.Newf(errors.CodeInternal, "grammar not loaded: %s", lang), errors.CtxPath, path)
	}

	start := time.Now()
	sp := pool.Get()
	tree := sp.Parse(content, nil)
	pool.Put(sp)
	observability.ParsingDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	if tree == nil {
		return nil, errors.AddContext(errors.New(errors.CodeInternal, "parse failed"), errors.CtxPath, path)
	}
	return &Tree{Language: lang, Path: path, content: content, grammar: grammar, tree: tree}, nil
}

// Tree is a parsed file. It holds a C allocation; Release frees it.
type Tree struct {
	Language string
	Path     string

	content []byte
	grammar *sitter.Language
	tree    *sitter.Tree
	once    sync.Once
}

func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

func (t *Tree) Content() []byte {
	return t.content
}

func (t *Tree) HasError() bool {
	return t.Root().HasError()
}

// Release frees the underlying tree. It is safe to call more than once.
func (t *Tree) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		if t.tree != nil {
			t.tree.Close()
		}
	})
}

// Capture is one named node of a query match.
type Capture struct {
	Name  string
	Kind  string
	Start int
	End   int
	Text  string
}

// QueryMatch is one match of a query with its captures in query order.
type QueryMatch struct {
	Captures []Capture
}

// Capture returns the first capture with the given name.
func (m QueryMatch) Capture(name string) (Capture, bool) {
	for _, c := range m.Captures {
		if c.Name == name {
			return c, true
		}
	}
	return Capture{}, false
}

// Query runs a tree-sitter query over the whole tree.
func (t *Tree) Query(src string) ([]QueryMatch, error) {
	query, qerr := sitter.NewQuery(t.grammar, src)
	if qerr != nil {
		return nil, errors.AddContext(
			errors.Newf(errors.CodeMalformedRule, "invalid %s query: %s", t.Language, qerr.Message),
			errors.CtxLanguage, t.Language,
		)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()

	names := query.CaptureNames()
	matches := qc.Matches(query, t.Root(), t.content)
	var out []QueryMatch
	for {
		m := matches.Next()
		if m == nil {
			break
		}
		qm := QueryMatch{Captures: make([]Capture, 0, len(m.Captures))}
		for _, c := range m.Captures {
			var name string
			if int(c.Index) < len(names) {
				name = names[c.Index]
			}
			qm.Captures = append(qm.Captures, t.capture(name, &c.Node))
		}
		out = append(out, qm)
	}
	return out, nil
}

// Identifiers returns every identifier-like leaf whose text equals name, in
// source order.
func (t *Tree) Identifiers(name string) []Capture {
	var out []Capture
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		count := n.ChildCount()
		if count == 0 {
			if strings.HasSuffix(n.Kind(), "identifier") && n.Utf8Text(t.content) == name {
				out = append(out, t.capture("identifier", n))
			}
			return
		}
		for i := uint(0); i < count; i++ {
			walk(n.Child(i))
		}
	}
	walk(t.Root())
	return out
}

func (t *Tree) capture(name string, n *sitter.Node) Capture {
	start, end := int(n.StartByte()), int(n.EndByte())
	return Capture{Name: name, Kind: n.Kind(), Start: start, End: end, Text: string(t.content[start:end])}
}

func (t *Tree) String() string {
	return fmt.Sprintf("%s(%s)", t.Language, t.Path)
}
