package parser

import (
	"recast/internal/core/errors"
	"recast/internal/shared/util"
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// grammars maps a language ID to its compiled-in tree-sitter grammar.
var grammars = map[string]func() unsafe.Pointer{
	"css":        tree_sitter_css.Language,
	"go":         tree_sitter_go.Language,
	"html":       tree_sitter_html.Language,
	"java":       tree_sitter_java.Language,
	"javascript": tree_sitter_javascript.Language,
	"python":     tree_sitter_python.Language,
	"rust":       tree_sitter_rust.Language,
	"tsx":        tree_sitter_typescript.LanguageTSX,
	"typescript": tree_sitter_typescript.LanguageTypescript,
}

// GrammarLoader holds the grammars of the enabled languages in a registry.
type GrammarLoader struct {
	languages map[string]*sitter.Language
	registry  map[string]LanguageSpec
}

// NewGrammarLoader loads a grammar for every enabled language. A nil registry
// means the defaults.
func NewGrammarLoader(registry map[string]LanguageSpec) (*GrammarLoader, error) {
	if registry == nil {
		var err error
		if registry, err = BuildLanguageRegistry(nil); err != nil {
			return nil, err
		}
	}

	gl := &GrammarLoader{
		languages: make(map[string]*sitter.Language),
		registry:  cloneLanguageRegistry(registry),
	}
	for _, id := range util.SortedStringKeys(gl.registry) {
		if !gl.registry[id].Enabled {
			continue
		}
		grammar, ok := grammars[id]
		if !ok {
			return nil, errors.Newf(errors.CodeNotSupported, "language %q is enabled but has no grammar", id)
		}
		gl.languages[id] = sitter.NewLanguage(grammar())
	}
	return gl, nil
}

func (gl *GrammarLoader) Language(id string) (*sitter.Language, bool) {
	lang, ok := gl.languages[id]
	return lang, ok
}

func (gl *GrammarLoader) LanguageRegistry() map[string]LanguageSpec {
	return cloneLanguageRegistry(gl.registry)
}

// Loaded returns the IDs of languages with a grammar, sorted.
func (gl *GrammarLoader) Loaded() []string {
	return util.SortedStringKeys(gl.languages)
}
