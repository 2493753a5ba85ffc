package rule

import (
	"recast/internal/core/errors"
	"recast/internal/engine/deps"
	"recast/internal/engine/plan"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearch struct{ kind Kind }

func (stubSearch) Applies(string) bool                 { return true }
func (stubSearch) Find(*deps.Context) ([]Match, error) { return nil, nil }

type stubAction struct{ label string }

func (stubAction) Steps(*deps.Context, *plan.Issue) ([]plan.Step, error) { return nil, nil }

const (
	kindClassRef   Kind = "class-ref"
	kindMethodDecl Kind = "method-decl"
)

func searchCtor(kind Kind) Constructor {
	return func(s Spec) (*Node, error) {
		return &Node{Kind: kind, Data: s.Data, Children: s.Children, Search: stubSearch{kind: kind}}, nil
	}
}

func actionCtor(label string) Constructor {
	return func(s Spec) (*Node, error) {
		return &Node{Kind: Kind(label), Children: s.Children, Action: stubAction{label: label}}, nil
	}
}

func optionCtor(s Spec) (*Node, error) {
	return &Node{Data: s.Data}, nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(Key{Tag: "class-ref", Parent: "pattern"}, CapSearch, searchCtor(kindClassRef))
	r.MustRegister(Key{Tag: "method-decl", Parent: "pattern"}, CapSearch, searchCtor(kindMethodDecl))
	r.MustRegister(Key{Tag: "name", Parent: "class-ref"}, CapOption, optionCtor)
	r.MustRegister(Key{Tag: "name", Parent: "method-decl"}, CapOption, optionCtor)
	r.MustRegister(Key{Tag: "description", Parent: "pattern"}, CapOption, optionCtor)
	r.MustRegister(Key{Tag: "replace", Parent: "pattern", Search: kindClassRef}, CapAction, actionCtor("rename-class"))
	r.MustRegister(Key{Tag: "replace", Parent: "pattern", Search: kindMethodDecl}, CapAction, actionCtor("rewrite-method"))
	r.MustRegister(Key{Tag: "remove", Parent: "pattern"}, CapAction, actionCtor("remove"))
	r.MustRegister(Key{Tag: "action", Parent: "pattern"}, CapAction, actionCtor("sequence"))
	r.MustRegister(Key{Tag: "replace", Parent: "action", Search: kindClassRef}, CapAction, actionCtor("rename-class"))
	r.MustRegister(Key{Tag: "replace", Parent: "action", Search: kindMethodDecl}, CapAction, actionCtor("rewrite-method"))
	return r
}

func decodeOne(t *testing.T, src string) *Element {
	t.Helper()
	els, err := DecodeKDL(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, els, 1)
	return els[0]
}

func TestRegistry_DuplicateKey(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Key{Tag: "x", Parent: "p"}, CapAction, actionCtor("x")))
	assert.Error(t, r.Register(Key{Tag: "x", Parent: "p"}, CapAction, actionCtor("x")))
	assert.Error(t, r.Register(Key{Tag: "y", Parent: "p"}, CapAction, nil))
}

func TestRegistry_LookupFallsBackToWildcard(t *testing.T) {
	r := testRegistry(t)
	_, ctor, ok := r.Lookup("remove", "pattern", kindClassRef)
	require.True(t, ok)
	n, err := ctor(Spec{})
	require.NoError(t, err)
	assert.Equal(t, Kind("remove"), n.Kind)

	_, _, ok = r.Lookup("replace", "pattern", "unknown-kind")
	assert.False(t, ok)
}

func TestRegistry_Validate(t *testing.T) {
	r := testRegistry(t)
	kinds := []Kind{kindClassRef, kindMethodDecl}
	assert.NoError(t, r.Validate([]string{"replace", "remove", "action"}, []string{"pattern"}, kinds))

	err := r.Validate([]string{"replace", "remove"}, []string{"action"}, kinds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action/remove@class-ref")
}

func TestCompiler_ThreePartDispatch(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)

	cases := []struct {
		name   string
		rule   string
		search Kind
		action string
	}{
		{
			name:   "class reference rename",
			rule:   `pattern "a" { class-ref { name "Foo"; }; replace "Bar"; }`,
			search: kindClassRef,
			action: "rename-class",
		},
		{
			name:   "method declaration rewrite",
			rule:   `pattern "b" { method-decl { name "run"; }; replace "Run"; }`,
			search: kindMethodDecl,
			action: "rewrite-method",
		},
		{
			name:   "search after action still threads",
			rule:   `pattern "c" { replace "Run"; method-decl { name "run"; }; }`,
			search: kindMethodDecl,
			action: "rewrite-method",
		},
		{
			name:   "nested action inherits search kind",
			rule:   `pattern "d" { class-ref "Foo"; action { replace "Bar"; }; }`,
			search: kindClassRef,
			action: "sequence",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := c.CompilePattern(decodeOne(t, tc.rule))
			require.NoError(t, err)
			assert.Equal(t, tc.search, p.Search.Kind)
			assert.Equal(t, CapSearch, p.Search.Cap)
			assert.Equal(t, Kind(tc.action), p.Action.Kind)
			assert.Equal(t, CapAction, p.Action.Cap)
		})
	}

	p, err := c.CompilePattern(decodeOne(t, `pattern "d" { class-ref "Foo"; action { replace "Bar"; }; }`))
	require.NoError(t, err)
	require.Len(t, p.Action.Children, 1)
	assert.Equal(t, Kind("rename-class"), p.Action.Children[0].Kind)
	assert.Equal(t, "Bar", p.Action.Children[0].Data)
}

func TestCompiler_LeafTextOnlyWithoutRecognizedChildren(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)

	p, err := c.CompilePattern(decodeOne(t, `pattern "a" { class-ref "Foo" { name "Bar"; }; remove; }`))
	require.NoError(t, err)
	assert.Empty(t, p.Search.Data)
	require.Len(t, p.Search.Children, 1)
	assert.Equal(t, "Bar", p.Search.Children[0].Data)

	p, err = c.CompilePattern(decodeOne(t, `pattern "a" { class-ref "Foo" { bogus "x"; }; remove; }`))
	require.NoError(t, err)
	assert.Equal(t, "Foo", p.Search.Data)
	assert.Empty(t, p.Search.Children)
}

func TestDecode_XMLLeafTextMatchesKDL(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)
	cases := []struct {
		name     string
		kdl      string
		xml      string
		data     string
		children int
	}{
		{
			name:     "unrecognized child keeps text",
			kdl:      `pattern "a" { class-ref "Foo" { note "x"; }; remove; }`,
			xml:      `<pattern name="a"><class-ref>Foo<note>x</note></class-ref><remove/></pattern>`,
			data:     "Foo",
			children: 0,
		},
		{
			name:     "recognized child drops text",
			kdl:      `pattern "a" { class-ref "Foo" { name "Bar"; }; remove; }`,
			xml:      `<pattern name="a"><class-ref>Foo<name>Bar</name></class-ref><remove/></pattern>`,
			data:     "",
			children: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			xs, err := DecodeXML(strings.NewReader(tc.xml))
			require.NoError(t, err)
			require.Len(t, xs, 1)
			for _, el := range []*Element{decodeOne(t, tc.kdl), xs[0]} {
				p, err := c.CompilePattern(el)
				require.NoError(t, err)
				assert.Equal(t, tc.data, p.Search.Data)
				assert.Len(t, p.Search.Children, tc.children)
				assert.Equal(t, Kind("remove"), p.Action.Kind)
			}
		})
	}
}

func TestDecodeKDL_InlineBlockTerminator(t *testing.T) {
	_, err := DecodeKDL(strings.NewReader(`pattern "a" { class-ref "Foo"; remove }`))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedRule))
	assert.Contains(t, err.Error(), "';'")

	for _, src := range []string{
		`pattern "a" { class-ref "Foo"; remove; }`,
		"pattern \"a\" {\n    class-ref \"Foo\"\n    remove\n}\n",
	} {
		el := decodeOne(t, src)
		require.Len(t, el.Children, 2)
		assert.Equal(t, "remove", el.Children[1].Tag)
	}
}

func TestCompiler_UnknownTagYieldsNil(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)
	n, err := c.Compile(&Element{Tag: "nope"}, "pattern", nil)
	require.NoError(t, err)
	assert.Nil(t, n)

	// replace has no constructor without a search kind in context.
	n, err = c.Compile(&Element{Tag: "replace", Text: "x"}, "pattern", nil)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestCompiler_MalformedPatterns(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)
	cases := map[string]string{
		"no search":     `pattern "a" { remove; }`,
		"no action":     `pattern "a" { class-ref "Foo"; }`,
		"two searches":  `pattern "a" { class-ref "Foo"; method-decl "run"; remove; }`,
		"two actions":   `pattern "a" { class-ref "Foo"; remove; replace "Bar"; }`,
		"only options":  `pattern "a" { description "nothing here"; }`,
		"unknown parts": `pattern "a" { find "Foo"; rewrite "Bar"; }`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.CompilePattern(decodeOne(t, src))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeMalformedRule), "got %v", err)
		})
	}

	p, err := c.CompilePattern(decodeOne(t, `pattern "a" { description "ok"; class-ref "Foo"; remove; }`))
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name)
}

func TestCompiler_CompileAllAbortsOnMalformed(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)
	els, err := DecodeKDL(strings.NewReader("pattern \"ok\" { class-ref \"Foo\"; remove; }\npattern \"bad\" { remove; }\n"))
	require.NoError(t, err)
	_, err = c.CompileAll(els)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedRule))

	els, err = DecodeKDL(strings.NewReader("pattern { class-ref \"Foo\"; remove; }\n"))
	require.NoError(t, err)
	patterns, err := c.CompileAll(els)
	require.NoError(t, err)
	assert.Equal(t, "pattern#1", patterns[0].Name)
}

func TestDecode_KDLAndXMLAgree(t *testing.T) {
	kdlSrc := `pattern "rename" severity="warn" {
    class-ref {
        name "Foo"
    }
    replace "Bar"
}`
	xmlSrc := `<rules>
  <pattern name="rename" severity="warn">
    <class-ref><name>Foo</name></class-ref>
    <replace>Bar</replace>
  </pattern>
</rules>`
	k := decodeOne(t, kdlSrc)
	xs, err := DecodeXML(strings.NewReader(xmlSrc))
	require.NoError(t, err)
	require.Len(t, xs, 1)
	x := xs[0]

	assert.Equal(t, "pattern", x.Tag)
	assert.Equal(t, "rename", k.Text)
	name, _ := x.Attr("name")
	assert.Equal(t, "rename", name)
	for _, el := range []*Element{k, x} {
		sev, _ := el.Attr("severity")
		assert.Equal(t, "warn", sev)
		require.Len(t, el.Children, 2)
		assert.Equal(t, "class-ref", el.Children[0].Tag)
		assert.Equal(t, "Foo", el.Children[0].Children[0].Text)
		assert.Equal(t, "Bar", el.Children[1].Text)
	}

	c := NewCompiler(testRegistry(t), nil)
	pk, err := c.CompilePattern(k)
	require.NoError(t, err)
	px, err := c.CompilePattern(x)
	require.NoError(t, err)
	assert.Equal(t, pk.Name, px.Name)
	assert.Equal(t, pk.Action.Kind, px.Action.Kind)
}

func TestDecodeFile_UnsupportedExtension(t *testing.T) {
	_, err := DecodeFile("rules.yaml", strings.NewReader(""))
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestPattern_StringIsStableKDL(t *testing.T) {
	c := NewCompiler(testRegistry(t), nil)
	src := "pattern \"a\" z=\"1\" a=\"2\" {\n    class-ref \"Foo\"\n    remove\n}\n"
	p, err := c.CompilePattern(decodeOne(t, src))
	require.NoError(t, err)
	out := p.String()
	assert.True(t, strings.HasPrefix(out, `pattern "a" a="2" z="1" {`), out)

	again, err := DecodeKDL(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, out, again[0].String())
}
