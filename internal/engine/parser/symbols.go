package parser

import "sort"

// SymbolKind classifies a definition.
type SymbolKind string

const (
	SymbolClass    SymbolKind = "class"
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
)

// Symbol is a named definition found in a file. Start and End cover the
// defining identifier.
type Symbol struct {
	Name     string     `json:"name" msgpack:"name"`
	Kind     SymbolKind `json:"kind" msgpack:"kind"`
	Language string     `json:"language" msgpack:"language"`
	Path     string     `json:"path" msgpack:"path"`
	Start    int        `json:"start" msgpack:"start"`
	End      int        `json:"end" msgpack:"end"`
}

// Captures are named after the SymbolKind they produce.
var definitionQueries = map[string]string{
	"go": `
(function_declaration name: (identifier) @function)
(method_declaration name: (field_identifier) @method)
(type_spec name: (type_identifier) @class)
`,
	"python": `
(class_definition name: (identifier) @class)
(function_definition name: (identifier) @function)
`,
	"javascript": `
(class_declaration name: (identifier) @class)
(function_declaration name: (identifier) @function)
(method_definition name: (property_identifier) @method)
`,
	"typescript": `
(class_declaration name: (type_identifier) @class)
(interface_declaration name: (type_identifier) @class)
(function_declaration name: (identifier) @function)
(method_definition name: (property_identifier) @method)
`,
	"tsx": `
(class_declaration name: (type_identifier) @class)
(interface_declaration name: (type_identifier) @class)
(function_declaration name: (identifier) @function)
(method_definition name: (property_identifier) @method)
`,
	"java": `
(class_declaration name: (identifier) @class)
(interface_declaration name: (identifier) @class)
(method_declaration name: (identifier) @method)
`,
	"rust": `
(struct_item name: (type_identifier) @class)
(enum_item name: (type_identifier) @class)
(trait_item name: (type_identifier) @class)
(function_item name: (identifier) @function)
`,
}

// HasSymbolQuery reports whether definitions can be extracted for lang.
func HasSymbolQuery(lang string) bool {
	_, ok := definitionQueries[lang]
	return ok
}

// ExtractSymbols returns the definitions in t ordered by offset. Languages
// without a definition query yield no symbols.
func ExtractSymbols(t *Tree) ([]Symbol, error) {
	src, ok := definitionQueries[t.Language]
	if !ok {
		return nil, nil
	}
	matches, err := t.Query(src)
	if err != nil {
		return nil, err
	}
	out := make([]Symbol, 0, len(matches))
	for _, m := range matches {
		for _, c := range m.Captures {
			kind := SymbolKind(c.Name)
			if kind == SymbolFunction && t.Language == "python" && insideClass(t, c.Start) {
				kind = SymbolMethod
			}
			out = append(out, Symbol{
				Name:     c.Text,
				Kind:     kind,
				Language: t.Language,
				Path:     t.Path,
				Start:    c.Start,
				End:      c.End,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func insideClass(t *Tree, offset int) bool {
	n := t.Root().DescendantForByteRange(uint(offset), uint(offset))
	for n != nil && n.Kind() != "function_definition" {
		n = n.Parent()
	}
	if n == nil {
		return false
	}
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "class_definition":
			return true
		case "function_definition", "module":
			return false
		}
	}
	return false
}
