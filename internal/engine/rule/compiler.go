package rule

import (
	"fmt"
	"log/slog"
	"os"
	"recast/internal/core/errors"
)

// Compiler turns Elements into Nodes using a Registry.
type Compiler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewCompiler(registry *Registry, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{registry: registry, logger: logger}
}

func (c *Compiler) Registry() *Registry {
	return c.registry
}

// Compile builds the node for el under parent. search is the enclosing
// pattern's search node, nil while compiling the search subtree. An
// unrecognized element yields a nil node and no error.
func (c *Compiler) Compile(el *Element, parent string, search *Node) (*Node, error) {
	if el == nil {
		return nil, nil
	}
	kind := AnySearch
	if search != nil {
		kind = search.Kind
	}
	capability, ctor, ok := c.registry.Lookup(el.Tag, parent, kind)
	if !ok {
		c.logger.Debug("unrecognized rule element", "tag", el.Tag, "parent", parent, "search", kind)
		return nil, nil
	}

	children := make([]*Node, 0, len(el.Children))
	for _, child := range el.Children {
		n, err := c.Compile(child, el.Tag, search)
		if err != nil {
			return nil, err
		}
		if n != nil {
			children = append(children, n)
		}
	}

	spec := Spec{Element: el, Children: children, Search: search}
	if len(children) == 0 {
		spec.Data = el.Text
	}
	node, err := ctor(spec)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeMalformedRule, fmt.Sprintf("compile <%s>", el.Tag)),
			errors.CtxTag, el.Tag,
		)
	}
	if node == nil {
		return nil, nil
	}
	if node.Name == "" {
		node.Name = el.Tag
	}
	node.Cap = capability
	if node.Attrs == nil {
		node.Attrs = el.Attrs
	}
	if node.Children == nil && len(children) > 0 {
		node.Children = children
	}
	if len(node.Children) == 0 && node.Data == "" {
		node.Data = spec.Data
	}
	return node, nil
}

// CompilePattern compiles a pattern element. The search constituent is
// compiled first so that the action subtree dispatches on its kind. Exactly
// one search and one action are required; option constituents are allowed.
func (c *Compiler) CompilePattern(el *Element) (*Pattern, error) {
	if el == nil {
		return nil, errors.New(errors.CodeMalformedRule, "empty pattern")
	}
	name, _ := el.Attr("name")
	if name == "" {
		name = el.Text
	}
	malformed := func(msg string) error {
		err := errors.New(errors.CodeMalformedRule, msg)
		if name != "" {
			err = errors.AddContext(err, errors.CtxPattern, name)
		}
		return err
	}

	var search *Node
	var rest []*Element
	for _, child := range el.Children {
		if capability, ok := c.registry.capabilityOf(child.Tag, el.Tag); !ok || capability != CapSearch {
			rest = append(rest, child)
			continue
		}
		n, err := c.Compile(child, el.Tag, nil)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		if search != nil {
			return nil, malformed("pattern has more than one search constituent")
		}
		search = n
	}
	if search == nil {
		return nil, malformed("pattern has no search constituent")
	}

	var action *Node
	for _, child := range rest {
		n, err := c.Compile(child, el.Tag, search)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		switch n.Cap {
		case CapSearch:
			return nil, malformed("pattern has more than one search constituent")
		case CapAction:
			if action != nil {
				return nil, malformed("pattern has more than one action constituent")
			}
			action = n
		}
	}
	if action == nil {
		return nil, malformed("pattern has no action constituent")
	}
	if search.Search == nil {
		return nil, malformed(fmt.Sprintf("search constituent <%s> cannot search", search.Name))
	}
	if action.Action == nil {
		return nil, malformed(fmt.Sprintf("action constituent <%s> cannot act", action.Name))
	}
	return &Pattern{Name: name, Search: search, Action: action, Source: el}, nil
}

// CompileAll compiles every pattern in els. The first malformed pattern
// aborts the whole set.
func (c *Compiler) CompileAll(els []*Element) ([]*Pattern, error) {
	patterns := make([]*Pattern, 0, len(els))
	for i, el := range els {
		p, err := c.CompilePattern(el)
		if err != nil {
			return nil, err
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("%s#%d", el.Tag, i+1)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// LoadFile decodes and compiles one rule file.
func (c *Compiler) LoadFile(path string) ([]*Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "open rule file"), errors.CtxPath, path)
	}
	defer f.Close()

	els, err := DecodeFile(path, f)
	if err != nil {
		return nil, err
	}
	patterns, err := c.CompileAll(els)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	c.logger.Debug("rule file loaded", "path", path, "patterns", len(patterns))
	return patterns, nil
}
