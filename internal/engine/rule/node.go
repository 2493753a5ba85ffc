// Package rule holds the rule tree model and the compiler that turns
// declarative rule descriptions into typed trees.
package rule

import (
	"recast/internal/engine/deps"
	"recast/internal/engine/plan"
	"recast/internal/engine/source"
)

// Capability marks what a node can do inside a pattern.
type Capability uint8

const (
	// CapOption nodes carry configuration for their parent.
	CapOption Capability = iota
	CapSearch
	CapAction
)

func (c Capability) String() string {
	switch c {
	case CapSearch:
		return "search"
	case CapAction:
		return "action"
	default:
		return "option"
	}
}

// Kind is the variant tag of a compiled node. Search kinds double as the
// third component of the dispatch key.
type Kind string

// AnySearch in a dispatch key matches every search kind.
const AnySearch Kind = ""

// Group is one captured sub-match.
type Group struct {
	Name  string       `json:"name,omitempty"`
	Range source.Range `json:"range"`
	Text  string       `json:"text"`
}

// Match is a single search result in one file.
type Match struct {
	Range  source.Range `json:"range"`
	Groups []Group      `json:"groups,omitempty"`
}

// Group returns the capture with the given name.
func (m Match) Group(name string) (Group, bool) {
	for _, g := range m.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Searcher locates matches in the file the context is seeded with.
type Searcher interface {
	// Applies is a cheap pre-filter on the file path.
	Applies(path string) bool
	Find(c *deps.Context) ([]Match, error)
}

// Actor decides the steps for one issue. It may move the issue's working
// range through issue.SetRange; that is the only permitted range mutation.
type Actor interface {
	Steps(c *deps.Context, issue *plan.Issue) ([]plan.Step, error)
}

// Node is an immutable rule tree node. A node has either Data or Children.
type Node struct {
	Name     string
	Kind     Kind
	Cap      Capability
	Attrs    map[string]string
	Data     string
	Children []*Node

	Search Searcher
	Action Actor
}

// Child returns the first child with the given name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every child with the given name, in order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// Pattern pairs one search node with one action node.
type Pattern struct {
	Name   string
	Search *Node
	Action *Node
	Source *Element
}

// String returns the serialized rule.
func (p *Pattern) String() string {
	if p == nil || p.Source == nil {
		return ""
	}
	return p.Source.String()
}
