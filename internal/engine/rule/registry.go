package rule

import (
	"fmt"
	"sort"
	"strings"
)

// Key selects a constructor: the element tag, its parent's tag, and the kind
// of the enclosing pattern's search node.
type Key struct {
	Tag    string
	Parent string
	Search Kind
}

func (k Key) String() string {
	search := string(k.Search)
	if search == "" {
		search = "*"
	}
	return k.Parent + "/" + k.Tag + "@" + search
}

// Spec is what a constructor receives.
type Spec struct {
	Element  *Element
	Children []*Node
	// Data is the element text, set only when no child was recognized.
	Data string
	// Search is the enclosing pattern's search node; nil while the search
	// subtree itself is compiled.
	Search *Node
}

// Constructor builds a node for one dispatch key.
type Constructor func(s Spec) (*Node, error)

type entry struct {
	cap  Capability
	ctor Constructor
}

// Registry is the dispatch table used by the Compiler.
type Registry struct {
	entries map[Key]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]entry)}
}

// Register adds a constructor. Registering the same key twice is an error.
func (r *Registry) Register(key Key, capability Capability, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("nil constructor for %s", key)
	}
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("duplicate constructor for %s", key)
	}
	r.entries[key] = entry{cap: capability, ctor: ctor}
	return nil
}

// MustRegister is Register that panics on error, for static tables.
func (r *Registry) MustRegister(key Key, capability Capability, ctor Constructor) {
	if err := r.Register(key, capability, ctor); err != nil {
		panic(err)
	}
}

// Lookup resolves an exact key first, then the wildcard search kind.
func (r *Registry) Lookup(tag, parent string, search Kind) (Capability, Constructor, bool) {
	if e, ok := r.entries[Key{Tag: tag, Parent: parent, Search: search}]; ok {
		return e.cap, e.ctor, true
	}
	if search != AnySearch {
		if e, ok := r.entries[Key{Tag: tag, Parent: parent, Search: AnySearch}]; ok {
			return e.cap, e.ctor, true
		}
	}
	return CapOption, nil, false
}

// capabilityOf reports the capability of tag under parent for any search
// kind, used to find search constituents before the kind is known.
func (r *Registry) capabilityOf(tag, parent string) (Capability, bool) {
	if e, ok := r.entries[Key{Tag: tag, Parent: parent}]; ok {
		return e.cap, true
	}
	found := false
	capability := CapOption
	for k, e := range r.entries {
		if k.Tag == tag && k.Parent == parent {
			if e.cap == CapSearch {
				return CapSearch, true
			}
			capability, found = e.cap, true
		}
	}
	return capability, found
}

// Validate checks that every tag resolves under every parent for every
// search kind, so the table is total over the given vocabulary.
func (r *Registry) Validate(tags, parents []string, kinds []Kind) error {
	var missing []string
	for _, parent := range parents {
		for _, tag := range tags {
			for _, kind := range kinds {
				if _, _, ok := r.Lookup(tag, parent, kind); !ok {
					missing = append(missing, Key{Tag: tag, Parent: parent, Search: kind}.String())
				}
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("dispatch table incomplete: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []Key {
	out := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
