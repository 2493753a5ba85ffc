// Package deps implements a lazily evaluating key/value cache whose derived
// entries are invalidated when a value they were computed from changes.
package deps

import "sort"

// Key names a cache slot.
type Key string

// Producer derives a value from the current value of its source key. A nil
// value or a non-nil error means nothing could be produced from that source.
type Producer func(src any) (any, error)

type derivation struct {
	from    Key
	produce Producer
}

// Graph records which keys are derivable from which. It is built once at
// startup and shared read-only by every Context.
type Graph struct {
	producers  map[Key][]derivation
	dependents map[Key][]Key
}

func NewGraph() *Graph {
	return &Graph{
		producers:  make(map[Key][]derivation),
		dependents: make(map[Key][]Key),
	}
}

// Derive registers p as a way to obtain target from the value of from.
// Producers for the same target are tried in registration order.
func (g *Graph) Derive(target, from Key, p Producer) *Graph {
	g.producers[target] = append(g.producers[target], derivation{from: from, produce: p})
	for _, k := range g.dependents[from] {
		if k == target {
			return g
		}
	}
	g.dependents[from] = append(g.dependents[from], target)
	return g
}

// Derivable reports whether target has at least one producer.
func (g *Graph) Derivable(target Key) bool {
	return len(g.producers[target]) > 0
}

// Sources returns the keys target can be derived from, in trial order.
func (g *Graph) Sources(target Key) []Key {
	out := make([]Key, 0, len(g.producers[target]))
	for _, d := range g.producers[target] {
		out = append(out, d.from)
	}
	return out
}

// Dependents returns every key reachable from k by following derivable-from
// edges, excluding k itself, sorted.
func (g *Graph) Dependents(k Key) []Key {
	seen := map[Key]bool{k: true}
	var out []Key
	stack := append([]Key(nil), g.dependents[k]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		stack = append(stack, g.dependents[next]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
