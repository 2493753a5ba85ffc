package delta

import (
	"iter"
	"maps"
	"sync"
	"sync/atomic"
)

// MapBase is the read-only view an overlay needs from its base.
type MapBase[K comparable, V any] interface {
	Len() int
	Get(key K) (V, bool)
	All() iter.Seq2[K, V]
}

// HashMap is a plain immutable map base.
type HashMap[K comparable, V any] struct {
	m map[K]V
}

// NewHashMap copies m into a new base.
func NewHashMap[K comparable, V any](m map[K]V) *HashMap[K, V] {
	return &HashMap[K, V]{m: maps.Clone(m)}
}

func (h *HashMap[K, V]) Len() int {
	return len(h.m)
}

func (h *HashMap[K, V]) Get(key K) (V, bool) {
	v, ok := h.m[key]
	return v, ok
}

func (h *HashMap[K, V]) All() iter.Seq2[K, V] {
	return maps.All(h.m)
}

type mapChange[V any] struct {
	op    Op
	value V
}

// Map is a copy-on-write overlay over a MapBase. Each key keeps only its
// latest change. Writes are not safe for concurrent use; reads of a sealed
// Map are.
type Map[K comparable, V any] struct {
	base    MapBase[K, V]
	changes map[K]mapChange[V]
	sealed  atomic.Bool
	// below and belowChanges describe the sealed chain under this layer.
	below        int
	belowChanges int

	mu   sync.Mutex
	flat map[K]V
}

// NewMap wraps base. If base is itself an overlay it is sealed.
func NewMap[K comparable, V any](base MapBase[K, V]) *Map[K, V] {
	if base == nil {
		base = NewHashMap[K, V](nil)
	}
	below, belowChanges := wrapBase(base)
	return &Map[K, V]{base: base, changes: make(map[K]mapChange[V]), below: below, belowChanges: belowChanges}
}

// Next seals m and returns a fresh overlay on top of it.
func (m *Map[K, V]) Next() *Map[K, V] {
	return NewMap[K, V](m)
}

func (m *Map[K, V]) seal() {
	m.sealed.Store(true)
}

func (m *Map[K, V]) Base() MapBase[K, V] {
	return m.base
}

// Changes returns the number of keys with a change in this layer.
func (m *Map[K, V]) Changes() int {
	return len(m.changes)
}

// Depth is the number of overlay layers from m down to the plain base.
func (m *Map[K, V]) Depth() int {
	return m.below + 1
}

// TotalChanges is the change count summed over every overlay layer.
func (m *Map[K, V]) TotalChanges() int {
	return m.belowChanges + len(m.changes)
}

// Get consults the change log first and falls back to the base.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if c, ok := m.changes[key]; ok {
		if c.op == OpRemove {
			var zero V
			return zero, false
		}
		return c.value, true
	}
	return m.base.Get(key)
}

func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Map[K, V]) Len() int {
	return len(m.view())
}

// All iterates the materialized view.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return maps.All(m.view())
}

// Keys returns the keys of the materialized view in unspecified order.
func (m *Map[K, V]) Keys() []K {
	view := m.view()
	out := make([]K, 0, len(view))
	for k := range view {
		out = append(out, k)
	}
	return out
}

// Flatten returns a copy of the materialized view.
func (m *Map[K, V]) Flatten() map[K]V {
	return maps.Clone(m.view())
}

// Merge flattens m into a new plain base.
func (m *Map[K, V]) Merge() *HashMap[K, V] {
	return &HashMap[K, V]{m: m.Flatten()}
}

// Put stores v under key and returns the previous value, if any.
func (m *Map[K, V]) Put(key K, v V) (V, bool) {
	m.mustWritable()
	old, existed := m.Get(key)
	op := OpAdd
	if existed {
		op = OpUpdate
	}
	m.mu.Lock()
	m.changes[key] = mapChange[V]{op: op, value: v}
	if m.flat != nil {
		m.flat[key] = v
	}
	m.mu.Unlock()
	return old, existed
}

// Remove deletes key and returns the value it had. Removing a key that is
// present only in the base records a REMOVE change.
func (m *Map[K, V]) Remove(key K) (V, bool) {
	m.mustWritable()
	old, existed := m.Get(key)
	if !existed {
		return old, false
	}
	m.mu.Lock()
	if _, inBase := m.base.Get(key); inBase {
		m.changes[key] = mapChange[V]{op: OpRemove}
	} else {
		delete(m.changes, key)
	}
	if m.flat != nil {
		delete(m.flat, key)
	}
	m.mu.Unlock()
	return old, true
}

func (m *Map[K, V]) view() map[K]V {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flat != nil {
		return m.flat
	}
	flat := make(map[K]V, m.base.Len()+len(m.changes))
	for k, v := range m.base.All() {
		flat[k] = v
	}
	for k, c := range m.changes {
		if c.op == OpRemove {
			delete(flat, k)
			continue
		}
		flat[k] = c.value
	}
	m.flat = flat
	return flat
}

func (m *Map[K, V]) mustWritable() {
	if m.sealed.Load() {
		panic("delta: write to sealed map")
	}
}
