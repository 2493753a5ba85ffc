package delta

import (
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"
)

// ListBase is the read-only view an overlay needs from its base.
type ListBase[T any] interface {
	Len() int
	Get(i int) T
	All() iter.Seq2[int, T]
}

// Slice is a plain immutable list base.
type Slice[T any] struct {
	items []T
}

// NewSlice copies items into a new base.
func NewSlice[T any](items []T) *Slice[T] {
	return &Slice[T]{items: slices.Clone(items)}
}

func (s *Slice[T]) Len() int {
	return len(s.items)
}

func (s *Slice[T]) Get(i int) T {
	return s.items[i]
}

func (s *Slice[T]) All() iter.Seq2[int, T] {
	return slices.All(s.items)
}

type listChange[T any] struct {
	op    Op
	index int
	value T
}

// List is a copy-on-write overlay over a ListBase. Writes are not safe for
// concurrent use; reads of a sealed List are.
type List[T any] struct {
	base    ListBase[T]
	changes []listChange[T]
	size    int
	sealed  atomic.Bool
	// below and belowChanges describe the sealed chain under this layer.
	below        int
	belowChanges int

	mu   sync.Mutex
	flat []T
	// built is the number of changes reflected in flat; -1 means not built.
	built int
}

// NewList wraps base. If base is itself an overlay it is sealed.
func NewList[T any](base ListBase[T]) *List[T] {
	if base == nil {
		base = NewSlice[T](nil)
	}
	below, belowChanges := wrapBase(base)
	return &List[T]{base: base, size: base.Len(), built: -1, below: below, belowChanges: belowChanges}
}

// Next seals l and returns a fresh overlay on top of it.
func (l *List[T]) Next() *List[T] {
	return NewList[T](l)
}

func (l *List[T]) seal() {
	l.sealed.Store(true)
}

// Base returns the wrapped base.
func (l *List[T]) Base() ListBase[T] {
	return l.base
}

// Changes returns the length of this layer's change log.
func (l *List[T]) Changes() int {
	return len(l.changes)
}

// Depth is the number of overlay layers from l down to the plain base.
func (l *List[T]) Depth() int {
	return l.below + 1
}

// TotalChanges is the change log length summed over every overlay layer.
func (l *List[T]) TotalChanges() int {
	return l.belowChanges + len(l.changes)
}

func (l *List[T]) Len() int {
	return l.size
}

// Get returns the element at i. It panics if i is out of range.
func (l *List[T]) Get(i int) T {
	view := l.view()
	if i < 0 || i >= len(view) {
		panic(fmt.Sprintf("delta: index %d out of range [0,%d)", i, len(view)))
	}
	return view[i]
}

// All iterates the materialized view. The list must not be written while an
// iteration is in progress.
func (l *List[T]) All() iter.Seq2[int, T] {
	view := l.view()
	return func(yield func(int, T) bool) {
		for i, v := range view {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Flatten returns a copy of the materialized view.
func (l *List[T]) Flatten() []T {
	return slices.Clone(l.view())
}

// Merge flattens l into a new plain base.
func (l *List[T]) Merge() *Slice[T] {
	return &Slice[T]{items: l.Flatten()}
}

// Add appends v.
func (l *List[T]) Add(v T) {
	l.Insert(l.size, v)
}

// Insert places v at index i, shifting later elements.
func (l *List[T]) Insert(i int, v T) {
	l.mustWritable()
	if i < 0 || i > l.size {
		panic(fmt.Sprintf("delta: insert index %d out of range [0,%d]", i, l.size))
	}
	l.record(listChange[T]{op: OpAdd, index: i, value: v})
	l.size++
}

// Set replaces the element at i and returns the previous value.
func (l *List[T]) Set(i int, v T) T {
	l.mustWritable()
	old := l.Get(i)
	l.record(listChange[T]{op: OpUpdate, index: i, value: v})
	return old
}

// Remove deletes the element at i and returns it.
func (l *List[T]) Remove(i int) T {
	l.mustWritable()
	old := l.Get(i)
	l.record(listChange[T]{op: OpRemove, index: i})
	l.size--
	return old
}

func (l *List[T]) record(c listChange[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
	if l.built == len(l.changes)-1 {
		l.flat = applyListChange(l.flat, c)
		l.built = len(l.changes)
		return
	}
	l.built = -1
	l.flat = nil
}

func (l *List[T]) view() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.built == len(l.changes) {
		return l.flat
	}
	flat := make([]T, 0, l.size)
	for _, v := range l.base.All() {
		flat = append(flat, v)
	}
	for _, c := range l.changes {
		flat = applyListChange(flat, c)
	}
	l.flat = flat
	l.built = len(l.changes)
	return flat
}

func (l *List[T]) mustWritable() {
	if l.sealed.Load() {
		panic("delta: write to sealed list")
	}
}

func applyListChange[T any](flat []T, c listChange[T]) []T {
	switch c.op {
	case OpAdd:
		return slices.Insert(flat, c.index, c.value)
	case OpUpdate:
		flat[c.index] = c.value
		return flat
	case OpRemove:
		return slices.Delete(flat, c.index, c.index+1)
	}
	return flat
}
