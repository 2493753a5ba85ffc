package deps

import (
	"fmt"
	"log/slog"
	"recast/internal/shared/observability"
)

// Releaser is implemented by cached values that hold resources which must be
// freed when the value is dropped from the cache.
type Releaser interface {
	Release()
}

// Context is one file-processing session's cache. It is not safe for
// concurrent use.
type Context struct {
	graph   *Graph
	values  map[Key]any
	pending map[Key]bool
	logger  *slog.Logger
}

func NewContext(g *Graph, logger *slog.Logger) *Context {
	if g == nil {
		g = NewGraph()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		graph:   g,
		values:  make(map[Key]any),
		pending: make(map[Key]bool),
		logger:  logger,
	}
}

func (c *Context) Graph() *Graph {
	return c.graph
}

// Has reports whether k currently holds a value, without deriving it.
func (c *Context) Has(k Key) bool {
	_, ok := c.values[k]
	return ok
}

// Get returns the value for k, deriving and caching it if possible.
func (c *Context) Get(k Key) (any, bool) {
	if v, ok := c.values[k]; ok {
		observability.CacheHitsTotal.Inc()
		return v, true
	}
	if !c.graph.Derivable(k) || c.pending[k] {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}

	c.pending[k] = true
	defer delete(c.pending, k)

	for _, d := range c.graph.producers[k] {
		src, ok := c.Get(d.from)
		if !ok {
			continue
		}
		v, err := c.produce(k, d, src)
		if err != nil {
			c.logger.Debug("producer failed", "key", string(k), "from", string(d.from), "error", err)
			continue
		}
		if v == nil {
			continue
		}
		c.values[k] = v
		observability.CacheDerivationsTotal.WithLabelValues(string(k)).Inc()
		return v, true
	}
	observability.CacheMissesTotal.Inc()
	return nil, false
}

func (c *Context) produce(k Key, d derivation, src any) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("producer for %s from %s panicked: %v", k, d.from, r)
		}
	}()
	return d.produce(src)
}

// Set stores v under k. If k already held a value, every key derived from it
// is invalidated first. Setting nil is the same as Invalidate.
func (c *Context) Set(k Key, v any) {
	old, had := c.values[k]
	if had {
		c.invalidateDependents(k)
	}
	if v == nil {
		c.drop(k)
		return
	}
	if r, ok := old.(Releaser); had && ok {
		if nv, same := v.(Releaser); !same || nv != r {
			r.Release()
		}
	}
	c.values[k] = v
}

// Invalidate removes k and every key derived from it.
func (c *Context) Invalidate(k Key) {
	c.invalidateDependents(k)
	c.drop(k)
}

// Reset clears every entry.
func (c *Context) Reset() {
	for k, v := range c.values {
		release(v)
		delete(c.values, k)
	}
}

func (c *Context) invalidateDependents(k Key) {
	for _, dep := range c.graph.Dependents(k) {
		c.drop(dep)
	}
}

func (c *Context) drop(k Key) {
	if v, ok := c.values[k]; ok {
		release(v)
		delete(c.values, k)
	}
}

func release(v any) {
	if r, ok := v.(Releaser); ok {
		r.Release()
	}
}

// Get is a typed accessor for c.Get.
func Get[T any](c *Context, k Key) (T, bool) {
	v, ok := c.Get(k)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
