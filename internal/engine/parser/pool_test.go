package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
)

func newGoPool() *ParserPool {
	return NewParserPool(sitter.NewLanguage(tree_sitter_go.Language()))
}

func TestParserPool_LeaseAccounting(t *testing.T) {
	pool := newGoPool()

	a := pool.Get()
	b := pool.Get()
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, 2, pool.Leased())

	pool.Put(a)
	pool.Put(b)
	pool.Put(nil)
	assert.Equal(t, 0, pool.Leased())
}

func TestParserPool_ReturnedParserStillParses(t *testing.T) {
	pool := newGoPool()

	sp := pool.Get()
	sp.Reset()
	pool.Put(sp)

	sp = pool.Get()
	defer pool.Put(sp)
	tree := sp.Parse([]byte("package main\nfunc ok() {}\n"), nil)
	require.NotNil(t, tree)
	defer tree.Close()
	assert.False(t, tree.RootNode().HasError())
}

func TestParserPool_Concurrent(t *testing.T) {
	pool := newGoPool()
	src := []byte("package main\nfunc run() {}\n")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				sp := pool.Get()
				if tree := sp.Parse(src, nil); tree != nil {
					tree.Close()
				} else {
					t.Error("nil tree")
				}
				pool.Put(sp)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, pool.Leased())
}
