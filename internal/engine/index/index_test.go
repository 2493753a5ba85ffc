package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"recast/internal/engine/parser"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newParser(t *testing.T) *parser.Parser {
	t.Helper()
	loader, err := parser.NewGrammarLoader(nil)
	require.NoError(t, err)
	return parser.NewParser(loader, nil)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sym(path, name string, start int) parser.Symbol {
	return parser.Symbol{Name: name, Kind: parser.SymbolFunction, Path: path, Start: start, End: start + len(name)}
}

func TestSnapshot_ApplyKeepsFilesSortedAndBaseIntact(t *testing.T) {
	base := Empty()
	base.Apply(Update{Path: "b.go", Entry: &FileEntry{Hash: 1}, Symbols: []parser.Symbol{sym("b.go", "Run", 10)}})
	base.Apply(Update{Path: "d.go", Entry: &FileEntry{Hash: 2}})

	next := base.Next()
	assert.Equal(t, uint64(1), next.Version)
	next.Apply(Update{Path: "a.go", Entry: &FileEntry{Hash: 3}, Symbols: []parser.Symbol{sym("a.go", "Run", 5)}})
	next.Apply(Update{Path: "c.go", Entry: &FileEntry{Hash: 4}})
	next.Apply(Update{Path: "d.go"})

	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, next.Paths())
	assert.Equal(t, []string{"b.go", "d.go"}, base.Paths())

	runs := next.Lookup("Run")
	require.Len(t, runs, 2)
	assert.Equal(t, "a.go", runs[0].Path)
	assert.Equal(t, "b.go", runs[1].Path)
	assert.Len(t, base.Lookup("Run"), 1)

	// Re-extracting b.go without symbols drops its definitions.
	next.Apply(Update{Path: "b.go", Entry: &FileEntry{Hash: 9}})
	assert.Len(t, next.Lookup("Run"), 1)
	assert.True(t, next.Defines("Run"))
	next.Apply(Update{Path: "a.go"})
	assert.False(t, next.Defines("Run"))
	assert.True(t, base.Defines("Run"))

	merged := next.Merge()
	assert.Equal(t, 0, merged.Changes())
	assert.Equal(t, next.Paths(), merged.Paths())
	assert.Equal(t, next.Version, merged.Version)
}

func TestSnapshot_WriteAfterNextPanics(t *testing.T) {
	base := Empty()
	_ = base.Next()
	assert.Panics(t, func() {
		base.Apply(Update{Path: "x.go", Entry: &FileEntry{}})
	})
}

func TestStartNext_BuildsIncrementally(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\n\nfunc Alpha() {}\n")
	b := writeFile(t, dir, "b.py", "class Beta:\n    def gamma(self):\n        pass\n")
	notes := writeFile(t, dir, "notes.txt", "no symbols here")
	p := newParser(t)
	ctx := context.Background()

	first, err := Build(ctx, p, []string{b, a, notes}, Options{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, 3, first.Files.Len())
	require.Len(t, first.Lookup("Alpha"), 1)
	require.Len(t, first.Lookup("gamma"), 1)
	assert.Equal(t, parser.SymbolMethod, first.Lookup("gamma")[0].Kind)
	entry, ok := first.File(notes)
	require.True(t, ok)
	assert.Empty(t, entry.Symbols)

	writeFile(t, dir, "a.go", "package a\n\nfunc Delta() {}\n")
	require.NoError(t, os.Remove(b))
	task := StartNext(ctx, p, first, []string{a, b, notes}, Options{MergeThreshold: 1})
	assert.Equal(t, Inputs{Version: 1, Paths: []string{a, b, notes}}, task.Inputs)
	second, err := task.Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, 0, second.Changes(), "expected promotion to plain bases")
	assert.False(t, second.Defines("Alpha"))
	assert.True(t, second.Defines("Delta"))
	assert.False(t, second.Defines("gamma"))
	assert.Equal(t, 2, second.Files.Len())

	// The previous snapshot is untouched.
	assert.True(t, first.Defines("Alpha"))
	assert.True(t, first.Defines("gamma"))
}

func TestStartNext_UnchangedFilesRecordNothing(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\n\nfunc Alpha() {}\n")
	p := newParser(t)
	ctx := context.Background()

	first, err := Build(ctx, p, []string{a}, Options{})
	require.NoError(t, err)
	second, err := StartNext(ctx, p, first, []string{a}, Options{}).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changes())
	assert.True(t, second.Defines("Alpha"))
}

func TestStartNext_ManyRoundsKeepOverlayChainBounded(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\n\nfunc F0() {}\n")
	p := newParser(t)
	ctx := context.Background()
	opts := Options{MergeThreshold: 256}

	snap, err := Build(ctx, p, []string{a}, opts)
	require.NoError(t, err)
	maxDepth := 0
	for round := 1; round <= 300; round++ {
		writeFile(t, dir, "a.go", fmt.Sprintf("package a\n\nfunc F%d() {}\n", round))
		snap, err = StartNext(ctx, p, snap, []string{a}, opts).Wait(ctx)
		require.NoError(t, err)
		maxDepth = max(maxDepth, snap.Depth())
		require.LessOrEqual(t, snap.PendingChanges(), opts.MergeThreshold, "round %d", round)
	}
	assert.Equal(t, uint64(301), snap.Version)
	assert.LessOrEqual(t, maxDepth, MaxDepth)
	assert.True(t, snap.Defines("F300"))
	assert.False(t, snap.Defines("F299"))
}

func TestStartNext_UnchangedRoundsStillMerge(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\n\nfunc Alpha() {}\n")
	p := newParser(t)
	ctx := context.Background()

	snap, err := Build(ctx, p, []string{a}, Options{})
	require.NoError(t, err)
	for round := 0; round < 3*MaxDepth; round++ {
		snap, err = StartNext(ctx, p, snap, []string{a}, Options{}).Wait(ctx)
		require.NoError(t, err)
		require.LessOrEqual(t, snap.Depth(), MaxDepth)
	}
	assert.True(t, snap.Defines("Alpha"))
}

func TestStartNext_Cancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.go", "package a\n")
	p := newParser(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task := StartNext(ctx, p, Empty(), []string{a}, Options{})
	<-task.Done()
	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTask_WaitHonoursCallerContext(t *testing.T) {
	task := &Task{done: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
