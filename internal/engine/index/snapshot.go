// Package index keeps a semantic index of symbol definitions. Each snapshot
// is immutable once a successor overlays it; successors are built in the
// background with Task.
package index

import (
	"fmt"
	"recast/internal/engine/delta"
	"recast/internal/engine/parser"
	"slices"
	"sort"
)

// FileEntry is what the index knows about one file.
type FileEntry struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Hash     uint64   `json:"hash"`
	Symbols  []string `json:"symbols"`
}

// Update replaces everything the index knows about Path. A nil Entry removes
// the file.
type Update struct {
	Path    string
	Entry   *FileEntry
	Symbols []parser.Symbol
}

type Snapshot struct {
	Version uint64
	// Files is kept sorted.
	Files   *delta.List[string]
	Entries *delta.Map[string, FileEntry]
	Symbols *delta.Map[string, parser.Symbol]
	Names   *delta.Map[string, []string]
}

// Empty returns a version 0 snapshot over plain bases.
func Empty() *Snapshot {
	return &Snapshot{
		Files:   delta.NewList[string](delta.NewSlice[string](nil)),
		Entries: delta.NewMap[string, FileEntry](delta.NewHashMap[string, FileEntry](nil)),
		Symbols: delta.NewMap[string, parser.Symbol](delta.NewHashMap[string, parser.Symbol](nil)),
		Names:   delta.NewMap[string, []string](delta.NewHashMap[string, []string](nil)),
	}
}

// Next returns a writable successor overlaying s. s must not be written to
// afterwards.
func (s *Snapshot) Next() *Snapshot {
	return &Snapshot{
		Version: s.Version + 1,
		Files:   s.Files.Next(),
		Entries: s.Entries.Next(),
		Symbols: s.Symbols.Next(),
		Names:   s.Names.Next(),
	}
}

// Changes is the number of changes recorded in the top overlay layer.
func (s *Snapshot) Changes() int {
	return s.Files.Changes() + s.Entries.Changes() + s.Symbols.Changes() + s.Names.Changes()
}

// PendingChanges is the number of changes recorded across every overlay
// layer since the last merge.
func (s *Snapshot) PendingChanges() int {
	return s.Files.TotalChanges() + s.Entries.TotalChanges() + s.Symbols.TotalChanges() + s.Names.TotalChanges()
}

// Depth is the number of overlay layers since the last merge. All four
// overlays move together, so Files stands for the rest.
func (s *Snapshot) Depth() int {
	return s.Files.Depth()
}

// Merge flattens every overlay into a fresh plain base.
func (s *Snapshot) Merge() *Snapshot {
	return &Snapshot{
		Version: s.Version,
		Files:   delta.NewList[string](s.Files.Merge()),
		Entries: delta.NewMap[string, FileEntry](s.Entries.Merge()),
		Symbols: delta.NewMap[string, parser.Symbol](s.Symbols.Merge()),
		Names:   delta.NewMap[string, []string](s.Names.Merge()),
	}
}

// SymbolID identifies a definition by file and offset.
func SymbolID(sym parser.Symbol) string {
	return fmt.Sprintf("%s#%d", sym.Path, sym.Start)
}

// Apply records u.
func (s *Snapshot) Apply(u Update) {
	if old, ok := s.Entries.Get(u.Path); ok {
		for _, id := range old.Symbols {
			sym, ok := s.Symbols.Remove(id)
			if !ok {
				continue
			}
			ids, _ := s.Names.Get(sym.Name)
			ids = slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
			if len(ids) == 0 {
				s.Names.Remove(sym.Name)
			} else {
				s.Names.Put(sym.Name, ids)
			}
		}
	}

	i, found := s.fileIndex(u.Path)
	if u.Entry == nil {
		if found {
			s.Files.Remove(i)
		}
		s.Entries.Remove(u.Path)
		return
	}
	if !found {
		s.Files.Insert(i, u.Path)
	}

	entry := *u.Entry
	entry.Path = u.Path
	entry.Symbols = make([]string, 0, len(u.Symbols))
	for _, sym := range u.Symbols {
		id := SymbolID(sym)
		entry.Symbols = append(entry.Symbols, id)
		s.Symbols.Put(id, sym)
		ids, _ := s.Names.Get(sym.Name)
		s.Names.Put(sym.Name, append(slices.Clone(ids), id))
	}
	s.Entries.Put(u.Path, entry)
}

func (s *Snapshot) fileIndex(path string) (int, bool) {
	n := s.Files.Len()
	i := sort.Search(n, func(i int) bool { return s.Files.Get(i) >= path })
	return i, i < n && s.Files.Get(i) == path
}

// File returns the entry for path.
func (s *Snapshot) File(path string) (FileEntry, bool) {
	return s.Entries.Get(path)
}

// Lookup returns every definition named name, ordered by path and offset.
func (s *Snapshot) Lookup(name string) []parser.Symbol {
	ids, _ := s.Names.Get(name)
	out := make([]parser.Symbol, 0, len(ids))
	for _, id := range ids {
		if sym, ok := s.Symbols.Get(id); ok {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// Defines reports whether any file defines name.
func (s *Snapshot) Defines(name string) bool {
	return s.Names.Has(name)
}

// Paths returns the indexed files in order.
func (s *Snapshot) Paths() []string {
	return s.Files.Flatten()
}
