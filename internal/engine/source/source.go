// Package source maps byte offsets in a text buffer to line/column positions
// and back.
package source

import (
	"fmt"
	"recast/internal/core/errors"
	"sort"
	"sync"
	"time"
)

// Position is a 1-based line and 1-based byte column.
type Position struct {
	Line   int `json:"line" msgpack:"line"`
	Column int `json:"column" msgpack:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int `json:"start" msgpack:"start"`
	End   int `json:"end" msgpack:"end"`
}

func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) Empty() bool {
	return r.Start == r.End
}

func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// FileContents is an immutable text buffer with a lazily built line index.
// Safe for concurrent use.
type FileContents struct {
	path    string
	modTime time.Time
	text    string

	once       sync.Once
	lineStarts []int
}

func New(path, text string, modTime time.Time) *FileContents {
	return &FileContents{path: path, text: text, modTime: modTime}
}

func (f *FileContents) Path() string {
	f.mustLoaded()
	return f.path
}

func (f *FileContents) ModTime() time.Time {
	f.mustLoaded()
	return f.modTime
}

func (f *FileContents) Text() string {
	f.mustLoaded()
	return f.text
}

func (f *FileContents) Len() int {
	f.mustLoaded()
	return len(f.text)
}

// LineCount returns the number of line starts, which is at least 1.
func (f *FileContents) LineCount() int {
	return len(f.starts())
}

// Position converts a byte offset in [0, Len()] to a line/column position.
func (f *FileContents) Position(offset int) (Position, error) {
	starts := f.starts()
	if offset < 0 || offset > len(f.text) {
		return Position{}, errors.Newf(errors.CodeInvalidArgument, "offset %d outside [0,%d]", offset, len(f.text))
	}
	i := sort.SearchInts(starts, offset)
	if i < len(starts) && starts[i] == offset {
		return Position{Line: i + 1, Column: 1}, nil
	}
	line := i - 1
	return Position{Line: line + 1, Column: offset - starts[line] + 1}, nil
}

// Offset converts a line/column position back to a byte offset.
func (f *FileContents) Offset(pos Position) (int, error) {
	starts := f.starts()
	if pos.Line < 1 || pos.Line > len(starts) || pos.Column < 1 {
		return 0, errors.Newf(errors.CodeInvalidArgument, "position %s outside buffer of %d lines", pos, len(starts))
	}
	offset := starts[pos.Line-1] + pos.Column - 1
	limit := len(f.text)
	if pos.Line < len(starts) {
		limit = starts[pos.Line] - 1
	}
	if offset > limit {
		return 0, errors.Newf(errors.CodeInvalidArgument, "column %d past end of line %d", pos.Column, pos.Line)
	}
	return offset, nil
}

// Slice returns the text covered by r.
func (f *FileContents) Slice(r Range) (string, error) {
	if err := f.check(r); err != nil {
		return "", err
	}
	return f.text[r.Start:r.End], nil
}

// Span converts r into its start and end positions.
func (f *FileContents) Span(r Range) (Position, Position, error) {
	if err := f.check(r); err != nil {
		return Position{}, Position{}, err
	}
	start, err := f.Position(r.Start)
	if err != nil {
		return Position{}, Position{}, err
	}
	end, err := f.Position(r.End)
	if err != nil {
		return Position{}, Position{}, err
	}
	return start, end, nil
}

// Format renders r as "line:col-line:col".
func (f *FileContents) Format(r Range) (string, error) {
	start, end, err := f.Span(r)
	if err != nil {
		return "", err
	}
	return start.String() + "-" + end.String(), nil
}

// LineRange returns the range of the line containing offset, including its
// line terminator.
func (f *FileContents) LineRange(offset int) (Range, error) {
	pos, err := f.Position(offset)
	if err != nil {
		return Range{}, err
	}
	starts := f.starts()
	r := Range{Start: starts[pos.Line-1], End: len(f.text)}
	if pos.Line < len(starts) {
		r.End = starts[pos.Line]
	}
	return r, nil
}

func (f *FileContents) check(r Range) error {
	f.mustLoaded()
	if r.Start < 0 || r.End < r.Start || r.End > len(f.text) {
		return errors.Newf(errors.CodeInvalidArgument, "range %s outside [0,%d]", r, len(f.text))
	}
	return nil
}

func (f *FileContents) starts() []int {
	f.mustLoaded()
	f.once.Do(func() {
		f.lineStarts = lineStarts(f.text)
	})
	return f.lineStarts
}

func (f *FileContents) mustLoaded() {
	if f == nil {
		panic("source: use of unloaded FileContents")
	}
}

// lineStarts returns the ascending offsets at which lines begin. "\n" and a
// bare "\r" each end a line; "\r\n" counts once.
func lineStarts(text string) []int {
	out := make([]int, 1, len(text)/32+1)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			out = append(out, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				continue
			}
			out = append(out, i+1)
		}
	}
	return out
}
