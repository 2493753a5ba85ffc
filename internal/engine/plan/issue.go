// Package plan holds the output of a run: issues found by patterns and the
// edit steps their actions propose.
package plan

import (
	"recast/internal/core/errors"
	"recast/internal/engine/source"
	"sync/atomic"
	"time"
)

// Location pins an issue to a range in a file as it was when the issue was
// recorded.
type Location struct {
	Path     string       `json:"path" msgpack:"path"`
	ModTime  time.Time    `json:"mod_time" msgpack:"mod_time"`
	Range    source.Range `json:"range" msgpack:"range"`
	Rendered string       `json:"rendered" msgpack:"rendered"`
}

// StepKind is the kind of an edit step.
type StepKind string

const (
	StepReplace StepKind = "replace"
	StepRemove  StepKind = "remove"
	StepInsert  StepKind = "insert"
	StepLog     StepKind = "log"
)

// Step is one proposed edit. Insert steps use an empty Range at the insertion
// offset; log steps carry only a Message.
type Step struct {
	Kind    StepKind     `json:"kind" msgpack:"kind"`
	Range   source.Range `json:"range" msgpack:"range"`
	Text    string       `json:"text,omitempty" msgpack:"text,omitempty"`
	Message string       `json:"message,omitempty" msgpack:"message,omitempty"`
}

// Edits reports whether the step changes file text.
func (s Step) Edits() bool {
	return s.Kind != StepLog
}

// Issue is one occurrence of a pattern. While open, its range may be moved
// by the pattern's action with SetRange; Finalize freezes it.
type Issue struct {
	ID       uint64   `json:"id" msgpack:"id"`
	Pattern  string   `json:"pattern" msgpack:"pattern"`
	Location Location `json:"location" msgpack:"location"`
	Source   string   `json:"source" msgpack:"source"`
	Steps    []Step   `json:"steps" msgpack:"steps"`

	frozen   bool
	contents *source.FileContents
}

// NewIssue opens an issue over r in fc.
func NewIssue(id uint64, pattern string, fc *source.FileContents, r source.Range) (*Issue, error) {
	issue := &Issue{
		ID:       id,
		Pattern:  pattern,
		Location: Location{Path: fc.Path(), ModTime: fc.ModTime()},
		contents: fc,
	}
	if err := issue.locate(fc, r); err != nil {
		return nil, err
	}
	return issue, nil
}

// Range returns the current working range.
func (i *Issue) Range() source.Range {
	return i.Location.Range
}

// RenderRange renders the current working range as "l:c-l:c". Issues that
// are frozen or were decoded rather than opened return Location.Rendered.
func (i *Issue) RenderRange() (string, error) {
	if i.frozen || i.contents == nil {
		return i.Location.Rendered, nil
	}
	return i.contents.Format(i.Location.Range)
}

// SetRange moves the working range. It fails once the issue is finalized.
func (i *Issue) SetRange(r source.Range) error {
	if i.frozen {
		return errors.AddContext(errors.New(errors.CodeFrozen, "issue range is frozen"), errors.CtxPath, i.Location.Path)
	}
	if r.Start < 0 || r.End < r.Start {
		return errors.AddContext(errors.New(errors.CodeInvalidArgument, "invalid range "+r.String()), errors.CtxPath, i.Location.Path)
	}
	i.Location.Range = r
	return nil
}

// Finalize recomputes the rendered range and source snippet from the final
// working range and freezes the issue.
func (i *Issue) Finalize(fc *source.FileContents, steps []Step) error {
	if i.frozen {
		return errors.New(errors.CodeFrozen, "issue already finalized")
	}
	if err := i.locate(fc, i.Location.Range); err != nil {
		return err
	}
	i.Steps = steps
	i.frozen = true
	return nil
}

// Frozen reports whether Finalize has run.
func (i *Issue) Frozen() bool {
	return i.frozen
}

func (i *Issue) locate(fc *source.FileContents, r source.Range) error {
	rendered, err := fc.Format(r)
	if err != nil {
		return err
	}
	text, err := fc.Slice(r)
	if err != nil {
		return err
	}
	i.Location.Range = r
	i.Location.Rendered = rendered
	i.Source = text
	return nil
}

// IDGenerator hands out issue IDs, unique and increasing within a run.
type IDGenerator struct {
	last atomic.Uint64
}

func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}
