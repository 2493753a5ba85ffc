package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Conflict is an edit step that overlapped an earlier step in the same file
// and was left out of the preview.
type Conflict struct {
	IssueID uint64
	Step    Step
}

// FilePreview is the in-memory result of applying a plan to one file.
type FilePreview struct {
	Path      string
	Before    string
	After     string
	Diff      string
	Conflicts []Conflict
}

type pendingStep struct {
	issue uint64
	order int
	step  Step
}

// Apply applies the edit steps of issues to text without touching disk.
// Steps are taken in offset order; a step overlapping an accepted one is
// reported as a conflict. Inserts at the same offset keep recording order.
func Apply(text string, issues []*Issue) (string, []Conflict) {
	var pending []pendingStep
	for _, issue := range issues {
		for _, s := range issue.Steps {
			if !s.Edits() {
				continue
			}
			pending = append(pending, pendingStep{issue: issue.ID, order: len(pending), step: s})
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i].step.Range, pending[j].step.Range
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		// Inserts before replacements at the same offset.
		if a.Empty() != b.Empty() {
			return a.Empty()
		}
		return pending[i].order < pending[j].order
	})

	var b strings.Builder
	var conflicts []Conflict
	cursor := 0
	for _, p := range pending {
		r := p.step.Range
		if r.Start < cursor || r.End > len(text) {
			conflicts = append(conflicts, Conflict{IssueID: p.issue, Step: p.step})
			continue
		}
		b.WriteString(text[cursor:r.Start])
		switch p.step.Kind {
		case StepReplace, StepInsert:
			b.WriteString(p.step.Text)
		}
		cursor = r.End
	}
	b.WriteString(text[cursor:])
	return b.String(), conflicts
}

// Preview renders a unified diff per file. read supplies the current
// contents of a path.
func (p *Plan) Preview(read func(path string) (string, error)) ([]FilePreview, error) {
	byFile := p.ByFile()
	out := make([]FilePreview, 0, len(byFile))
	for _, path := range p.Files() {
		before, err := read(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		after, conflicts := Apply(before, byFile[path])
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(before),
			B:        difflib.SplitLines(after),
			FromFile: "a/" + path,
			ToFile:   "b/" + path,
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", path, err)
		}
		out = append(out, FilePreview{
			Path:      path,
			Before:    before,
			After:     after,
			Diff:      diff,
			Conflicts: conflicts,
		})
	}
	return out, nil
}
