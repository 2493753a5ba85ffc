package nodes

import (
	"fmt"
	"os"
	"recast/internal/engine/artifact"
	"recast/internal/engine/deps"
	"recast/internal/engine/plan"
	"recast/internal/engine/rule"
	"recast/internal/engine/source"
	"regexp"
	"strings"
)

// sequence runs child actions in order and concatenates their steps.
type sequence struct {
	children []rule.Actor
}

func (a *sequence) Steps(c *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	var out []plan.Step
	for _, child := range a.children {
		steps, err := child.Steps(c, issue)
		if err != nil {
			return nil, err
		}
		out = append(out, steps...)
	}
	return out, nil
}

func newSequence(s rule.Spec) (*rule.Node, error) {
	a := &sequence{}
	for _, n := range s.Children {
		if n.Action != nil {
			a.children = append(a.children, n.Action)
		}
	}
	if len(a.children) == 0 {
		return nil, fmt.Errorf("action needs at least one step")
	}
	return &rule.Node{Kind: "sequence", Action: a}, nil
}

// literalReplace replaces the working range with fixed text.
type literalReplace struct {
	with string
}

func (a *literalReplace) Steps(_ *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	return []plan.Step{{Kind: plan.StepReplace, Range: issue.Range(), Text: a.with}}, nil
}

func replacement(s rule.Spec) string {
	if v, ok := s.Element.Attr("with"); ok {
		return v
	}
	return s.Data
}

func newTextReplace(s rule.Spec) (*rule.Node, error) {
	return &rule.Node{Kind: KindText, Action: &literalReplace{with: replacement(s)}}, nil
}

// regexReplace expands $1 and ${name} against the regex match.
type regexReplace struct {
	re       *regexp.Regexp
	template string
}

func (a *regexReplace) Steps(c *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	m, ok := deps.Get[rule.Match](c, artifact.KeyMatch)
	if !ok {
		return nil, fmt.Errorf("no match in context")
	}
	text, ok := deps.Get[string](c, artifact.KeyText)
	if !ok {
		return nil, fmt.Errorf("no text in context")
	}
	out := a.re.ExpandString(nil, a.template, text, submatches(m))
	return []plan.Step{{Kind: plan.StepReplace, Range: issue.Range(), Text: string(out)}}, nil
}

func newRegexReplace(s rule.Spec) (*rule.Node, error) {
	search, ok := s.Search.Search.(*regexSearch)
	if !ok {
		return nil, fmt.Errorf("regex replace under %T search", s.Search.Search)
	}
	return &rule.Node{Kind: KindRegex, Action: &regexReplace{re: search.re, template: replacement(s)}}, nil
}

// templateReplace expands ${capture} from the match groups.
type templateReplace struct {
	template string
}

func (a *templateReplace) Steps(c *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	groups, _ := deps.Get[map[string]string](c, artifact.KeyGroups)
	return []plan.Step{{Kind: plan.StepReplace, Range: issue.Range(), Text: expand(a.template, groups)}}, nil
}

func newQueryReplace(s rule.Spec) (*rule.Node, error) {
	return &rule.Node{Kind: KindQuery, Action: &templateReplace{template: replacement(s)}}, nil
}

// rename replaces one identifier reference with a new name.
type rename struct {
	to string
}

func (a *rename) Steps(_ *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	return []plan.Step{{Kind: plan.StepReplace, Range: issue.Range(), Text: a.to}}, nil
}

func newSymbolRename(s rule.Spec) (*rule.Node, error) {
	to := replacement(s)
	if to == "" {
		return nil, fmt.Errorf("rename needs a new name")
	}
	return &rule.Node{Kind: KindSymbol, Action: &rename{to: to}}, nil
}

type remove struct{}

func (remove) Steps(_ *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	return []plan.Step{{Kind: plan.StepRemove, Range: issue.Range()}}, nil
}

func newRemove(rule.Spec) (*rule.Node, error) {
	return &rule.Node{Kind: "remove", Action: remove{}}, nil
}

// lineRemove removes a syntax node together with its lines when nothing
// else shares them.
type lineRemove struct{}

func (lineRemove) Steps(c *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	fc, err := contents(c)
	if err != nil {
		return nil, err
	}
	if widened, ok := ownedLines(fc, issue.Range()); ok {
		if err := artifact.SetIssueRange(c, issue, widened); err != nil {
			return nil, err
		}
	}
	return []plan.Step{{Kind: plan.StepRemove, Range: issue.Range()}}, nil
}

// ownedLines widens r to the full lines it covers, terminator included, if
// the rest of those lines is blank.
func ownedLines(fc *source.FileContents, r source.Range) (source.Range, bool) {
	first, err := fc.LineRange(r.Start)
	if err != nil {
		return r, false
	}
	lastOffset := r.End
	if r.End > r.Start {
		lastOffset = r.End - 1
	}
	last, err := fc.LineRange(lastOffset)
	if err != nil {
		return r, false
	}
	text := fc.Text()
	if strings.TrimSpace(text[first.Start:r.Start]) != "" || strings.TrimSpace(text[r.End:last.End]) != "" {
		return r, false
	}
	return source.Range{Start: first.Start, End: last.End}, true
}

func newQueryRemove(rule.Spec) (*rule.Node, error) {
	return &rule.Node{Kind: KindQuery, Action: lineRemove{}}, nil
}

type insert struct {
	text  string
	after bool
}

func (a *insert) Steps(_ *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	at := issue.Range().Start
	if a.after {
		at = issue.Range().End
	}
	return []plan.Step{{Kind: plan.StepInsert, Range: source.Range{Start: at, End: at}, Text: a.text}}, nil
}

func newInsert(after bool) rule.Constructor {
	return func(s rule.Spec) (*rule.Node, error) {
		return &rule.Node{Kind: "insert", Action: &insert{text: replacement(s), after: after}}, nil
	}
}

// logMessage records a message without editing. ${name} expands match
// groups, ${range} the working range and ${path} the file.
type logMessage struct {
	message string
}

func (a *logMessage) Steps(c *deps.Context, issue *plan.Issue) ([]plan.Step, error) {
	vars := map[string]string{"path": issue.Location.Path}
	if fc, err := contents(c); err == nil {
		if formatted, err := fc.Format(issue.Range()); err == nil {
			vars["range"] = formatted
		}
		if text, err := fc.Slice(issue.Range()); err == nil {
			vars["match"] = text
		}
	}
	groups, _ := deps.Get[map[string]string](c, artifact.KeyGroups)
	for k, v := range groups {
		vars[k] = v
	}
	return []plan.Step{{Kind: plan.StepLog, Range: issue.Range(), Message: expand(a.message, vars)}}, nil
}

func newLog(s rule.Spec) (*rule.Node, error) {
	msg := replacement(s)
	if msg == "" {
		return nil, fmt.Errorf("log needs a message")
	}
	return &rule.Node{Kind: "log", Action: &logMessage{message: msg}}, nil
}

func expand(template string, vars map[string]string) string {
	return os.Expand(template, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return "${" + name + "}"
	})
}
