package rule

import (
	"sort"
	"strconv"
	"strings"
)

// Element is the declarative description of one rule constituent: a tag,
// attributes, and either child elements or text.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Children []*Element
	Text     string
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Attrs == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// String renders e and its subtree in KDL syntax. The output is stable and
// is used as the serialized form of a rule in logs and plans.
func (e *Element) String() string {
	var b strings.Builder
	e.write(&b, 0)
	return b.String()
}

func (e *Element) write(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("    ", depth))
	b.WriteString(e.Tag)
	if e.Text != "" {
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(e.Text))
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(e.Attrs[k]))
	}
	if len(e.Children) == 0 {
		b.WriteByte('\n')
		return
	}
	b.WriteString(" {\n")
	for _, c := range e.Children {
		c.write(b, depth+1)
	}
	b.WriteString(strings.Repeat("    ", depth))
	b.WriteString("}\n")
}
