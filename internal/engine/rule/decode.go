package rule

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"recast/internal/core/errors"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// DecodeFile picks a decoder from the file extension.
func DecodeFile(path string, r io.Reader) ([]*Element, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kdl":
		return DecodeKDL(r)
	case ".xml":
		return DecodeXML(r)
	default:
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported rule file format"), errors.CtxPath, path)
	}
}

// DecodeKDL reads a KDL document. Node names become tags, properties become
// attributes, the first argument becomes text and further arguments are kept
// as attributes "arg1", "arg2", ...
func DecodeKDL(r io.Reader) ([]*Element, error) {
	doc, err := kdl.Parse(r)
	if err != nil {
		msg := "parse kdl rules"
		if strings.Contains(err.Error(), "BraceClose") {
			// KDL v1 needs a terminator before a closing brace on the same line.
			msg += " (end the last node in a one-line block with ';')"
		}
		return nil, errors.Wrap(err, errors.CodeMalformedRule, msg)
	}
	out := make([]*Element, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		out = append(out, fromKDL(n))
	}
	return out, nil
}

func fromKDL(n *document.Node) *Element {
	el := &Element{Tag: kdlName(n)}
	for i, arg := range n.Arguments {
		if i == 0 {
			el.Text = kdlValue(arg)
			continue
		}
		setAttr(el, "arg"+strconv.Itoa(i), kdlValue(arg))
	}
	for key, v := range n.Properties {
		setAttr(el, key, kdlValue(v))
	}
	for _, c := range n.Children {
		el.Children = append(el.Children, fromKDL(c))
	}
	return el
}

func kdlName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func kdlValue(v *document.Value) string {
	if v == nil || v.Value == nil {
		return ""
	}
	switch val := v.Value.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// DecodeXML reads an XML document. If the root element is "rules" its
// children are returned, otherwise the root itself.
func DecodeXML(r io.Reader) ([]*Element, error) {
	dec := xml.NewDecoder(r)
	var (
		stack []*Element
		texts []*strings.Builder
		root  *Element
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedRule, "parse xml rules")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Tag: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space != "" {
					continue
				}
				setAttr(el, a.Name.Local, a.Value)
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			// Text is kept next to children too; the compiler drops it when
			// it recognizes a child.
			el := stack[len(stack)-1]
			el.Text = strings.TrimSpace(texts[len(texts)-1].String())
			stack = stack[:len(stack)-1]
			texts = texts[:len(texts)-1]
		}
	}
	if root == nil {
		return nil, errors.New(errors.CodeMalformedRule, "empty xml rule document")
	}
	if root.Tag == "rules" {
		return root.Children, nil
	}
	return []*Element{root}, nil
}

func setAttr(el *Element, key, value string) {
	if el.Attrs == nil {
		el.Attrs = make(map[string]string)
	}
	el.Attrs[key] = value
}
