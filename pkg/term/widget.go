// Package term renders documents in a terminal. Screen is a vdom.Adapter
// whose handles are widgets chosen by tag; Browser is an interactive
// bubbletea front end over a page.Controller and a Screen.
package term

import (
	"strconv"
	"strings"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Kind is the widget a node renders as.
type Kind uint8

const (
	KindContainer Kind = iota
	KindText
	KindHeading
	KindLink
	KindField
	KindButton
	KindForm
	KindListItem
	KindBreak
	KindRule
	KindHidden
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindText:
		return "text"
	case KindHeading:
		return "heading"
	case KindLink:
		return "link"
	case KindField:
		return "field"
	case KindButton:
		return "button"
	case KindForm:
		return "form"
	case KindListItem:
		return "item"
	case KindBreak:
		return "break"
	case KindRule:
		return "rule"
	case KindHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// blockTags start on a new line. Everything else flows inline.
var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "section": true,
	"article": true, "header": true, "footer": true, "main": true, "nav": true,
	"aside": true, "ul": true, "ol": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true, "pre": true, "blockquote": true, "figure": true,
	"details": true, "summary": true, "fieldset": true,
}

var hiddenTags = map[string]bool{
	"head": true, "title": true, "meta": true, "link": true, "base": true,
	"template": true, "noscript": true,
}

// Widget is one rendered node.
type Widget struct {
	Kind     Kind
	Tag      string
	Attrs    vdom.Attrs
	Children []*Widget
	Parent   *Widget

	// Text is the content of a text widget or the label of an input button.
	Text string

	// Level is the heading level, 1 to 6.
	Level int

	// Value is what the user typed into a field.
	Value string

	edited    bool
	destroyed bool
}

func newWidget(n vdom.Node) *Widget {
	w := &Widget{Tag: n.Tag}
	w.configure(n)
	return w
}

// configure derives the widget's kind and properties from n.
func (w *Widget) configure(n vdom.Node) {
	w.Attrs = n.Attrs.Clone()
	w.Text, w.Level = "", 0

	switch tag := n.Tag; {
	case n.IsText():
		w.Kind = KindText
		w.Text = n.Content()
	case len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6':
		w.Kind = KindHeading
		w.Level, _ = strconv.Atoi(tag[1:])
	case tag == "a":
		w.Kind = KindLink
	case tag == "input":
		switch w.InputType() {
		case "submit", "button", "reset", "image":
			w.Kind = KindButton
			w.Text = n.Attrs["value"]
			if w.Text == "" {
				w.Text = "Submit"
			}
		default:
			w.Kind = KindField
		}
	case tag == "textarea" || tag == "select":
		w.Kind = KindField
	case tag == "button":
		w.Kind = KindButton
	case tag == "form":
		w.Kind = KindForm
	case tag == "li":
		w.Kind = KindListItem
	case tag == "br":
		w.Kind = KindBreak
	case tag == "hr":
		w.Kind = KindRule
	case hiddenTags[tag]:
		w.Kind = KindHidden
	default:
		w.Kind = KindContainer
	}
}

// Href returns a link's target.
func (w *Widget) Href() string {
	return w.Attrs["href"]
}

// InputType returns the lowercased type of an input, "text" by default.
func (w *Widget) InputType() string {
	t := strings.ToLower(w.Attrs["type"])
	if t == "" {
		return "text"
	}
	return t
}

// Name returns the form field name.
func (w *Widget) Name() string {
	return w.Attrs["name"]
}

// Destroyed reports whether the widget has been destroyed.
func (w *Widget) Destroyed() bool {
	return w.destroyed
}

// Focusable reports whether the user can move focus to the widget.
func (w *Widget) Focusable() bool {
	switch w.Kind {
	case KindLink, KindButton:
		return true
	case KindField:
		return w.InputType() != "hidden"
	}
	return false
}

// SetValue sets a field's value as if the user typed it.
func (w *Widget) SetValue(v string) {
	w.Value = v
	w.edited = true
}

// FieldValue returns the value a field submits: what the user typed, or
// else the value from the document.
func (w *Widget) FieldValue() string {
	if w.edited {
		return w.Value
	}
	if w.Tag == "textarea" {
		return w.TextContent()
	}
	return w.Attrs["value"]
}

// TextContent concatenates the text of all descendants.
func (w *Widget) TextContent() string {
	var b strings.Builder
	var walk func(*Widget)
	walk = func(w *Widget) {
		if w.Kind == KindText {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(w.Text)
		}
		for _, c := range w.Children {
			walk(c)
		}
	}
	walk(w)
	return b.String()
}

// Label returns the text shown for a link or button.
func (w *Widget) Label() string {
	if w.Kind == KindButton && w.Tag == "input" {
		return w.Text
	}
	if s := w.TextContent(); s != "" {
		return s
	}
	return w.Href()
}

// Form returns the nearest enclosing form, or nil.
func (w *Widget) Form() *Widget {
	for p := w.Parent; p != nil; p = p.Parent {
		if p.Kind == KindForm {
			return p
		}
	}
	return nil
}

func (w *Widget) block() bool {
	switch w.Kind {
	case KindHeading, KindForm, KindListItem, KindRule:
		return true
	case KindContainer:
		return blockTags[w.Tag]
	}
	return false
}

func (w *Widget) walk(fn func(*Widget)) {
	fn(w)
	for _, c := range w.Children {
		c.walk(fn)
	}
}
