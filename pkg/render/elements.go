package render

import "golang.org/x/net/html/atom"

// tagSet holds element or attribute names, as atoms where the atom table
// has them and as plain strings otherwise.
type tagSet struct {
	atoms map[atom.Atom]struct{}
	names map[string]struct{}
}

func newTagSet(atoms ...atom.Atom) tagSet {
	s := tagSet{atoms: make(map[atom.Atom]struct{}, len(atoms))}
	for _, a := range atoms {
		s.atoms[a] = struct{}{}
	}
	return s
}

func (s tagSet) with(names ...string) tagSet {
	s.names = make(map[string]struct{}, len(names))
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

func (s tagSet) has(name string) bool {
	if _, ok := s.names[name]; ok {
		return true
	}
	a := atom.Lookup([]byte(name))
	if a == 0 {
		return false
	}
	_, ok := s.atoms[a]
	return ok
}

// Void elements never have children or a closing tag.
var voidElements = newTagSet(
	atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
	atom.Input, atom.Link, atom.Meta, atom.Param, atom.Source, atom.Track,
	atom.Wbr,
)

// Inline elements stay on their parent's line in pretty output.
var inlineElements = newTagSet(
	atom.A, atom.Abbr, atom.B, atom.Bdi, atom.Bdo, atom.Br, atom.Cite,
	atom.Code, atom.Data, atom.Dfn, atom.Em, atom.I, atom.Kbd, atom.Mark,
	atom.Q, atom.Rb, atom.Rp, atom.Rt, atom.Rtc, atom.Ruby, atom.S,
	atom.Samp, atom.Small, atom.Span, atom.Strong, atom.Sub, atom.Sup,
	atom.Time, atom.U, atom.Var, atom.Wbr, atom.Label,
)

// Boolean attributes are written without a value when present.
var booleanAttrs = newTagSet(
	atom.Async, atom.Autofocus, atom.Autoplay, atom.Checked, atom.Controls,
	atom.Default, atom.Defer, atom.Disabled, atom.Formnovalidate,
	atom.Hidden, atom.Ismap, atom.Itemscope, atom.Loop, atom.Multiple,
	atom.Muted, atom.Novalidate, atom.Open, atom.Readonly, atom.Required,
	atom.Reversed, atom.Selected,
).with("allowfullscreen", "nomodule", "playsinline")

func isVoidElement(tag string) bool   { return voidElements.has(tag) }
func isInlineElement(tag string) bool { return inlineElements.has(tag) }
func isBooleanAttr(name string) bool  { return booleanAttrs.has(name) }
