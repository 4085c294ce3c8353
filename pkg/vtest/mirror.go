package vtest

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Contract violations reported by Mirror.
var (
	ErrDestroyed     = errors.New("vtest: handle already destroyed")
	ErrIndexRange    = errors.New("vtest: mount index out of range")
	ErrLiveChildren  = errors.New("vtest: destroy with live children")
	ErrInjected      = errors.New("vtest: injected failure")
	ErrAttrsMismatch = errors.New("vtest: node attributes do not match delta")
)

// Element is one rendered node of a Mirror.
type Element struct {
	Serial   int
	Tag      string
	Attrs    vdom.Attrs
	Children []*Element
	Parent   *Element

	destroyed bool
}

// Destroyed reports whether the element has been destroyed.
func (e *Element) Destroyed() bool {
	return e.destroyed
}

// Call records one adapter invocation.
type Call struct {
	Action string // "mount", "update" or "destroy"
	Tag    string
	Index  int
	Delta  vdom.AttrDelta
}

func (c Call) String() string {
	switch c.Action {
	case "mount":
		return fmt.Sprintf("mount <%s> @%d", c.Tag, c.Index)
	case "update":
		return fmt.Sprintf("update <%s> %s", c.Tag, c.Delta)
	default:
		return fmt.Sprintf("%s <%s>", c.Action, c.Tag)
	}
}

// Mirror is an in-memory vdom.Adapter.
type Mirror struct {
	root   *Element
	serial int
	live   int
	calls  []Call

	failAction string
	failAfter  int
}

// NewMirror returns a Mirror with an empty root container.
func NewMirror() *Mirror {
	return &Mirror{root: &Element{Tag: "#root"}}
}

// Root returns the container element to mount documents under.
func (m *Mirror) Root() *Element {
	return m.root
}

// Live returns the number of mounted, undestroyed elements.
func (m *Mirror) Live() int {
	return m.live
}

// Calls returns every adapter call so far.
func (m *Mirror) Calls() []Call {
	return m.calls
}

// CallCount returns the number of calls with the given action.
func (m *Mirror) CallCount(action string) int {
	n := 0
	for _, c := range m.calls {
		if c.Action == action {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (m *Mirror) ResetCalls() {
	m.calls = nil
}

// FailAfter makes the n-th next call with the given action fail with
// ErrInjected. n counts from 1.
func (m *Mirror) FailAfter(action string, n int) {
	m.failAction = action
	m.failAfter = n
}

func (m *Mirror) inject(action string) error {
	if m.failAction != action || m.failAfter <= 0 {
		return nil
	}
	m.failAfter--
	if m.failAfter == 0 {
		m.failAction = ""
		return ErrInjected
	}
	return nil
}

// Mount implements vdom.Adapter.
func (m *Mirror) Mount(parent *Element, n vdom.Node, index int) (*Element, error) {
	m.calls = append(m.calls, Call{Action: "mount", Tag: n.Tag, Index: index})
	if err := m.inject("mount"); err != nil {
		return nil, err
	}
	if parent == nil || parent.destroyed {
		return nil, ErrDestroyed
	}
	if index < 0 || index > len(parent.Children) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexRange, index, len(parent.Children))
	}
	m.serial++
	e := &Element{
		Serial: m.serial,
		Tag:    n.Tag,
		Attrs:  n.Attrs.Clone(),
		Parent: parent,
	}
	parent.Children = slices.Insert(parent.Children, index, e)
	m.live++
	return e, nil
}

// UpdateAttrs implements vdom.Adapter.
func (m *Mirror) UpdateAttrs(h *Element, n vdom.Node, delta vdom.AttrDelta) error {
	m.calls = append(m.calls, Call{Action: "update", Tag: n.Tag, Delta: delta})
	if err := m.inject("update"); err != nil {
		return err
	}
	if h == nil || h.destroyed {
		return ErrDestroyed
	}
	updated := delta.ApplyTo(h.Attrs)
	if !updated.Equal(n.Attrs) {
		return fmt.Errorf("%w: have %v, node %v", ErrAttrsMismatch, updated, n.Attrs)
	}
	h.Attrs = updated.Clone()
	return nil
}

// Destroy implements vdom.Adapter.
func (m *Mirror) Destroy(h *Element) error {
	tag := ""
	if h != nil {
		tag = h.Tag
	}
	m.calls = append(m.calls, Call{Action: "destroy", Tag: tag})
	if err := m.inject("destroy"); err != nil {
		return err
	}
	if h == nil || h.destroyed {
		return ErrDestroyed
	}
	if len(h.Children) > 0 {
		return ErrLiveChildren
	}
	if p := h.Parent; p != nil {
		if i := slices.Index(p.Children, h); i >= 0 {
			p.Children = slices.Delete(p.Children, i, i+1)
		}
	}
	h.destroyed = true
	h.Parent = nil
	m.live--
	return nil
}

// Snapshot serializes everything mounted under the root.
func (m *Mirror) Snapshot() string {
	var b strings.Builder
	for _, c := range m.root.Children {
		writeElement(&b, c)
	}
	return b.String()
}

func writeElement(b *strings.Builder, e *Element) {
	writeOpen(b, e.Tag, e.Attrs)
	for _, c := range e.Children {
		writeElement(b, c)
	}
	writeClose(b, e.Tag)
}

// Render serializes a tree in the same format as Mirror.Snapshot, so a
// freshly mounted tree and its mirror compare equal.
func Render(t *vdom.Tree) string {
	if t.Len() == 0 {
		return ""
	}
	var b strings.Builder
	var walk func(id vdom.NodeID)
	walk = func(id vdom.NodeID) {
		n := t.MustNode(id)
		writeOpen(&b, n.Tag, n.Attrs)
		for _, c := range n.Children {
			walk(c)
		}
		writeClose(&b, n.Tag)
	}
	walk(t.Root())
	return b.String()
}

func writeOpen(b *strings.Builder, tag string, attrs vdom.Attrs) {
	if tag == vdom.TextTag {
		fmt.Fprintf(b, "%q", attrs[vdom.ContentAttr])
		return
	}
	b.WriteByte('<')
	b.WriteString(tag)
	for _, k := range attrs.Keys() {
		fmt.Fprintf(b, " %s=%q", k, attrs[k])
	}
	b.WriteByte('>')
}

func writeClose(b *strings.Builder, tag string) {
	if tag == vdom.TextTag {
		return
	}
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

// CheckHandles verifies that hm holds exactly the nodes of t and that every
// handle mirrors its node: same tag, same attributes, same children in the
// same order.
func CheckHandles(t *vdom.Tree, hm *vdom.HandleMap[*Element]) error {
	if hm.Len() != t.Len() {
		return fmt.Errorf("vtest: handle map has %d entries, tree has %d nodes", hm.Len(), t.Len())
	}
	if t.Len() == 0 {
		return nil
	}
	var check func(id vdom.NodeID) error
	check = func(id vdom.NodeID) error {
		n := t.MustNode(id)
		h, ok := hm.Get(id)
		if !ok {
			return fmt.Errorf("vtest: node %d %s has no handle", id, n)
		}
		if h.destroyed {
			return fmt.Errorf("vtest: node %d %s maps to a destroyed handle", id, n)
		}
		if h.Tag != n.Tag || !h.Attrs.Equal(n.Attrs) {
			return fmt.Errorf("vtest: node %d %s rendered as <%s> %v", id, n, h.Tag, h.Attrs)
		}
		if len(h.Children) != len(n.Children) {
			return fmt.Errorf("vtest: node %d %s has %d rendered children, want %d", id, n, len(h.Children), len(n.Children))
		}
		for i, c := range n.Children {
			ch, ok := hm.Get(c)
			if !ok || ch != h.Children[i] {
				return fmt.Errorf("vtest: child %d of node %d %s is out of place", i, id, n)
			}
			if err := check(c); err != nil {
				return err
			}
		}
		return nil
	}
	return check(t.Root())
}
