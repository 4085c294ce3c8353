package vdom

import (
	"strings"
	"sync/atomic"
)

const (
	// TextTag is the reserved tag of text nodes. Markup parsers never produce
	// a tag containing '#', so it cannot collide with an element tag.
	TextTag = "#text"

	// ContentAttr holds the content of a text node.
	ContentAttr = "content"

	// KeyAttr is the default attribute used as a node's identity key.
	KeyAttr = "id"
)

// NodeID identifies a node across every tree built by this process.
// The zero value is never assigned and means "no node".
type NodeID uint64

// None is the absent NodeID.
const None NodeID = 0

// nextID is the last NodeID handed out. Trees reserve contiguous blocks.
var nextID atomic.Uint64

// reserveIDs reserves n consecutive IDs and returns the first one.
func reserveIDs(n int) NodeID {
	end := nextID.Add(uint64(n))
	return NodeID(end - uint64(n) + 1)
}

// Node is one element or text run. Nodes live inside a Tree and refer to
// each other by NodeID only.
type Node struct {
	ID       NodeID
	Parent   NodeID // None for the root
	Tag      string
	Attrs    Attrs
	Children []NodeID
	Key      string // identity key, from the key attribute
}

// IsText reports whether the node is a text run.
func (n Node) IsText() bool {
	return n.Tag == TextTag
}

// Content returns the content of a text node.
func (n Node) Content() string {
	return n.Attrs[ContentAttr]
}

// String returns a short description of the node for logs.
func (n Node) String() string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(n.Tag)
	if n.Key != "" {
		b.WriteString(" #")
		b.WriteString(n.Key)
	}
	b.WriteByte('>')
	return b.String()
}

// Tree is an arena of nodes. Node i of the arena has ID base+i, so lookups
// are a bounds check and an index. A Tree is immutable once built.
type Tree struct {
	base   NodeID
	nodes  []Node
	errors []error
}

// Root returns the root node ID, or None for an empty tree.
func (t *Tree) Root() NodeID {
	if t == nil || len(t.nodes) == 0 {
		return None
	}
	return t.base
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Has reports whether id belongs to this tree.
func (t *Tree) Has(id NodeID) bool {
	if t == nil || id < t.base {
		return false
	}
	return uint64(id-t.base) < uint64(len(t.nodes))
}

// Node returns the node with the given ID.
func (t *Tree) Node(id NodeID) (Node, bool) {
	if !t.Has(id) {
		return Node{}, false
	}
	return t.nodes[id-t.base], true
}

// MustNode returns the node with the given ID and panics if it is not part
// of the tree.
func (t *Tree) MustNode(id NodeID) Node {
	n, ok := t.Node(id)
	if !ok {
		panic("vdom: node not in tree")
	}
	return n
}

// Children returns the children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	n, ok := t.Node(id)
	if !ok {
		return nil
	}
	return n.Children
}

// IndexOf returns the position of id among its parent's children, or -1
// for the root or a foreign ID.
func (t *Tree) IndexOf(id NodeID) int {
	n, ok := t.Node(id)
	if !ok || n.Parent == None {
		return -1
	}
	for i, c := range t.nodes[n.Parent-t.base].Children {
		if c == id {
			return i
		}
	}
	return -1
}

// BuildErrors returns the errors recovered while building the tree. Each
// one caused a subtree to be left out.
func (t *Tree) BuildErrors() []error {
	if t == nil {
		return nil
	}
	return t.errors
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(id NodeID, fn func(Node) bool) {
	n, ok := t.Node(id)
	if !ok {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// Subtree returns id and every descendant in post-order (children first).
func (t *Tree) Subtree(id NodeID) []NodeID {
	var out []NodeID
	var visit func(NodeID)
	visit = func(id NodeID) {
		for _, c := range t.Children(id) {
			visit(c)
		}
		if t.Has(id) {
			out = append(out, id)
		}
	}
	visit(id)
	return out
}

// Text concatenates the content of the direct text children of id.
// Headings and links use it for their label.
func (t *Tree) Text(id NodeID) string {
	var b strings.Builder
	for _, c := range t.Children(id) {
		if n := t.MustNode(c); n.IsText() {
			b.WriteString(n.Content())
		}
	}
	return b.String()
}

// Equal reports whether two trees have the same structure: tags,
// attributes and child order. IDs are ignored.
func (t *Tree) Equal(other *Tree) bool {
	if t.Len() != other.Len() {
		return false
	}
	if t.Len() == 0 {
		return true
	}
	return t.equalAt(t.Root(), other, other.Root())
}

func (t *Tree) equalAt(a NodeID, other *Tree, b NodeID) bool {
	na, nb := t.MustNode(a), other.MustNode(b)
	if na.Tag != nb.Tag || na.Key != nb.Key || !na.Attrs.Equal(nb.Attrs) {
		return false
	}
	if len(na.Children) != len(nb.Children) {
		return false
	}
	for i := range na.Children {
		if !t.equalAt(na.Children[i], other, nb.Children[i]) {
			return false
		}
	}
	return true
}
