package vdom

import (
	"log/slog"
	"strings"
)

// Attribute is one name/value pair reported by a Source.
type Attribute struct {
	Key   string
	Value string
}

// Source is a node of an externally parsed document. It is the only
// boundary between the builder and a markup parser.
type Source interface {
	// Tag returns the element name, if the node is an element.
	Tag() (string, bool)

	// Text returns the payload, if the node is a text run.
	Text() (string, bool)

	// Attributes returns the element's attributes in document order.
	Attributes() []Attribute

	// Children enumerates the child nodes in document order.
	Children() ([]Source, error)
}

// DefaultDenylist holds the tags that never render.
var DefaultDenylist = []string{"script", "style"}

// DefaultMaxDepth bounds nesting so a hostile document cannot exhaust the
// stack.
const DefaultMaxDepth = 512

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDenylist replaces the set of non-renderable tags.
func WithDenylist(tags ...string) BuilderOption {
	return func(b *Builder) {
		b.deny = make(map[string]bool, len(tags))
		for _, t := range tags {
			b.deny[strings.ToLower(t)] = true
		}
	}
}

// WithKeyAttr sets the attribute used as identity key.
func WithKeyAttr(name string) BuilderOption {
	return func(b *Builder) {
		b.keyAttr = name
	}
}

// WithPreserveWhitespace keeps text content untrimmed. Whitespace-only text
// is still pruned.
func WithPreserveWhitespace(preserve bool) BuilderOption {
	return func(b *Builder) {
		b.preserveSpace = preserve
	}
}

// WithMaxDepth sets the maximum nesting depth. Deeper nodes are dropped with
// a BuildError.
func WithMaxDepth(depth int) BuilderOption {
	return func(b *Builder) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

// WithBuildLogger sets the logger used to report recovered build errors.
func WithBuildLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// Builder converts Source trees into Trees. A Builder holds only
// configuration and may be shared between goroutines.
type Builder struct {
	deny          map[string]bool
	keyAttr       string
	preserveSpace bool
	maxDepth      int
	logger        *slog.Logger
}

// NewBuilder returns a Builder with the default denylist and key attribute.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		keyAttr:  KeyAttr,
		maxDepth: DefaultMaxDepth,
	}
	WithDenylist(DefaultDenylist...)(b)
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default().With("component", "vdom.builder")
	}
	return b
}

// draft is a node under construction; IDs are assigned once the whole tree
// is known so each tree gets one contiguous block.
type draft struct {
	tag      string
	attrs    Attrs
	key      string
	children []*draft
}

// Build converts src into a Tree. It never mutates src. Malformed subtrees
// are skipped and reported through Tree.BuildErrors; ErrEmptyDocument is
// returned when nothing at all is renderable.
func (b *Builder) Build(src Source) (*Tree, error) {
	var errs []error
	root := b.build(src, 0, &errs)
	for _, err := range errs {
		b.logger.Warn("skipped malformed node", "error", err)
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}

	t := &Tree{errors: errs}
	t.nodes = make([]Node, 0, count(root))
	t.flatten(root, None)
	t.base = reserveIDs(len(t.nodes))
	for i := range t.nodes {
		t.rebase(i)
	}
	return t, nil
}

func (b *Builder) build(src Source, depth int, errs *[]error) *draft {
	if src == nil {
		return nil
	}
	if text, ok := src.Text(); ok {
		if _, isElem := src.Tag(); !isElem {
			return b.buildText(text)
		}
	}
	tag, ok := src.Tag()
	if !ok || tag == "" {
		return nil
	}
	tag = strings.ToLower(tag)
	if b.deny[tag] {
		return nil
	}
	if depth >= b.maxDepth {
		*errs = append(*errs, &BuildError{Tag: tag, Depth: depth, Err: ErrMaxDepth})
		return nil
	}
	kids, err := src.Children()
	if err != nil {
		*errs = append(*errs, &BuildError{Tag: tag, Depth: depth, Err: err})
		return nil
	}

	d := &draft{tag: tag}
	if attrs := src.Attributes(); len(attrs) > 0 {
		d.attrs = make(Attrs, len(attrs))
		for _, a := range attrs {
			d.attrs[a.Key] = a.Value
		}
		d.key = d.attrs[b.keyAttr]
	}
	for _, kid := range kids {
		if c := b.build(kid, depth+1, errs); c != nil {
			d.children = append(d.children, c)
		}
	}
	return d
}

func (b *Builder) buildText(text string) *draft {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if b.preserveSpace {
		trimmed = text
	}
	return &draft{tag: TextTag, attrs: Attrs{ContentAttr: trimmed}}
}

func count(d *draft) int {
	n := 1
	for _, c := range d.children {
		n += count(c)
	}
	return n
}

// flatten appends d and its descendants in pre-order. IDs written here are
// 1-based and relative to the arena; rebase shifts them once the block of
// real IDs is reserved.
func (t *Tree) flatten(d *draft, parent NodeID) NodeID {
	idx := len(t.nodes)
	id := NodeID(idx + 1)
	t.nodes = append(t.nodes, Node{
		ID:     id,
		Parent: parent,
		Tag:    d.tag,
		Attrs:  d.attrs,
		Key:    d.key,
	})
	if len(d.children) > 0 {
		children := make([]NodeID, 0, len(d.children))
		for _, c := range d.children {
			children = append(children, t.flatten(c, id))
		}
		t.nodes[idx].Children = children
	}
	return id
}

func (t *Tree) rebase(i int) {
	shift := t.base - 1
	n := &t.nodes[i]
	n.ID += shift
	if n.Parent != None {
		n.Parent += shift
	}
	for j := range n.Children {
		n.Children[j] += shift
	}
}
