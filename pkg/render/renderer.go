package render

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables indented output. Text inside inline elements stays on
	// one line.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces.
	Indent string

	// Minify runs the output through an HTML minifier. It takes precedence
	// over Pretty.
	Minify bool
}

// Renderer turns vdom trees back into HTML.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// RenderToString renders the whole tree.
func (r *Renderer) RenderToString(t *vdom.Tree) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, t); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams the whole tree to w. An empty tree renders
// nothing.
func (r *Renderer) RenderToWriter(w io.Writer, t *vdom.Tree) error {
	if t.Len() == 0 {
		return nil
	}
	return r.RenderNode(w, t, t.Root())
}

// RenderNode renders the subtree rooted at id.
func (r *Renderer) RenderNode(w io.Writer, t *vdom.Tree, id vdom.NodeID) error {
	if !t.Has(id) {
		return fmt.Errorf("render: node %d is not in the tree", id)
	}
	if r.config.Minify {
		var buf bytes.Buffer
		if err := r.write(&buf, t, id); err != nil {
			return err
		}
		return minifyTo(w, buf.Bytes())
	}
	return r.write(w, t, id)
}

func (r *Renderer) write(w io.Writer, t *vdom.Tree, id vdom.NodeID) error {
	bw := bufio.NewWriter(w)
	r.renderNode(bw, t, id, 0, r.config.Pretty && !r.config.Minify)
	return bw.Flush()
}

// renderNode writes into a bufio.Writer, which remembers the first write
// error and reports it from Flush.
func (r *Renderer) renderNode(w *bufio.Writer, t *vdom.Tree, id vdom.NodeID, depth int, pretty bool) {
	n := t.MustNode(id)
	if !n.IsText() {
		r.renderElement(w, t, n, depth, pretty)
		return
	}
	if pretty && depth > 0 {
		r.writeIndent(w, depth)
		w.WriteString(escapeText(n.Content()))
		w.WriteByte('\n')
		return
	}
	w.WriteString(escapeText(n.Content()))
}

func (r *Renderer) renderElement(w *bufio.Writer, t *vdom.Tree, n vdom.Node, depth int, pretty bool) {
	if pretty && depth > 0 {
		r.writeIndent(w, depth)
	}

	w.WriteByte('<')
	w.WriteString(n.Tag)
	for _, key := range n.Attrs.Keys() {
		value := n.Attrs[key]
		if isBooleanAttr(key) && (value == "" || value == key) {
			w.WriteByte(' ')
			w.WriteString(key)
			continue
		}
		fmt.Fprintf(w, ` %s="%s"`, key, escapeAttr(value))
	}
	w.WriteByte('>')

	if isVoidElement(n.Tag) {
		if pretty {
			w.WriteByte('\n')
		}
		return
	}

	// Elements holding only text and inline markup stay on one line.
	block := pretty && len(n.Children) > 0 && !inlineContent(t, n)
	if block {
		w.WriteByte('\n')
	}
	for _, c := range n.Children {
		if block {
			r.renderNode(w, t, c, depth+1, true)
		} else {
			r.renderNode(w, t, c, 0, false)
		}
	}
	if block {
		r.writeIndent(w, depth)
	}

	w.WriteString("</")
	w.WriteString(n.Tag)
	w.WriteByte('>')
	if pretty {
		w.WriteByte('\n')
	}
}

// inlineContent reports whether every child of n is text or an inline
// element.
func inlineContent(t *vdom.Tree, n vdom.Node) bool {
	for _, c := range n.Children {
		child := t.MustNode(c)
		if !child.IsText() && !isInlineElement(child.Tag) {
			return false
		}
	}
	return true
}

func (r *Renderer) writeIndent(w *bufio.Writer, depth int) {
	for range depth {
		w.WriteString(r.config.Indent)
	}
}
