// Package markup turns HTML text into vdom sources using golang.org/x/net/html.
//
// The parser is forgiving: it never rejects a document for being malformed
// and repairs structure the way browsers do. Comments, doctypes and other
// non-content nodes are exposed as neither element nor text, so the vdom
// builder drops them.
package markup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Node adapts an *html.Node to vdom.Source.
type Node struct {
	n *html.Node
}

// Wrap returns the vdom.Source for n.
func Wrap(n *html.Node) Node {
	return Node{n: n}
}

// HTML returns the wrapped parser node.
func (s Node) HTML() *html.Node {
	return s.n
}

// Tag implements vdom.Source.
func (s Node) Tag() (string, bool) {
	if s.n == nil || s.n.Type != html.ElementNode {
		return "", false
	}
	return s.n.Data, true
}

// Text implements vdom.Source.
func (s Node) Text() (string, bool) {
	if s.n == nil || s.n.Type != html.TextNode {
		return "", false
	}
	return s.n.Data, true
}

// Attributes implements vdom.Source. Namespaced attributes are reported as
// "ns:key".
func (s Node) Attributes() []vdom.Attribute {
	if s.n == nil || len(s.n.Attr) == 0 {
		return nil
	}
	attrs := make([]vdom.Attribute, 0, len(s.n.Attr))
	for _, a := range s.n.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		attrs = append(attrs, vdom.Attribute{Key: key, Value: a.Val})
	}
	return attrs
}

// Children implements vdom.Source.
func (s Node) Children() ([]vdom.Source, error) {
	if s.n == nil {
		return nil, nil
	}
	var children []vdom.Source
	for c := s.n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, Node{n: c})
	}
	return children, nil
}

// Parse reads a complete HTML document and returns its <html> element.
func Parse(r io.Reader) (Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Node{}, fmt.Errorf("markup: parse document: %w", err)
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return Node{n: c}, nil
		}
	}
	return Node{n: doc}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (Node, error) {
	return Parse(strings.NewReader(s))
}

// ParseFragment parses a fragment of body content. The returned source is a
// <body> element holding the fragment's top-level nodes.
func ParseFragment(r io.Reader) (Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, body)
	if err != nil {
		return Node{}, fmt.Errorf("markup: parse fragment: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return Node{n: body}, nil
}

// Build parses body as a document and builds a tree from it. Fragments are
// detected by the absence of an <html> tag and parsed as body content.
func Build(b *vdom.Builder, body []byte) (*vdom.Tree, error) {
	var (
		src Node
		err error
	)
	if IsDocument(body) {
		src, err = Parse(bytes.NewReader(body))
	} else {
		src, err = ParseFragment(bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}
	return b.Build(src)
}

// IsDocument reports whether body looks like a full HTML document rather
// than a fragment.
func IsDocument(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype")) || bytes.Contains(head, []byte("<html"))
}
