package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

func TestRenderToString(t *testing.T) {
	tests := []struct {
		name string
		src  vdom.Source
		want string
	}{
		{
			name: "text escaping",
			src:  vdom.Element("p", nil, vdom.Text("a < b & \"c\"")),
			want: `<p>a &lt; b &amp; "c"</p>`,
		},
		{
			name: "sorted attributes",
			src:  vdom.Element("a", []string{"title", "x", "href", "/y?a=1&b=2"}, vdom.Text("go")),
			want: `<a href="/y?a=1&amp;b=2" title="x">go</a>`,
		},
		{
			name: "attribute escaping",
			src:  vdom.Element("div", []string{"title", "say \"hi\"\n"}),
			want: `<div title="say &quot;hi&quot;&#10;"></div>`,
		},
		{
			name: "void element",
			src:  vdom.Element("p", nil, vdom.Text("one"), vdom.Element("br", nil), vdom.Text("two")),
			want: `<p>one<br>two</p>`,
		},
		{
			name: "boolean attribute",
			src:  vdom.Element("input", []string{"type", "checkbox", "checked", "", "disabled", "disabled"}),
			want: `<input checked disabled type="checkbox">`,
		},
		{
			name: "nested",
			src: vdom.Element("ul", []string{"id", "list"},
				vdom.Element("li", nil, vdom.Text("a")),
				vdom.Element("li", nil, vdom.Text("b")),
			),
			want: `<ul id="list"><li>a</li><li>b</li></ul>`,
		},
	}

	r := NewRenderer(RendererConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RenderToString(vdom.MustBuild(tt.src))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestRenderPretty(t *testing.T) {
	tree := vdom.MustBuild(vdom.Element("div", nil,
		vdom.Element("h1", nil, vdom.Text("Title")),
		vdom.Element("p", nil, vdom.Text("Some "), vdom.Element("em", nil, vdom.Text("text"))),
		vdom.Element("hr", nil),
	))

	got, err := NewRenderer(RendererConfig{Pretty: true}).RenderToString(tree)
	if err != nil {
		t.Fatal(err)
	}
	want := "<div>\n" +
		"  <h1>Title</h1>\n" +
		"  <p>Some<em>text</em></p>\n" +
		"  <hr>\n" +
		"</div>\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderMinify(t *testing.T) {
	tree := vdom.MustBuild(vdom.Element("div", []string{"class", "a"},
		vdom.Element("p", nil, vdom.Text("hello")),
	))

	got, err := NewRenderer(RendererConfig{Minify: true, Pretty: true}).RenderToString(tree)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("minified output has newlines: %q", got)
	}
	if !strings.Contains(got, "hello") || !strings.Contains(got, "<p>") {
		t.Errorf("minified output lost content: %q", got)
	}
}

func TestRenderNode(t *testing.T) {
	tree := vdom.MustBuild(vdom.Element("div", nil, vdom.Element("span", nil, vdom.Text("x"))))
	var buf bytes.Buffer
	r := NewRenderer(RendererConfig{})

	if err := r.RenderNode(&buf, tree, tree.Children(tree.Root())[0]); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "<span>x</span>" {
		t.Errorf("RenderNode = %q", buf.String())
	}
	if err := r.RenderNode(&buf, tree, vdom.None); err == nil {
		t.Error("RenderNode accepted a foreign ID")
	}
}

func TestRenderEmptyTree(t *testing.T) {
	got, err := NewRenderer(RendererConfig{}).RenderToString(nil)
	if err != nil || got != "" {
		t.Errorf("RenderToString(nil) = %q, %v", got, err)
	}
}

func TestRenderPage(t *testing.T) {
	tree := vdom.MustBuild(vdom.Element("p", nil, vdom.Text("body")))
	var buf bytes.Buffer
	err := NewRenderer(RendererConfig{}).RenderPage(&buf, PageData{
		Title:    "A <b> page",
		Document: tree,
		Script:   "console.log(1)",
	})
	if err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	for _, want := range []string{
		"<!DOCTYPE html>",
		`<html lang="en">`,
		"<title>A &lt;b&gt; page</title>",
		`<div id="prowser-root"><p>body</p></div>`,
		"<script>console.log(1)</script>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q:\n%s", want, html)
		}
	}
}

func TestMinify(t *testing.T) {
	out, err := Minify([]byte("<div>\n   <p>  hi  </p>\n</div>"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(out, []byte("\n")) {
		t.Errorf("Minify = %q", out)
	}
}
