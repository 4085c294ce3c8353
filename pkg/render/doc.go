// Package render turns vdom trees back into HTML.
//
// Output is deterministic: attributes are written in name order, text and
// attribute values are escaped, void elements get no closing tag and
// boolean attributes with an empty value are written bare.
//
// # Basic Usage
//
//	renderer := render.NewRenderer(render.RendererConfig{Pretty: true})
//	html, err := renderer.RenderToString(tree)
//
// With Minify set, output goes through github.com/tdewolff/minify. The
// preview server uses RenderPage to wrap a document in the HTML shell its
// remote client runs in.
package render
