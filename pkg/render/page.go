package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

// ShellID is the id of the element a remote client mounts documents into.
const ShellID = "prowser-root"

// PageData describes the HTML shell the preview server sends before a
// live session starts.
type PageData struct {
	// Title is the page title.
	Title string

	// Document is rendered into the shell so the page is readable before
	// the client connects. May be nil.
	Document *vdom.Tree

	// Script is the client source, inlined at the end of the body.
	Script string

	// Styles is inline CSS for the shell.
	Styles string

	// Lang is the language attribute for the html element. Defaults to
	// "en".
	Lang string
}

// RenderPage writes a complete HTML document for page.
func (r *Renderer) RenderPage(w io.Writer, page PageData) error {
	lang := page.Lang
	if lang == "" {
		lang = "en"
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(bw, "<html lang=\"%s\">\n<head>\n", escapeAttr(lang))
	bw.WriteString("  <meta charset=\"utf-8\">\n")
	bw.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	if page.Title != "" {
		fmt.Fprintf(bw, "  <title>%s</title>\n", escapeText(page.Title))
	}
	if page.Styles != "" {
		fmt.Fprintf(bw, "  <style>%s</style>\n", page.Styles)
	}
	bw.WriteString("</head>\n<body>\n")
	fmt.Fprintf(bw, "<div id=\"%s\">", ShellID)
	if err := bw.Flush(); err != nil {
		return err
	}

	if page.Document.Len() > 0 {
		if err := r.RenderToWriter(w, page.Document); err != nil {
			return err
		}
	}

	bw.WriteString("</div>\n")
	if page.Script != "" {
		fmt.Fprintf(bw, "<script>%s</script>\n", page.Script)
	}
	bw.WriteString("</body>\n</html>\n")
	return bw.Flush()
}
