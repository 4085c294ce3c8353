package render

import (
	"bytes"
	"io"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

const mediaHTML = "text/html"

var (
	minifier     *minify.M
	minifierOnce sync.Once
)

func getMinifier() *minify.M {
	minifierOnce.Do(func() {
		minifier = minify.New()
		minifier.Add(mediaHTML, &html.Minifier{
			KeepDocumentTags: true,
			KeepEndTags:      true,
			KeepQuotes:       true,
		})
	})
	return minifier
}

func minifyTo(w io.Writer, src []byte) error {
	return getMinifier().Minify(mediaHTML, w, bytes.NewReader(src))
}

// Minify minifies an HTML document or fragment.
func Minify(src []byte) ([]byte, error) {
	return getMinifier().Bytes(mediaHTML, src)
}
