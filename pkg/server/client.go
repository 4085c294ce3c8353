package server

import (
	"crypto/sha256"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed client.js
var clientSource string

// clientScript is the minified client, inlined into the shell and served
// on /client.js.
var clientScript = minifyClient(clientSource)

var clientETag = func() string {
	sum := sha256.Sum256([]byte(clientScript))
	return fmt.Sprintf("%q", fmt.Sprintf("%x", sum[:]))
}()

const shellStyles = `body{margin:0;font-family:system-ui,sans-serif}#prowser-root{padding:1rem}`

func minifyClient(src string) string {
	m := minify.New()
	m.AddFunc("application/javascript", js.Minify)
	out, err := m.String("application/javascript", src)
	if err != nil {
		return src
	}
	return out
}

func clientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", clientETag)
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=0, must-revalidate")

		if etagMatches(r.Header.Get("If-None-Match"), clientETag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(clientScript))
	}
}

func etagMatches(ifNoneMatchHeader, etag string) bool {
	if ifNoneMatchHeader == "" || etag == "" {
		return false
	}
	// Handle lists: If-None-Match: "abc", W/"def"
	for _, part := range strings.Split(ifNoneMatchHeader, ",") {
		candidate := strings.TrimSpace(part)
		if candidate == etag {
			return true
		}
		if strings.HasPrefix(candidate, "W/") && strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
