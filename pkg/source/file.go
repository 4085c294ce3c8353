package source

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// FileLoader reads file:// URLs.
type FileLoader struct {
	// MaxSize bounds the file size in bytes. Zero means DefaultMaxSize.
	MaxSize int64
}

// DefaultMaxSize bounds documents read by every loader (8MB).
const DefaultMaxSize = 8 << 20

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context, u *url.URL) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.FromSlash(u.Path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "index.html")
	}
	limit := l.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("source: %s is %d bytes, limit %d", path, info.Size(), limit)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(body)
	}
	final := *u
	final.Path = filepath.ToSlash(path)
	return &Document{URL: &final, Body: body, ContentType: ct}, nil
}
