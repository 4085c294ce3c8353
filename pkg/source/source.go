// Package source fetches documents for the browser: over HTTP, from the
// local filesystem and from S3 buckets.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedScheme is returned for locations no loader handles.
	ErrUnsupportedScheme = errors.New("source: unsupported scheme")

	// ErrFragmentLink is returned by Resolve for same-document links,
	// which navigate nowhere.
	ErrFragmentLink = errors.New("source: fragment-only link")

	// ErrNotSubmittable is returned when a form targets a location that
	// cannot accept submissions.
	ErrNotSubmittable = errors.New("source: location does not accept form submissions")
)

// Document is a fetched resource.
type Document struct {
	// URL is the final location after redirects.
	URL *url.URL

	Body        []byte
	ContentType string
}

// Loader fetches documents for the schemes it handles.
type Loader interface {
	Load(ctx context.Context, u *url.URL) (*Document, error)
}

// Submitter sends form submissions.
type Submitter interface {
	Submit(ctx context.Context, action *url.URL, method string, values url.Values) (*Document, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, u *url.URL) (*Document, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, u *url.URL) (*Document, error) {
	return f(ctx, u)
}

// Normalize turns user input into an absolute URL. A location without a
// scheme that looks like a path names a local file; anything else is
// treated as a host and fetched over http.
func Normalize(location string) (*url.URL, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("source: empty location")
	}
	if strings.Contains(location, "://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("source: invalid location %q: %w", location, err)
		}
		return u, nil
	}
	if looksLikePath(location) {
		abs, err := filepath.Abs(location)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
	}
	u, err := url.Parse("http://" + location)
	if err != nil {
		return nil, fmt.Errorf("source: invalid location %q: %w", location, err)
	}
	return u, nil
}

func looksLikePath(location string) bool {
	if filepath.IsAbs(location) || strings.HasPrefix(location, ".") {
		return true
	}
	_, err := os.Stat(location)
	return err == nil
}

// Resolve resolves href against base the way a browser resolves a link.
// Fragment-only links return ErrFragmentLink.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, ErrFragmentLink
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("source: invalid link %q: %w", href, err)
	}
	if base == nil {
		if !ref.IsAbs() {
			return nil, fmt.Errorf("source: relative link %q without a base", href)
		}
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// Mux dispatches to a loader by URL scheme.
type Mux struct {
	loaders    map[string]Loader
	submitters map[string]Submitter
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{
		loaders:    make(map[string]Loader),
		submitters: make(map[string]Submitter),
	}
}

// Handle registers l for each scheme. If l also implements Submitter it
// receives form submissions for those schemes.
func (m *Mux) Handle(l Loader, schemes ...string) {
	for _, s := range schemes {
		s = strings.ToLower(s)
		m.loaders[s] = l
		if sub, ok := l.(Submitter); ok {
			m.submitters[s] = sub
		}
	}
}

// Load implements Loader.
func (m *Mux) Load(ctx context.Context, u *url.URL) (*Document, error) {
	l, ok := m.loaders[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	return l.Load(ctx, u)
}

// Open normalizes location and loads it.
func (m *Mux) Open(ctx context.Context, location string) (*Document, error) {
	u, err := Normalize(location)
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, u)
}

// Submit implements Submitter.
func (m *Mux) Submit(ctx context.Context, action *url.URL, method string, values url.Values) (*Document, error) {
	sub, ok := m.submitters[strings.ToLower(action.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotSubmittable, action.Redacted())
	}
	return sub.Submit(ctx, action, method, values)
}
