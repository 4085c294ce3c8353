package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent identifies the browser to servers.
const DefaultUserAgent = "prowser/1.0"

// HTTPLoader fetches http and https URLs.
type HTTPLoader struct {
	client    *http.Client
	userAgent string
	maxSize   int64
}

// HTTPOption configures an HTTPLoader.
type HTTPOption func(*HTTPLoader)

// WithClient sets the HTTP client. Its Timeout is left untouched.
func WithClient(c *http.Client) HTTPOption {
	return func(l *HTTPLoader) {
		l.client = c
	}
}

// WithTimeout sets the timeout of the loader's default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(l *HTTPLoader) {
		l.client = &http.Client{Timeout: d}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(l *HTTPLoader) {
		l.userAgent = ua
	}
}

// WithMaxSize bounds response bodies.
func WithMaxSize(n int64) HTTPOption {
	return func(l *HTTPLoader) {
		l.maxSize = n
	}
}

// NewHTTPLoader returns a loader with a 10 second timeout.
func NewHTTPLoader(opts ...HTTPOption) *HTTPLoader {
	l := &HTTPLoader{
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: DefaultUserAgent,
		maxSize:   DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, u *url.URL) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return l.do(req)
}

// Submit implements Submitter. GET submissions replace the action's query
// with the form values; anything else is sent as a urlencoded POST body.
func (l *HTTPLoader) Submit(ctx context.Context, action *url.URL, method string, values url.Values) (*Document, error) {
	var (
		req *http.Request
		err error
	)
	if strings.EqualFold(method, http.MethodGet) {
		target := *action
		target.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return l.do(req)
}

func (l *HTTPLoader) do(req *http.Request) (*Document, error) {
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: resp.Request.URL.String(), Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", req.URL.Redacted(), err)
	}
	if int64(len(body)) > l.maxSize {
		return nil, fmt.Errorf("source: %s exceeds %d bytes", req.URL.Redacted(), l.maxSize)
	}
	return &Document{
		URL:         resp.Request.URL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: %s returned %d %s", e.URL, e.Code, http.StatusText(e.Code))
}
