package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestNormalize(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<p>x</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in     string
		scheme string
		host   string
	}{
		{"https://example.com/a", "https", "example.com"},
		{"example.com", "http", "example.com"},
		{"localhost:8080/x", "http", "localhost:8080"},
		{page, "file", ""},
		{filepath.Join(dir, "missing.html"), "file", ""},
		{"./missing.html", "file", ""},
		{"s3://bucket/key.html", "s3", "bucket"},
	}
	for _, tt := range tests {
		u, err := Normalize(tt.in)
		if err != nil {
			t.Errorf("Normalize(%q): %v", tt.in, err)
			continue
		}
		if u.Scheme != tt.scheme || u.Host != tt.host {
			t.Errorf("Normalize(%q) = %s", tt.in, u)
		}
	}
	if _, err := Normalize("   "); err == nil {
		t.Error("empty location accepted")
	}
}

func TestResolve(t *testing.T) {
	base := mustURL(t, "http://example.com/docs/index.html")
	tests := []struct {
		href string
		want string
		err  error
	}{
		{"page2.html", "http://example.com/docs/page2.html", nil},
		{"/root", "http://example.com/root", nil},
		{"../up", "http://example.com/up", nil},
		{"https://other.org/", "https://other.org/", nil},
		{"?q=1", "http://example.com/docs/index.html?q=1", nil},
		{"#section", "", ErrFragmentLink},
		{"", "", ErrFragmentLink},
	}
	for _, tt := range tests {
		got, err := Resolve(base, tt.href)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("Resolve(%q) err = %v, want %v", tt.href, err, tt.err)
			}
			continue
		}
		if err != nil || got.String() != tt.want {
			t.Errorf("Resolve(%q) = %v, %v; want %s", tt.href, got, err, tt.want)
		}
	}
	if _, err := Resolve(nil, "relative"); err == nil {
		t.Error("relative link without base accepted")
	}
}

func TestHTTPLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			if r.UserAgent() != "test-agent" {
				t.Errorf("User-Agent = %q", r.UserAgent())
			}
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, "<p>hello</p>")
		case "/moved":
			http.Redirect(w, r, "/page", http.StatusFound)
		case "/search":
			io.WriteString(w, "q="+r.URL.Query().Get("q"))
		case "/post":
			r.ParseForm()
			io.WriteString(w, r.Method+" name="+r.PostForm.Get("name"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewHTTPLoader(WithUserAgent("test-agent"))
	ctx := context.Background()

	doc, err := l.Load(ctx, mustURL(t, srv.URL+"/moved"))
	if err != nil {
		t.Fatal(err)
	}
	if string(doc.Body) != "<p>hello</p>" || doc.URL.Path != "/page" || doc.ContentType != "text/html" {
		t.Errorf("doc = %s %q %q", doc.URL, doc.Body, doc.ContentType)
	}

	_, err = l.Load(ctx, mustURL(t, srv.URL+"/missing"))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("missing page err = %v", err)
	}

	doc, err = l.Submit(ctx, mustURL(t, srv.URL+"/search?old=1"), "get", url.Values{"q": {"go lang"}})
	if err != nil || string(doc.Body) != "q=go lang" {
		t.Errorf("GET submit = %v, %v", doc, err)
	}
	doc, err = l.Submit(ctx, mustURL(t, srv.URL+"/post"), "POST", url.Values{"name": {"ada"}})
	if err != nil || string(doc.Body) != "POST name=ada" {
		t.Errorf("POST submit = %v, %v", doc, err)
	}

	fast := NewHTTPLoader(WithTimeout(50 * time.Millisecond))
	if _, err := fast.Load(ctx, mustURL(t, srv.URL+"/slow")); err == nil {
		t.Error("slow response did not time out")
	}
}

func TestHTTPLoaderMaxSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	if _, err := NewHTTPLoader(WithMaxSize(10)).Load(context.Background(), mustURL(t, srv.URL)); err == nil {
		t.Error("oversized body accepted")
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	u, err := Normalize(dir)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := FileLoader{}.Load(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if string(doc.Body) != "<h1>home</h1>" || !strings.HasSuffix(doc.URL.Path, "/index.html") {
		t.Errorf("doc = %s %q", doc.URL, doc.Body)
	}
	if !strings.HasPrefix(doc.ContentType, "text/html") {
		t.Errorf("ContentType = %q", doc.ContentType)
	}

	if _, err := (FileLoader{MaxSize: 4}).Load(context.Background(), u); err == nil {
		t.Error("oversized file accepted")
	}
	if _, err := (FileLoader{}).Load(context.Background(), mustURL(t, "file:///does/not/exist")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}

type fakeS3 struct {
	objects map[string]string
	calls   []string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.calls = append(f.calls, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentType:   aws.String("text/html"),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestS3Loader(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"site/docs/a.html": "<p>a</p>"}}
	l := NewS3Loader(fake)

	doc, err := l.Load(context.Background(), mustURL(t, "s3://site/docs/a.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(doc.Body) != "<p>a</p>" || doc.ContentType != "text/html" {
		t.Errorf("doc = %q %q", doc.Body, doc.ContentType)
	}
	if _, err := l.Load(context.Background(), mustURL(t, "s3://site/missing")); err == nil {
		t.Error("missing object loaded")
	}
	if _, err := l.Load(context.Background(), mustURL(t, "s3://site")); err == nil {
		t.Error("location without key accepted")
	}
	if len(fake.calls) != 2 {
		t.Errorf("GetObject calls = %v", fake.calls)
	}
}

func TestMux(t *testing.T) {
	m := NewMux()
	m.Handle(LoaderFunc(func(ctx context.Context, u *url.URL) (*Document, error) {
		return &Document{URL: u, Body: []byte("mem:" + u.Opaque)}, nil
	}), "MEM")
	m.Handle(FileLoader{}, "file")

	doc, err := m.Load(context.Background(), mustURL(t, "mem:thing"))
	if err != nil || string(doc.Body) != "mem:thing" {
		t.Errorf("Load = %v, %v", doc, err)
	}
	if _, err := m.Load(context.Background(), mustURL(t, "gopher://x")); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("unknown scheme err = %v", err)
	}
	if _, err := m.Submit(context.Background(), mustURL(t, "file:///x"), "GET", nil); !errors.Is(err, ErrNotSubmittable) {
		t.Errorf("file submit err = %v", err)
	}
}

func TestNewDefaultMux(t *testing.T) {
	m := NewDefaultMux(Options{Timeout: time.Second, S3: &S3Config{Region: "us-east-1"}})
	for _, scheme := range []string{"http", "https", "file", "s3"} {
		if _, ok := m.loaders[scheme]; !ok {
			t.Errorf("no loader for %s", scheme)
		}
	}
	if _, ok := m.submitters["http"]; !ok {
		t.Error("http loader is not registered as a submitter")
	}
}
