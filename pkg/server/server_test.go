package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prowser-dev/prowser/pkg/markup"
	"github.com/prowser-dev/prowser/pkg/metrics"
	"github.com/prowser-dev/prowser/pkg/protocol"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

const homePage = `<h1>Home v%d</h1><p><a href="/about">About</a></p><form action="/search"><input name="q"><button>Go</button></form>`

// site is the origin the previewed document comes from.
type site struct {
	mu      sync.Mutex
	version int
}

func (s *site) bump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
}

func (s *site) home() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf(homePage, s.version)
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	switch r.URL.Path {
	case "/":
		io.WriteString(w, s.home())
	case "/about":
		io.WriteString(w, `<h1>About</h1>`)
	case "/search":
		fmt.Fprintf(w, `<p>results for %s</p>`, r.URL.Query().Get("q"))
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	site    *site
	origin  *httptest.Server
	server  *Server
	http    *httptest.Server
	gather  *prometheus.Registry
	builder *vdom.Builder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{site: &site{version: 1}, gather: prometheus.NewRegistry(), builder: vdom.NewBuilder()}
	f.origin = httptest.NewServer(f.site)
	t.Cleanup(f.origin.Close)

	config := DefaultConfig()
	config.Document = f.origin.URL + "/"
	config.Loader = source.NewHTTPLoader()
	config.Builder = f.builder
	config.Metrics = metrics.New(metrics.WithRegistry(f.gather))
	config.Gatherer = f.gather
	config.WatchInterval = 0
	f.server = New(config)

	f.http = httptest.NewServer(f.server)
	t.Cleanup(func() {
		f.server.Sessions().Shutdown()
		f.http.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame *protocol.Frame) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return frame
}

func readBatch(t *testing.T, conn *websocket.Conn) (*protocol.Batch, protocol.FrameFlags) {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Type == protocol.FrameError {
		em, _ := protocol.DecodeErrorMessage(frame.Payload)
		t.Fatalf("got error frame: %v", em)
	}
	if frame.Type != protocol.FrameCommands {
		t.Fatalf("frame type = %v, want Commands", frame.Type)
	}
	batch, err := protocol.DecodeBatch(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	return batch, frame.Flags
}

// handshake greets the server and returns the session ID and the initial
// batch.
func handshake(t *testing.T, conn *websocket.Conn) (string, *protocol.Batch) {
	t.Helper()
	send(t, conn, (&protocol.Hello{URL: "http://preview.test/"}).Frame())

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHello {
		t.Fatalf("first frame = %v, want Hello", frame.Type)
	}
	hello, err := protocol.DecodeHello(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}

	batch, flags := readBatch(t, conn)
	if !flags.Has(protocol.FlagReset) || !flags.Has(protocol.FlagFinal) {
		t.Errorf("initial batch flags = %v, want Reset|Final", flags)
	}
	return hello.Session, batch
}

func mountedTag(batch *protocol.Batch, tag string) (uint32, bool) {
	for _, c := range batch.Commands {
		if c.Op == protocol.CmdMount && c.Tag == tag {
			return c.ID, true
		}
	}
	return 0, false
}

func setsValue(batch *protocol.Batch, value string) bool {
	for _, c := range batch.Commands {
		for _, a := range c.Set {
			if a.Value == value {
				return true
			}
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionMountsDocument(t *testing.T) {
	f := newFixture(t)
	if _, err := f.server.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn := f.dial(t)

	id, batch := handshake(t, conn)
	if len(id) != 26 {
		t.Errorf("session ID = %q, want a ULID", id)
	}

	want, err := markup.Build(f.builder, []byte(f.site.home()))
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Commands) != want.Len() {
		t.Errorf("initial batch has %d commands, want %d mounts", len(batch.Commands), want.Len())
	}
	for _, c := range batch.Commands {
		if c.Op != protocol.CmdMount {
			t.Errorf("initial batch contains %v", c)
		}
	}
	if batch.Commands[0].Parent != 0 || batch.Commands[0].Tag != "body" {
		t.Errorf("first command = %v, want the fragment root under the container", batch.Commands[0])
	}
	if !setsValue(batch, "Home v1") {
		t.Error("initial batch does not carry the heading text")
	}

	waitFor(t, "session registration", func() bool { return f.server.Sessions().Count() == 1 })
	if f.server.Sessions().Get(id) == nil {
		t.Errorf("Get(%q) = nil", id)
	}
}

func TestSessionLoadsWithoutServerDocument(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	_, batch := handshake(t, conn)
	if !setsValue(batch, "Home v1") {
		t.Errorf("batch = %v, want the document mounted", batch.Commands)
	}
}

func TestReloadPushesDiff(t *testing.T) {
	f := newFixture(t)
	if _, err := f.server.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn := f.dial(t)
	handshake(t, conn)

	f.site.bump()
	resp, err := http.Post(f.http.URL+"/reload", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Changed  bool `json:"changed"`
		Sessions int  `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if !body.Changed || body.Sessions != 1 {
		t.Errorf("reload response = %+v", body)
	}

	batch, flags := readBatch(t, conn)
	if flags.Has(protocol.FlagReset) {
		t.Error("update batch should not reset the client")
	}
	if len(batch.Commands) != 1 {
		t.Fatalf("update batch = %v, want one command", batch.Commands)
	}
	c := batch.Commands[0]
	if c.Op != protocol.CmdUpdate || len(c.Set) != 1 || c.Set[0].Value != "Home v2" {
		t.Errorf("command = %v, want the heading text updated", c)
	}

	changed, err := f.server.Reload(context.Background())
	if err != nil || changed {
		t.Errorf("Reload of unchanged document = %v, %v", changed, err)
	}
}

func TestFollowLink(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	_, batch := handshake(t, conn)

	link, ok := mountedTag(batch, "a")
	if !ok {
		t.Fatal("no link mounted")
	}
	send(t, conn, (&protocol.Event{Kind: protocol.EventFollow, Handle: link, Href: "/about"}).Frame())

	next, _ := readBatch(t, conn)
	if !setsValue(next, "About") {
		t.Errorf("batch = %v, want the about page", next.Commands)
	}
	var destroys int
	for _, c := range next.Commands {
		if c.Op == protocol.CmdDestroy {
			destroys++
		}
	}
	if destroys == 0 {
		t.Error("navigation should tear down the old page")
	}

	// A fragment link sends nothing, so the next batch is the way back.
	send(t, conn, (&protocol.Event{Kind: protocol.EventFollow, Href: "#top"}).Frame())
	send(t, conn, (&protocol.Event{Kind: protocol.EventFollow, Href: "/"}).Frame())
	back, _ := readBatch(t, conn)
	if !setsValue(back, "Home v1") {
		t.Errorf("batch = %v, want the home page", back.Commands)
	}
}

func TestSubmitForm(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	_, batch := handshake(t, conn)

	form, ok := mountedTag(batch, "form")
	if !ok {
		t.Fatal("no form mounted")
	}
	send(t, conn, (&protocol.Event{
		Kind:   protocol.EventSubmit,
		Handle: form,
		Values: []protocol.Attr{{Name: "q", Value: "go"}},
	}).Frame())

	next, _ := readBatch(t, conn)
	if !setsValue(next, "results for go") {
		t.Errorf("batch = %v, want the search results", next.Commands)
	}
}

func TestSubmitUnknownHandle(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	handshake(t, conn)

	send(t, conn, (&protocol.Event{Kind: protocol.EventSubmit, Handle: 9999}).Frame())

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want Error", frame.Type)
	}
	em, err := protocol.DecodeErrorMessage(frame.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if em.Code != protocol.ErrInvalidEvent || em.Fatal {
		t.Errorf("error = %v, want non-fatal InvalidEvent", em)
	}
}

func TestLoadFailureReportsError(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	_, batch := handshake(t, conn)

	link, _ := mountedTag(batch, "a")
	send(t, conn, (&protocol.Event{Kind: protocol.EventFollow, Handle: link, Href: "/missing"}).Frame())

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want Error", frame.Type)
	}
	em, _ := protocol.DecodeErrorMessage(frame.Payload)
	if em.Code != protocol.ErrLoadFailed {
		t.Errorf("code = %v, want LoadFailed", em.Code)
	}
}

func TestHandshakeRequiresHello(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	send(t, conn, (&protocol.Event{Kind: protocol.EventReload}).Frame())

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want Error", frame.Type)
	}
	em, _ := protocol.DecodeErrorMessage(frame.Payload)
	if !em.Fatal || em.Code != protocol.ErrInvalidFrame {
		t.Errorf("error = %v, want fatal InvalidFrame", em)
	}
	if f.server.Sessions().Count() != 0 {
		t.Error("rejected handshake registered a session")
	}
}

func TestMaxSessions(t *testing.T) {
	f := newFixture(t)
	f.server.sessions.maxSessions = 1

	handshake(t, f.dial(t))

	second := f.dial(t)
	send(t, second, (&protocol.Hello{}).Frame())
	frame := readFrame(t, second)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want Error", frame.Type)
	}
}

func TestSessionClosesWithConnection(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	handshake(t, conn)
	waitFor(t, "session registration", func() bool { return f.server.Sessions().Count() == 1 })

	conn.Close()

	waitFor(t, "session removal", func() bool { return f.server.Sessions().Count() == 0 })
	stats := f.server.Sessions().Stats()
	if stats.TotalCreated != 1 || stats.TotalClosed != 1 || stats.Peak != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCleanDisconnectRecordsNoReconcileError(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	handshake(t, conn)
	waitFor(t, "session registration", func() bool { return f.server.Sessions().Count() == 1 })
	if got := gathered(t, f.gather, "prowser_mounted_handles"); got == 0 {
		t.Fatal("no handles mounted before disconnect")
	}

	conn.Close()
	waitFor(t, "session removal", func() bool { return f.server.Sessions().Count() == 0 })

	if got := gathered(t, f.gather, "prowser_reconcile_errors_total"); got != 0 {
		t.Errorf("reconcile errors after clean disconnect = %v", got)
	}
	if got := gathered(t, f.gather, "prowser_mounted_handles"); got != 0 {
		t.Errorf("mounted handles after disconnect = %v", got)
	}
}

// gathered sums a counter or gauge family across its label values.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}

func TestWatchDetectsChanges(t *testing.T) {
	f := newFixture(t)
	f.server.config.WatchInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.server.Watch(ctx)

	waitFor(t, "initial load", func() bool { return f.server.Document() != nil })
	f.site.bump()
	waitFor(t, "changed document", func() bool {
		return strings.Contains(string(f.server.Document().Body), "Home v2")
	})
}

func TestShellPrerendersDocument(t *testing.T) {
	f := newFixture(t)
	if _, err := f.server.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(f.http.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	html := string(body)

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	for _, want := range []string{`<div id="prowser-root">`, "Home v1", "<script>", "/ws"} {
		if !strings.Contains(html, want) {
			t.Errorf("shell missing %q", want)
		}
	}
}

func TestClientScriptETag(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.http.URL + "/client.js")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	if resp.StatusCode != http.StatusOK || etag == "" {
		t.Fatalf("status = %d, ETag = %q", resp.StatusCode, etag)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	req, _ := http.NewRequest(http.MethodGet, f.http.URL+"/client.js", nil)
	req.Header.Set("If-None-Match", `W/`+etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", resp.StatusCode)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	handshake(t, conn)
	waitFor(t, "session registration", func() bool { return f.server.Sessions().Count() == 1 })

	resp, err := http.Get(f.http.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health struct {
		Status   string `json:"status"`
		Sessions Stats  `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if health.Status != "no document" || health.Sessions.Active != 1 {
		t.Errorf("healthz = %+v", health)
	}

	resp, err = http.Get(f.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{"prowser_active_sessions 1", "prowser_documents_loaded_total", "prowser_mounted_handles"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "example.com", true},
		{"same host", "http://example.com", "example.com", true},
		{"same host with port", "https://example.com:8080", "example.com:8080", true},
		{"different host", "http://evil.com", "example.com", false},
		{"different port", "http://example.com:9090", "example.com:8080", false},
		{"malformed", "://bad", "example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := SameOriginCheck(r); got != tt.want {
				t.Errorf("SameOriginCheck() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	s := New(&Config{Document: "http://example.com/"})
	c := s.Config()

	if c.Address != "localhost:8080" || c.SessionConfig == nil || c.Loader == nil || c.Builder == nil {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.Title != "http://example.com/" {
		t.Errorf("Title = %q, want the document location", c.Title)
	}
	if c.CheckOrigin == nil {
		t.Error("CheckOrigin not defaulted")
	}
}
