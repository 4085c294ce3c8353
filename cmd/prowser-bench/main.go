// Command prowser-bench load-tests the preview server. Every client opens a
// session on an in-process origin, then repeatedly submits a form whose
// result differs from the current document by a few text nodes, and times
// the round trip until the matching update arrives.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"hash/fnv"
	"html"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prowser-dev/prowser/pkg/metrics"
	"github.com/prowser-dev/prowser/pkg/protocol"
	"github.com/prowser-dev/prowser/pkg/server"
	"github.com/prowser-dev/prowser/pkg/source"
)

type benchConfig struct {
	Clients  int
	Duration time.Duration
	RPS      float64
	ListSize int
	JSON     string
}

type counters struct {
	submits      atomic.Uint64
	completed    atomic.Uint64
	commands     atomic.Uint64
	commandBytes atomic.Uint64
	failures     atomic.Uint64
}

func main() {
	log.SetFlags(0)

	var cfg benchConfig
	flag.IntVar(&cfg.Clients, "clients", 50, "number of concurrent sessions")
	flag.DurationVar(&cfg.Duration, "duration", 15*time.Second, "benchmark duration")
	flag.Float64Var(&cfg.RPS, "rps", 5, "target submissions/sec per client")
	flag.IntVar(&cfg.ListSize, "list", 50, "list size of the benchmark document")
	flag.StringVar(&cfg.JSON, "json", "", "write the JSON report to this path ('-' for stdout)")
	flag.Parse()
	if cfg.Clients <= 0 || cfg.Duration <= 0 || cfg.RPS <= 0 || cfg.ListSize < 0 {
		log.Fatal("-clients, -duration and -rps must be positive and -list must not be negative")
	}

	originLn, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	origin := &http.Server{Handler: newOrigin(cfg.ListSize)}
	go origin.Serve(originLn)
	defer origin.Shutdown(context.Background())

	reg := prometheus.NewRegistry()
	sc := server.DefaultConfig()
	sc.Document = "http://" + originLn.Addr().String() + "/"
	sc.WatchInterval = 0
	sc.Loader = source.NewHTTPLoader()
	sc.Metrics = metrics.New(metrics.WithRegistry(reg))
	sc.CheckOrigin = func(*http.Request) bool { return true }
	srv := server.New(sc)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	httpServer := &http.Server{Handler: srv.Handler()}
	go httpServer.Serve(ln)
	defer func() {
		srv.Shutdown(context.Background())
		httpServer.Shutdown(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var (
		c       counters
		mu      sync.Mutex
		samples []time.Duration
		wg      sync.WaitGroup
	)
	wsURL := "ws://" + ln.Addr().String() + "/ws"
	start := time.Now()
	for i := range cfg.Clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rtts, err := runClient(ctx, wsURL, i, cfg.RPS, &c)
			if err != nil {
				c.failures.Add(1)
				log.Printf("client %d: %v", i, err)
			}
			mu.Lock()
			samples = append(samples, rtts...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.Sort(samples)
	r := buildReport(cfg, time.Since(start), samples, &c, reg)
	writeSummary(os.Stderr, r)
	if cfg.JSON != "" {
		if err := writeJSON(cfg.JSON, r); err != nil {
			log.Fatalf("write json: %v", err)
		}
	}
}

// newOrigin serves the benchmark document. GET /echo?q=token renders the
// same page with token in the echo line and in one list item, so each
// submission diffs to a couple of text updates.
func newOrigin(listSize int) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, listSize, "")
	})
	r.Get("/echo", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, listSize, r.URL.Query().Get("q"))
	})
	return r
}

func writePage(w http.ResponseWriter, listSize int, token string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	echo, idx := "-", -1
	if token != "" {
		echo = token
		if listSize > 0 {
			h := fnv.New32a()
			io.WriteString(h, token)
			idx = int(h.Sum32() % uint32(listSize))
		}
	}

	var b strings.Builder
	b.WriteString(`<form action="/echo"><input name="q"></form>`)
	fmt.Fprintf(&b, `<div id="echo">%s</div><ul>`, html.EscapeString(echo))
	for i := range listSize {
		item := "Item " + strconv.Itoa(i)
		if i == idx {
			item = token
		}
		fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(item))
	}
	b.WriteString("</ul>")
	io.WriteString(w, b.String())
}

// runClient submits tokens at rps until ctx ends and returns the round trip
// of every submission whose token came back.
func runClient(ctx context.Context, wsURL string, id int, rps float64, c *counters) ([]time.Duration, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	form, err := handshake(conn, c)
	if err != nil {
		return nil, err
	}

	period := time.Duration(float64(time.Second) / rps)
	timeout := max(10*period, 2*time.Second)
	var rtts []time.Duration
	for seq := 1; ctx.Err() == nil; seq++ {
		token := fmt.Sprintf("c%d-s%d", id, seq)
		ev := &protocol.Event{
			Kind:   protocol.EventSubmit,
			Handle: form,
			Values: []protocol.Attr{{Name: "q", Value: token}},
		}
		sent := time.Now()
		if err := conn.WriteMessage(websocket.BinaryMessage, ev.Frame().Encode()); err != nil {
			return rtts, fmt.Errorf("submit: %w", err)
		}
		c.submits.Add(1)

		conn.SetReadDeadline(time.Now().Add(timeout))
		if err := waitForToken(conn, token, c); err != nil {
			if ctx.Err() != nil {
				return rtts, nil
			}
			return rtts, fmt.Errorf("submit %q: %w", token, err)
		}
		rtts = append(rtts, time.Since(sent))
		c.completed.Add(1)

		select {
		case <-ctx.Done():
		case <-time.After(period - time.Since(sent)):
		}
	}
	return rtts, nil
}

// handshake greets the server and reads the initial batch, returning the
// handle of the mounted form.
func handshake(conn *websocket.Conn, c *counters) (uint32, error) {
	if err := conn.WriteMessage(websocket.BinaryMessage, (&protocol.Hello{}).Frame().Encode()); err != nil {
		return 0, fmt.Errorf("hello: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if frame, err := readFrame(conn, c); err != nil {
		return 0, fmt.Errorf("hello: %w", err)
	} else if frame.Type != protocol.FrameHello {
		return 0, fmt.Errorf("hello: got %v frame", frame.Type)
	}

	var form uint32
	for {
		frame, err := readFrame(conn, c)
		if err != nil {
			return 0, fmt.Errorf("initial batch: %w", err)
		}
		if frame.Type != protocol.FrameCommands {
			return 0, fmt.Errorf("initial batch: got %v frame", frame.Type)
		}
		batch, err := protocol.DecodeBatch(frame.Payload)
		if err != nil {
			return 0, fmt.Errorf("initial batch: %w", err)
		}
		for _, cmd := range batch.Commands {
			if cmd.Op == protocol.CmdMount && cmd.Tag == "form" {
				form = cmd.ID
			}
		}
		c.commands.Add(uint64(len(batch.Commands)))
		if frame.Flags.Has(protocol.FlagFinal) {
			break
		}
	}
	if form == 0 {
		return 0, errors.New("initial batch mounted no form")
	}
	return form, nil
}

func waitForToken(conn *websocket.Conn, token string, c *counters) error {
	for {
		frame, err := readFrame(conn, c)
		if err != nil {
			return err
		}
		switch frame.Type {
		case protocol.FrameCommands:
			batch, err := protocol.DecodeBatch(frame.Payload)
			if err != nil {
				return err
			}
			c.commands.Add(uint64(len(batch.Commands)))
			for _, cmd := range batch.Commands {
				for _, a := range cmd.Set {
					if a.Value == token {
						return nil
					}
				}
			}
		case protocol.FrameError:
			em, _ := protocol.DecodeErrorMessage(frame.Payload)
			return fmt.Errorf("server error: %v", em)
		}
	}
}

func readFrame(conn *websocket.Conn, c *counters) (*protocol.Frame, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.commandBytes.Add(uint64(len(msg)))
	return protocol.DecodeFrame(msg)
}

type report struct {
	Clients      int                `json:"clients"`
	DurationMS   int64              `json:"duration_ms"`
	RPSPerClient float64            `json:"rps_per_client"`
	ListSize     int                `json:"list_size"`
	Submits      uint64             `json:"submits"`
	Completed    uint64             `json:"completed"`
	PerSec       float64            `json:"completed_per_sec"`
	FailedClient uint64             `json:"failed_clients"`
	LatencyMS    map[string]float64 `json:"latency_ms"`
	CmdsPerEvent float64            `json:"commands_per_submit"`
	BytesPerEvt  float64            `json:"bytes_per_submit"`
	Patches      map[string]float64 `json:"patches"`
	Errors       map[string]float64 `json:"reconcile_errors"`
}

func buildReport(cfg benchConfig, elapsed time.Duration, rtts []time.Duration, c *counters, reg *prometheus.Registry) report {
	completed := c.completed.Load()
	r := report{
		Clients:      cfg.Clients,
		DurationMS:   elapsed.Milliseconds(),
		RPSPerClient: cfg.RPS,
		ListSize:     cfg.ListSize,
		Submits:      c.submits.Load(),
		Completed:    completed,
		PerSec:       float64(completed) / math.Max(elapsed.Seconds(), 0.001),
		FailedClient: c.failures.Load(),
		LatencyMS:    map[string]float64{},
		Patches:      gatherByLabel(reg, "prowser_patches_total", "op"),
		Errors:       gatherByLabel(reg, "prowser_reconcile_errors_total", "error_type"),
	}
	if completed > 0 {
		r.CmdsPerEvent = float64(c.commands.Load()) / float64(completed)
		r.BytesPerEvt = float64(c.commandBytes.Load()) / float64(completed)
	}
	if len(rtts) > 0 {
		for _, p := range []struct {
			name string
			q    float64
		}{{"p50", 0.50}, {"p95", 0.95}, {"p99", 0.99}, {"max", 1}} {
			idx := int(math.Ceil(float64(len(rtts))*p.q)) - 1
			r.LatencyMS[p.name] = float64(rtts[max(idx, 0)]) / float64(time.Millisecond)
		}
	}
	return r
}

// gatherByLabel sums the counters of one family keyed by a label value.
func gatherByLabel(reg *prometheus.Registry, name, label string) map[string]float64 {
	out := map[string]float64{}
	families, err := reg.Gather()
	if err != nil {
		return out
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label {
					out[lp.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

func writeSummary(w io.Writer, r report) {
	fmt.Fprintln(w, "=== prowser session benchmark ===")
	fmt.Fprintf(w, "Clients: %d at %.2f submits/s, list of %d, %s\n",
		r.Clients, r.RPSPerClient, r.ListSize, time.Duration(r.DurationMS)*time.Millisecond)
	fmt.Fprintf(w, "Submits: %d sent, %d completed (%.1f/s), %d clients failed\n",
		r.Submits, r.Completed, r.PerSec, r.FailedClient)
	if len(r.LatencyMS) == 0 {
		fmt.Fprintln(w, "No latency samples recorded.")
	} else {
		fmt.Fprintf(w, "RTT (submit -> fetch -> diff -> commands): p50 %.2f ms, p95 %.2f ms, p99 %.2f ms, max %.2f ms\n",
			r.LatencyMS["p50"], r.LatencyMS["p95"], r.LatencyMS["p99"], r.LatencyMS["max"])
	}
	fmt.Fprintf(w, "Per submit: %.2f commands, %.0f bytes received\n", r.CmdsPerEvent, r.BytesPerEvt)
	fmt.Fprintf(w, "Patches applied: %v\n", r.Patches)
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "Reconcile errors: %v\n", r.Errors)
	}
}

func writeJSON(path string, r report) error {
	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
