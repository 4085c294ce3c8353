package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prowser-dev/prowser/pkg/markup"
	"github.com/prowser-dev/prowser/pkg/protocol"
	"github.com/prowser-dev/prowser/pkg/render"
	"github.com/prowser-dev/prowser/pkg/source"
)

// Server serves a live preview of one document.
type Server struct {
	config   *Config
	sessions *SessionManager
	upgrader websocket.Upgrader
	renderer *render.Renderer
	router   chi.Router
	logger   *slog.Logger

	mu   sync.RWMutex
	doc  *source.Document
	hash [sha256.Size]byte

	httpServer *http.Server
}

// New creates a Server. Unset config fields take their defaults.
func New(config *Config) *Server {
	config = config.withDefaults()

	s := &Server{
		config:   config,
		sessions: newSessionManager(config.MaxSessions, config.Metrics, config.Logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		renderer: render.NewRenderer(render.RendererConfig{}),
		logger:   config.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleShell)
	r.Get("/ws", s.HandleWebSocket)
	r.Method(http.MethodGet, "/client.js", clientHandler())
	r.Method(http.MethodHead, "/client.js", clientHandler())
	r.Post("/reload", s.handleReload)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Document returns the last successfully loaded version of the document,
// or nil.
func (s *Server) Document() *source.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Reload fetches the document. When its content changed it becomes the
// current version and every session showing it is updated. The result
// reports whether the content changed.
func (s *Server) Reload(ctx context.Context) (bool, error) {
	u, err := source.Normalize(s.config.Document)
	if err != nil {
		return false, err
	}
	doc, err := s.config.Loader.Load(ctx, u)
	s.config.Metrics.RecordLoad(u.Scheme, err)
	if err != nil {
		return false, fmt.Errorf("server: load %s: %w", u.Redacted(), err)
	}

	sum := sha256.Sum256(doc.Body)
	s.mu.Lock()
	if s.doc != nil && sum == s.hash {
		s.mu.Unlock()
		return false, nil
	}
	s.doc = doc
	s.hash = sum
	s.mu.Unlock()

	n := s.sessions.Broadcast(doc)
	s.logger.Info("document updated", "url", doc.URL.Redacted(), "bytes", len(doc.Body), "sessions", n)
	return true, nil
}

// HandleWebSocket upgrades the request and runs a session until the
// connection ends.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(s.config.SessionConfig.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.SessionConfig.HandshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		s.logger.Error("handshake read failed", "error", err)
		conn.Close()
		return
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHello {
		s.sendHandshakeError(conn, protocol.NewError(protocol.ErrInvalidFrame, "expected hello"))
		return
	}
	hello, err := protocol.DecodeHello(frame.Payload)
	if err != nil {
		s.sendHandshakeError(conn, protocol.NewError(protocol.ErrInvalidFrame, "%v", err))
		return
	}

	sess := newSession(s, conn, ulid.Make().String())
	if err := s.sessions.Add(sess); err != nil {
		s.logger.Warn("session rejected", "error", err)
		sess.cancel()
		s.sendHandshakeError(conn, protocol.NewError(protocol.ErrServerError, "%v", err))
		return
	}

	reply := &protocol.Hello{Session: sess.ID, URL: s.config.Document}
	if err := sess.writer.WriteMessage(websocket.BinaryMessage, reply.Frame().Encode()); err != nil {
		s.logger.Error("hello write failed", "error", err)
		sess.Close()
		return
	}
	s.logger.Info("session started", "session_id", sess.ID, "client_url", hello.URL)

	sess.Start(s.Document())
}

func (s *Server) sendHandshakeError(conn *websocket.Conn, em *protocol.ErrorMessage) {
	em.Fatal = true
	conn.SetWriteDeadline(time.Now().Add(s.config.SessionConfig.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, em.Frame().Encode())
	conn.Close()
}

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	page := render.PageData{
		Title:  s.config.Title,
		Script: clientScript,
		Styles: shellStyles,
	}
	if doc := s.Document(); doc != nil {
		tree, err := markup.Build(s.config.Builder, doc.Body)
		if err != nil {
			s.logger.Warn("shell prerender failed", "error", err)
		} else {
			page.Document = tree
		}
	}

	var buf bytes.Buffer
	if err := s.renderer.RenderPage(&buf, page); err != nil {
		s.logger.Error("shell render failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	changed, err := s.Reload(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":  changed,
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if s.Document() == nil {
		status = "no document"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"sessions": s.sessions.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Run loads the document, starts the watcher and serves until SIGINT or
// SIGTERM.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.Reload(ctx); err != nil {
		// Sessions retry on connect; the watcher keeps trying too.
		s.logger.Warn("initial load failed", "error", err)
	}
	go s.Watch(ctx)

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address, "document", s.config.Document)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.sessions.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
