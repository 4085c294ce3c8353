package server

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prowser-dev/prowser/pkg/page"
	"github.com/prowser-dev/prowser/pkg/protocol"
	"github.com/prowser-dev/prowser/pkg/remote"
	"github.com/prowser-dev/prowser/pkg/source"
	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Session is one connected browser.
type Session struct {
	// ID is the session's ULID.
	ID string

	// CreatedAt is when the handshake completed.
	CreatedAt time.Time

	conn    *websocket.Conn
	writer  *connWriter
	adapter *remote.Adapter
	ctrl    *page.Controller[uint32]
	server  *Server
	config  *SessionConfig
	logger  *slog.Logger

	// doc is the last document rendered; owned by EventLoop.
	doc *source.Document

	events  chan *protocol.Event
	updates chan struct{}
	latest  atomic.Pointer[source.Document]

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed atomic.Bool

	lastActive atomic.Int64
}

// connWriter serializes data writes to the socket and applies the write
// deadline.
type connWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *connWriter) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	return w.conn.WriteMessage(messageType, data)
}

func newSession(s *Server, conn *websocket.Conn, id string) *Session {
	config := s.config.SessionConfig
	logger := s.logger.With("session_id", id)
	writer := &connWriter{conn: conn, timeout: config.WriteTimeout}
	adapter := remote.New(writer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		writer:    writer,
		adapter:   adapter,
		server:    s,
		config:    config,
		logger:    logger,
		events:    make(chan *protocol.Event, config.MaxEventQueue),
		updates:   make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	sess.ctrl = page.New[uint32](s.config.Loader, adapter, remote.Container,
		page.WithBuilder(s.config.Builder),
		page.WithLogger(logger),
		page.WithMetrics(s.config.Metrics),
	)
	sess.UpdateLastActive()
	return sess
}

// UpdateLastActive records client activity.
func (s *Session) UpdateLastActive() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last client activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// URL returns the location the session is showing.
func (s *Session) URL() *url.URL {
	return s.ctrl.URL()
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Notify offers a new version of the watched document. Only the latest
// version is kept; the event loop applies it when the session is showing
// that document.
func (s *Session) Notify(doc *source.Document) {
	s.latest.Store(doc)
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Start shows doc and runs the session loops until the connection ends.
func (s *Session) Start(doc *source.Document) {
	if doc != nil {
		s.show(doc, true)
	} else {
		s.navigate(s.server.config.Document)
	}

	go s.WriteLoop()
	go s.EventLoop()
	s.ReadLoop()
}

// ReadLoop reads frames from the socket and queues events. It returns when
// the connection fails or the session closes.
func (s *Session) ReadLoop() {
	defer s.Close()

	s.conn.SetReadLimit(s.config.MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		s.UpdateLastActive()
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}
		s.UpdateLastActive()

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Warn("frame decode error", "error", err)
			s.sendError(protocol.NewError(protocol.ErrInvalidFrame, "%v", err))
			continue
		}

		switch frame.Type {
		case protocol.FrameEvent:
			ev, err := protocol.DecodeEvent(frame.Payload)
			if err != nil {
				s.logger.Warn("event decode error", "error", err)
				s.sendError(protocol.NewError(protocol.ErrInvalidFrame, "%v", err))
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			default:
				s.logger.Warn("event queue full, dropping event", "kind", ev.Kind)
			}

		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type)
		}
	}
}

// EventLoop owns the session's controller. It applies client events and
// document updates one at a time, flushing the resulting commands after
// each.
func (s *Session) EventLoop() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)

		case <-s.updates:
			if doc := s.latest.Load(); doc != nil && s.showing(doc.URL) {
				s.show(doc, false)
			}

		case <-s.done:
			return
		}
	}
}

// WriteLoop sends heartbeat pings until the session closes.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sendPing(); err != nil {
				s.logger.Debug("ping failed", "error", err)
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) sendPing() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
}

func (s *Session) handleEvent(ev *protocol.Event) {
	s.server.config.Metrics.RecordEvent(ev.Kind.String())
	s.logger.Debug("event", "kind", ev.Kind, "handle", ev.Handle)

	switch ev.Kind {
	case protocol.EventFollow:
		u, err := source.Resolve(s.ctrl.URL(), ev.Href)
		if errors.Is(err, source.ErrFragmentLink) {
			return
		}
		if err != nil {
			s.sendError(protocol.NewError(protocol.ErrInvalidEvent, "%v", err))
			return
		}
		s.load(u, true)

	case protocol.EventSubmit:
		id, ok := s.nodeOf(ev.Handle)
		if !ok {
			s.sendError(protocol.NewError(protocol.ErrInvalidEvent, "unknown handle %d", ev.Handle))
			return
		}
		form, ok := s.ctrl.FormOf(id)
		if !ok {
			s.sendError(protocol.NewError(protocol.ErrInvalidEvent, "handle %d is not in a form", ev.Handle))
			return
		}
		sub := page.FormSubmission{Action: form.Action, Method: form.Method, Values: url.Values{}}
		for _, v := range ev.Values {
			sub.Values.Add(v.Name, v.Value)
		}
		doc, err := s.ctrl.Send(s.ctx, sub)
		if err != nil {
			s.sendError(protocol.NewError(protocol.ErrLoadFailed, "%v", err))
			return
		}
		s.show(doc, false)

	case protocol.EventReload:
		u := s.ctrl.URL()
		if u == nil {
			s.navigate(s.server.config.Document)
			return
		}
		s.load(u, false)
	}
}

// nodeOf maps a client handle back to the node it renders.
func (s *Session) nodeOf(h uint32) (vdom.NodeID, bool) {
	tree := s.ctrl.Tree()
	if tree.Len() == 0 || h == remote.Container {
		return vdom.None, false
	}
	found := vdom.None
	tree.Walk(tree.Root(), func(n vdom.Node) bool {
		if found != vdom.None {
			return false
		}
		if got, ok := s.ctrl.Handle(n.ID); ok && got == h {
			found = n.ID
			return false
		}
		return true
	})
	return found, found != vdom.None
}

func (s *Session) showing(u *url.URL) bool {
	cur := s.ctrl.URL()
	return cur != nil && u != nil && cur.String() == u.String()
}

func (s *Session) navigate(location string) {
	u, err := source.Normalize(location)
	if err != nil {
		s.sendError(protocol.NewError(protocol.ErrLoadFailed, "%v", err))
		return
	}
	s.load(u, true)
}

func (s *Session) load(u *url.URL, remount bool) {
	doc, err := s.ctrl.Fetch(s.ctx, u)
	if err != nil {
		s.sendError(protocol.NewError(protocol.ErrLoadFailed, "%v", err))
		return
	}
	s.show(doc, remount)
}

// show renders doc and flushes. A reconciliation failure clears the client
// and mounts doc from scratch.
func (s *Session) show(doc *source.Document, remount bool) {
	_, err := s.ctrl.Render(s.ctx, doc, remount)
	switch {
	case err == nil:
		s.doc = doc

	case isReconcileError(err):
		s.logger.Warn("reconcile failed, resetting client", "error", err)
		s.sendError(protocol.NewError(protocol.ErrReconcile, "%v", err))
		s.adapter.Reset()
		s.ctrl.Reset()
		if _, err := s.ctrl.Render(s.ctx, doc, true); err != nil {
			s.logger.Error("remount failed", "error", err)
			s.sendError(&protocol.ErrorMessage{Code: protocol.ErrReconcile, Message: err.Error(), Fatal: true})
			s.Close()
			return
		}
		s.doc = doc

	default:
		s.sendError(protocol.NewError(protocol.ErrLoadFailed, "%v", err))
	}

	if err := s.adapter.Flush(); err != nil {
		s.logger.Debug("flush failed", "error", err)
		s.Close()
	}
}

func isReconcileError(err error) bool {
	return errors.Is(err, vdom.ErrDesync) ||
		errors.Is(err, vdom.ErrAdapter) ||
		errors.Is(err, vdom.ErrReconcilerFailed)
}

func (s *Session) sendError(em *protocol.ErrorMessage) {
	if s.closed.Load() {
		return
	}
	if err := s.writer.WriteMessage(websocket.BinaryMessage, em.Frame().Encode()); err != nil {
		s.logger.Debug("error frame not sent", "error", err)
	}
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	close(s.done)

	// The client is gone, so there is nothing to unmount.
	s.adapter.Close()
	s.ctrl.Release()

	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.conn.Close()

	s.server.sessions.Remove(s.ID)
	s.logger.Info("session closed", "duration", time.Since(s.CreatedAt))
}
