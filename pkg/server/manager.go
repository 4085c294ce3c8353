package server

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prowser-dev/prowser/pkg/metrics"
	"github.com/prowser-dev/prowser/pkg/source"
)

// ErrMaxSessions is returned when the session limit is reached.
var ErrMaxSessions = errors.New("server: maximum sessions reached")

// SessionManager tracks live sessions.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	maxSessions int
	metrics     *metrics.Metrics

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int

	logger *slog.Logger
}

func newSessionManager(maxSessions int, m *metrics.Metrics, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		metrics:     m,
		logger:      logger,
	}
}

// Add registers sess. It fails with ErrMaxSessions when the limit is
// reached.
func (sm *SessionManager) Add(sess *Session) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return ErrMaxSessions
	}
	sm.sessions[sess.ID] = sess
	sm.totalCreated.Add(1)
	sm.peakSessions = max(sm.peakSessions, len(sm.sessions))
	sm.metrics.SessionOpened()
	return nil
}

// Remove forgets the session with the given ID.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[id]; !ok {
		return
	}
	delete(sm.sessions, id)
	sm.totalClosed.Add(1)
	sm.metrics.SessionClosed()
}

// Get returns a session by ID, or nil.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Stats reports session counters.
type Stats struct {
	Active       int    `json:"active"`
	Peak         int    `json:"peak"`
	TotalCreated uint64 `json:"totalCreated"`
	TotalClosed  uint64 `json:"totalClosed"`
}

// Stats returns the current session counters.
func (sm *SessionManager) Stats() Stats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return Stats{
		Active:       len(sm.sessions),
		Peak:         sm.peakSessions,
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
	}
}

// Broadcast offers doc to every live session.
func (sm *SessionManager) Broadcast(doc *source.Document) int {
	for _, sess := range sm.snapshot() {
		sess.Notify(doc)
	}
	return sm.Count()
}

// Shutdown closes every session.
func (sm *SessionManager) Shutdown() {
	sessions := sm.snapshot()
	for _, sess := range sessions {
		sess.Close()
	}
	if len(sessions) > 0 {
		sm.logger.Info("sessions closed", "count", len(sessions))
	}
}

func (sm *SessionManager) snapshot() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		out = append(out, sess)
	}
	return out
}
