// Package session keeps one store per browser session.
//
// A Session owns a Store and the Feed its notifications go to. A new
// Session lives only as long as the request that made it; it is registered
// with the Manager by Keep, once there is state worth remembering (a signed
// in user). Kept sessions that have not been touched for the configured TTL
// are swept by Run.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/craftmarket/internal/store"
)

// Session is one browser session.
type Session struct {
	ID        string
	Store     *store.Store
	Feed      *store.Feed
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	kept     bool
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Kept reports whether the session is registered with its Manager.
func (s *Session) Kept() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kept
}

// LastSeen returns the time the session was last used.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager creates, looks up and expires sessions.
type Manager struct {
	api    store.API
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager whose sessions share api.
func NewManager(api store.API, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		api:      api,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// TTL is the idle lifetime of a session.
func (m *Manager) TTL() time.Duration { return m.ttl }

// New returns an unauthenticated session that is not registered yet. It is
// garbage once the caller drops it, unless it is passed to Keep.
func (m *Manager) New() *Session {
	now := m.now()
	feed := store.NewFeed(32)
	s := &Session{
		ID:        xid.NewWithTime(now).String(),
		Feed:      feed,
		CreatedAt: now,
		lastSeen:  now,
	}
	s.Store = store.New(m.api, feed, m.logger.With("session", s.ID))
	return s
}

// Keep registers s so Get finds it. It reports false if s was already kept.
func (m *Manager) Keep(s *Session) bool {
	s.mu.Lock()
	if s.kept {
		s.mu.Unlock()
		return false
	}
	s.kept = true
	s.lastSeen = m.now()
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session created", "session", s.ID)
	return true
}

// Create starts a new unauthenticated session and keeps it.
func (m *Manager) Create() *Session {
	s := m.New()
	m.Keep(s)
	return s
}

// Get returns the live session with id and marks it as used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(s.LastSeen()) > m.ttl {
		m.Delete(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// Delete ends a session and closes its notification subscribers.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Feed.Close()
		m.logger.Debug("session ended", "session", id)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	var expired []string

	m.mu.RLock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.ttl {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.Delete(id)
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("expired idle sessions", "count", n, "live", m.Len())
			}
		}
	}
}
