package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
)

// Manager tracks open sessions by id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Open creates and registers a session for the document stored as docID.
func (m *Manager) Open(docID string, doc *listingkit.Document, editing bool) *Session {
	id := uuid.NewString()
	s := New(id, docID, doc, editing, m.logger.With(zap.String("session", id), zap.String("doc", docID)))

	m.mu.Lock()
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug("session opened",
		zap.String("session", id), zap.String("doc", docID),
		zap.Bool("editing", editing), zap.Int("open", count))
	return s
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Drop closes and forgets a session.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Debug("session closed", zap.String("session", id))
	}
}

// ForDocument returns the open sessions on docID, ordered by session id.
func (m *Manager) ForDocument(docID string) []*Session {
	m.mu.RLock()
	var out []*Session
	for _, s := range m.sessions {
		if s.DocID == docID {
			out = append(out, s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll drops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
