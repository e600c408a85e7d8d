// Package session holds the in-memory conversation registry. The store is
// the only state shared across turn workers; its lock guards map access
// only, never retrieval or synthesis work.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"inquest/internal/models"
)

// ErrTurnInFlight is returned when a second turn is submitted to a session
// whose previous turn has not completed.
var ErrTurnInFlight = errors.New("a turn is already in flight for this session")

// Store is a concurrency-safe session registry. Sessions live for the
// process lifetime; there is no eviction.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	inFlight map[string]bool
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		inFlight: make(map[string]bool),
	}
}

// GetOrCreate returns the session for id, creating a fresh one with a
// generated id when id is empty or unknown.
func (s *Store) GetOrCreate(id string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if se, ok := s.sessions[id]; ok {
			return snapshot(se)
		}
	}

	now := time.Now().UTC()
	se := &models.Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[se.ID] = se
	return snapshot(se)
}

// Get returns the session for id, or false when unknown.
func (s *Store) Get(id string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	se, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return snapshot(se), true
}

// List returns all sessions ordered by creation time, oldest first.
func (s *Store) List() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*models.Session, 0, len(s.sessions))
	for _, se := range s.sessions {
		sessions = append(sessions, snapshot(se))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Append adds a message to the session's history. The first user message
// also sets the session title.
func (s *Store) Append(id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	se, ok := s.sessions[id]
	if !ok {
		return errors.New("session not found")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Role == models.RoleUser && se.Title == defaultTitle {
		se.Title = generateTitle(msg.Content)
	}
	se.Messages = append(se.Messages, msg)
	se.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a session. Explicit deletion only; the store never evicts.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	delete(s.inFlight, id)
	return true
}

// BeginTurn marks the session busy. A busy session rejects further turns
// until EndTurn runs, which keeps per-session message order deterministic.
func (s *Store) BeginTurn(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return ErrTurnInFlight
	}
	s.inFlight[id] = true
	return nil
}

// EndTurn releases the session.
func (s *Store) EndTurn(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// snapshot clones a session so callers never share the store's backing
// slices.
func snapshot(se *models.Session) *models.Session {
	cp := *se
	cp.Messages = make([]models.Message, len(se.Messages))
	copy(cp.Messages, se.Messages)
	return &cp
}
