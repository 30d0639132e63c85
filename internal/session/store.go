// Package session keeps short-lived explanation conversations about an
// analysis result. Sessions are plain values handed to the explainer; the
// store only owns their lifetime.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/prism/internal/core"
	"github.com/newthinker/prism/internal/llm"
)

// Defaults for NewStore.
const (
	DefaultTTL     = time.Hour
	DefaultMaxSize = 100
)

// Session is one conversation about a symbol.
type Session struct {
	ID        string               `json:"id"`
	Symbol    string               `json:"symbol"`
	Result    *core.AnalysisResult `json:"result,omitempty"`
	Messages  []llm.Message        `json:"messages"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// History returns the last n messages, or all when n <= 0.
func (s Session) History(n int) []llm.Message {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Store holds sessions in memory with a sliding TTL and a size bound.
type Store struct {
	sessions map[string]*Session
	order    []string // creation order for eviction
	maxSize  int
	ttl      time.Duration
	mu       sync.RWMutex
	now      func() time.Time
}

// NewStore creates a session store. Non-positive arguments use the defaults.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		order:    make([]string, 0, maxSize),
		maxSize:  maxSize,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a session for symbol, optionally seeded with the result it
// discusses. The oldest session is evicted when the store is full.
func (s *Store) Create(symbol string, result *core.AnalysisResult) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Symbol:    strings.ToUpper(symbol),
		Result:    result,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	for len(s.sessions) >= s.maxSize && len(s.order) > 0 {
		s.removeLocked(s.order[0])
	}

	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	return copySession(sess)
}

// Get returns a copy of a live session. Expired sessions are removed and
// reported as core.ErrSessionNotFound.
func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.liveLocked(id)
	if err != nil {
		return Session{}, err
	}
	return copySession(sess), nil
}

// Append adds messages to a session and extends its expiry.
func (s *Store) Append(id string, msgs ...llm.Message) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.liveLocked(id)
	if err != nil {
		return Session{}, err
	}
	sess.Messages = append(sess.Messages, msgs...)
	sess.UpdatedAt = s.now()
	sess.ExpiresAt = sess.UpdatedAt.Add(s.ttl)
	return copySession(sess), nil
}

// Attach replaces the result a session discusses.
func (s *Store) Attach(id string, result *core.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.liveLocked(id)
	if err != nil {
		return err
	}
	sess.Result = result
	if result != nil {
		sess.Symbol = result.Symbol
	}
	sess.UpdatedAt = s.now()
	return nil
}

// Evict removes a session.
func (s *Store) Evict(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return core.ErrSessionNotFound
	}
	s.removeLocked(id)
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []string
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.removeLocked(id)
	}
	return len(expired)
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) liveLocked(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		s.removeLocked(id)
		return nil, core.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) removeLocked(id string) {
	delete(s.sessions, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func copySession(sess *Session) Session {
	out := *sess
	out.Messages = append([]llm.Message(nil), sess.Messages...)
	return out
}
