package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexiqai/voice-interview/internal/interview"
)

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*interview.Session
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*interview.Session)}
}

// CreateSession stores a copy of session, assigning an ID when it has none
func (s *MemoryStore) CreateSession(ctx context.Context, session *interview.Session) (string, error) {
	if session == nil {
		return "", ErrInvalidSession
	}

	stored := session.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[stored.ID] = stored
	return stored.ID, nil
}

// AppendAnswer appends a record and advances the stored index past it
func (s *MemoryStore) AppendAnswer(ctx context.Context, sessionID string, answer interview.AnsweredQuestion) error {
	if sessionID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Answers = append(session.Answers, answer)
	if answer.Index+1 > session.CurrentIndex {
		session.CurrentIndex = answer.Index + 1
	}
	return nil
}

// UpdateStatus sets the status and stamps CompletedAt on terminal ones
func (s *MemoryStore) UpdateStatus(ctx context.Context, sessionID string, status interview.Status) error {
	if sessionID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	session.Status = status
	if status.Terminal() && session.CompletedAt == nil {
		now := time.Now()
		session.CompletedAt = &now
	}
	return nil
}

// GetSession returns a copy of the stored session
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*interview.Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

// Healthy always reports true
func (s *MemoryStore) Healthy(ctx context.Context) (bool, error) {
	return true, nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
