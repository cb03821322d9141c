package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lexiqai/voice-interview/internal/interview"
)

const (
	fieldSession      = "session"
	fieldStatus       = "status"
	fieldCurrentIndex = "current_index"
	fieldCompletedAt  = "completed_at"
)

// RedisStore keeps each session in a hash with its answers in a list next
// to it. Answers are only ever pushed, so records are never rewritten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithTTL sets how long sessions are kept. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		ttl:    7 * 24 * time.Hour,
		prefix: "interview",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *RedisStore) answersKey(id string) string {
	return fmt.Sprintf("%s:session:%s:answers", s.prefix, id)
}

// expire refreshes the TTL on both keys
func (s *RedisStore) expire(ctx context.Context, pipe redis.Pipeliner, id string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, s.sessionKey(id), s.ttl)
		pipe.Expire(ctx, s.answersKey(id), s.ttl)
	}
}

// CreateSession writes the session header and any answers it already has
func (s *RedisStore) CreateSession(ctx context.Context, session *interview.Session) (string, error) {
	if session == nil {
		return "", ErrInvalidSession
	}

	header := session.Clone()
	if header.ID == "" {
		header.ID = uuid.NewString()
	}
	answers := header.Answers
	header.Answers = nil

	data, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.answersKey(header.ID))
	pipe.HSet(ctx, s.sessionKey(header.ID),
		fieldSession, data,
		fieldStatus, string(header.Status),
		fieldCurrentIndex, header.CurrentIndex)
	for _, a := range answers {
		encoded, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to marshal answer: %w", err)
		}
		pipe.RPush(ctx, s.answersKey(header.ID), encoded)
	}
	s.expire(ctx, pipe, header.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redis pipeline failed: %w", err)
	}
	return header.ID, nil
}

// AppendAnswer pushes a record and advances the stored index past it
func (s *RedisStore) AppendAnswer(ctx context.Context, sessionID string, answer interview.AnsweredQuestion) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	if err := s.exists(ctx, sessionID); err != nil {
		return err
	}

	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.answersKey(sessionID), data)
	pipe.HSet(ctx, s.sessionKey(sessionID), fieldCurrentIndex, answer.Index+1)
	s.expire(ctx, pipe, sessionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// UpdateStatus sets the status and stamps the completion time once
func (s *RedisStore) UpdateStatus(ctx context.Context, sessionID string, status interview.Status) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	if err := s.exists(ctx, sessionID); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.sessionKey(sessionID), fieldStatus, string(status))
	if status.Terminal() {
		pipe.HSetNX(ctx, s.sessionKey(sessionID), fieldCompletedAt, time.Now().UTC().Format(time.RFC3339Nano))
	}
	s.expire(ctx, pipe, sessionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// GetSession assembles the session from its hash and answer list
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (*interview.Session, error) {
	if sessionID == "" {
		return nil, ErrInvalidID
	}

	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	data, ok := fields[fieldSession]
	if !ok {
		return nil, ErrNotFound
	}

	var session interview.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if status, ok := fields[fieldStatus]; ok {
		session.Status = interview.Status(status)
	}
	if raw, ok := fields[fieldCurrentIndex]; ok {
		index, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid current index %q: %w", raw, err)
		}
		session.CurrentIndex = index
	}
	if raw, ok := fields[fieldCompletedAt]; ok {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid completion time %q: %w", raw, err)
		}
		session.CompletedAt = &at
	}

	encoded, err := s.client.LRange(ctx, s.answersKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	session.Answers = make([]interview.AnsweredQuestion, 0, len(encoded))
	for _, raw := range encoded {
		var answer interview.AnsweredQuestion
		if err := json.Unmarshal([]byte(raw), &answer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal answer: %w", err)
		}
		session.Answers = append(session.Answers, answer)
	}

	return &session, nil
}

func (s *RedisStore) exists(ctx context.Context, sessionID string) error {
	n, err := s.client.Exists(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("redis exists failed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Healthy pings Redis
func (s *RedisStore) Healthy(ctx context.Context) (bool, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
