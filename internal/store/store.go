// Package store persists interview sessions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interview/internal/config"
	"github.com/lexiqai/voice-interview/internal/interview"
	"github.com/lexiqai/voice-interview/internal/resilience"
)

var (
	// ErrNotFound is returned when a session does not exist or has expired
	ErrNotFound = errors.New("session not found")
	// ErrInvalidID is returned for an empty session ID
	ErrInvalidID = errors.New("invalid session ID")
	// ErrInvalidSession is returned for a nil session
	ErrInvalidSession = errors.New("invalid session")
)

// Store is a SessionStore that can also read sessions back
type Store interface {
	interview.SessionStore
	GetSession(ctx context.Context, sessionID string) (*interview.Session, error)
	Healthy(ctx context.Context) (bool, error)
	Close() error
}

// New opens the configured backend. The Redis backend is pinged with
// reconnect backoff before it is returned.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Info().Msg("Using in-memory session store")
		return NewMemoryStore(), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		backoff := time.Duration(cfg.ReconnectBackoff) * time.Millisecond
		err := resilience.Reconnect(ctx, "redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}, &resilience.ReconnectConfig{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Backoff:     backoff,
			Multiplier:  2.0,
			MaxBackoff:  30 * backoff,
		})
		if err != nil {
			client.Close()
			return nil, err
		}

		logger.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis session store")
		return NewRedisStore(client, WithTTL(cfg.SessionTTL), WithPrefix(cfg.RedisPrefix)), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
