package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// RedisSessionStore is a Redis implementation of the SessionStore interface.
// Session payloads are immutable; consumption is claimed through a separate
// marker key written with SETNX, which gives the required exactly-once
// transition without any cross-node coordination.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a new Redis session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		prefix: "katana:session:",
	}
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return s.prefix + id
}

func (s *RedisSessionStore) consumedKey(id string) string {
	return s.prefix + "consumed:" + id
}

// Put writes a new active session. Redis expiry doubles as the reaper.
func (s *RedisSessionStore) Put(ctx context.Context, session *core.ChallengeSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt) + retention
	if err := s.client.Set(ctx, s.sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// Get returns the session, evaluating expiry lazily.
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*core.ChallengeSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	consumed, err := s.client.Exists(ctx, s.consumedKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if consumed > 0 {
		session.State = core.SessionConsumed
	}

	if session.State == core.SessionExpired {
		return session, core.ErrSessionExpired
	}

	return session, nil
}

// TryConsume claims the session by writing the consumed marker with SETNX.
// Exactly one concurrent caller observes the marker as newly set.
func (s *RedisSessionStore) TryConsume(ctx context.Context, sessionID string) (*core.ChallengeSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State == core.SessionExpired {
		return nil, core.ErrSessionExpired
	}

	ttl := time.Until(session.ExpiresAt) + retention
	if ttl <= 0 {
		ttl = retention
	}

	claimed, err := s.client.SetNX(ctx, s.consumedKey(sessionID), "1", ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if !claimed {
		return nil, core.ErrSessionConsumed
	}

	session.State = core.SessionConsumed
	return session, nil
}

func (s *RedisSessionStore) load(ctx context.Context, sessionID string) (*core.ChallengeSession, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	var session core.ChallengeSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	if session.State == core.SessionActive && session.ExpiredAt(time.Now()) {
		session.State = core.SessionExpired
	}

	return &session, nil
}

var _ ports.SessionStore = (*RedisSessionStore)(nil)
