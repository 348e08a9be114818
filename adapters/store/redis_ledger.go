package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// RedisTokenLedger is a Redis implementation of the TokenLedger interface.
type RedisTokenLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisTokenLedger creates a new Redis token ledger.
func NewRedisTokenLedger(client *redis.Client) *RedisTokenLedger {
	return &RedisTokenLedger{
		client: client,
		prefix: "katana:redeemed:",
	}
}

// Redeem marks a token as spent in Redis.
func (l *RedisTokenLedger) Redeem(ctx context.Context, tokenID string, ttl time.Duration) error {
	key := l.prefix + tokenID

	if err := l.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// IsRedeemed checks whether a token has already been spent.
func (l *RedisTokenLedger) IsRedeemed(ctx context.Context, tokenID string) (bool, error) {
	key := l.prefix + tokenID

	val, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return val > 0, nil
}

var _ ports.TokenLedger = (*RedisTokenLedger)(nil)
