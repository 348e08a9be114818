package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// RedisRegistry is a Redis implementation of the FingerprintRegistry
// interface. Each fingerprint maps to a list of JSON-encoded sightings;
// RPUSH gives the required append-atomicity.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry creates a new Redis fingerprint registry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		prefix: "katana:sightings:",
	}
}

// Record appends a sighting to the fingerprint's list.
func (r *RedisRegistry) Record(ctx context.Context, sighting core.Sighting) error {
	payload, err := json.Marshal(sighting)
	if err != nil {
		return fmt.Errorf("failed to encode sighting: %w", err)
	}

	key := r.prefix + sighting.FingerprintID
	if err := r.client.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	return nil
}

// History returns all sightings for a fingerprint ordered by timestamp.
func (r *RedisRegistry) History(ctx context.Context, fingerprintID string) ([]core.Sighting, error) {
	key := r.prefix + fingerprintID

	raw, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	history := make([]core.Sighting, 0, len(raw))
	for _, entry := range raw {
		var sighting core.Sighting
		if err := json.Unmarshal([]byte(entry), &sighting); err != nil {
			return nil, fmt.Errorf("failed to decode sighting: %w", err)
		}
		history = append(history, sighting)
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SeenAt.Before(history[j].SeenAt)
	})

	return history, nil
}

var _ ports.FingerprintRegistry = (*RedisRegistry)(nil)
