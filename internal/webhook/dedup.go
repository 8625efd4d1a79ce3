package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "webhook:flw:charge:"

// Deduper remembers which charges have already been announced.
type Deduper interface {
	// FirstSeen marks id as seen and reports whether this was the first sighting.
	FirstSeen(ctx context.Context, id string) (bool, error)
}

// RedisDeduper keeps seen charge IDs in Redis with a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// FirstSeen implements Deduper.
func (d *RedisDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+id, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark webhook %s seen: %w", id, err)
	}
	return ok, nil
}
