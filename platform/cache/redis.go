// Package cache provides the shared Redis connection.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"fmt"
	"time"

	"datavend_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// NewClient parses REDIS_URL (redis:// or rediss://) and verifies the server answers.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.IsRedisEnabled() {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
