// Package cache provides the Redis connection used for lookup caching.
// This is part of the platform layer and contains no business logic.
package cache

import (
	"context"
	"fmt"
	"time"

	"meteo_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis parses REDIS_URL and verifies the server answers.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}
