package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a namespaced string store on top of go-redis. It backs the
// geocoder result cache when REDIS_URL is configured.
type Client struct {
	rdb    *redis.Client
	prefix string
	logger *slog.Logger
}

// NewClient parses url, connects and pings once
func NewClient(ctx context.Context, url, prefix string, logger *slog.Logger) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, prefix: prefix, logger: logger}, nil
}

func (c *Client) key(k string) string {
	return c.prefix + k
}

// Get returns the cached value. Misses and redis errors both report false;
// errors are logged because a cache outage must not fail a lookup.
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		c.logger.Warn("redis get failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", false
	}
	return val, true
}

// Set stores value with ttl. Failures are logged and swallowed.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Ping checks connectivity for the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
