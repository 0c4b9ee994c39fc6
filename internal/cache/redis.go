// Package cache wraps Redis for short-lived markers such as processed
// webhook notifications.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis client with a key prefix
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects to the Redis server at url and pings it
func NewClient(url, prefix string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, prefix: prefix}, nil
}

// Key returns the prefixed form of key
func (c *Client) Key(key string) string {
	return c.prefix + key
}

// Once marks key as seen for ttl. It returns true only for the first caller;
// later callers get false until the marker expires.
func (c *Client) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, c.Key(key), time.Now().Unix(), ttl).Result()
}

// Forget removes a marker so the key can be processed again
func (c *Client) Forget(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.Key(key)).Err()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
