// Package redis wraps go-redis/v9 for the match cache. Every key is placed
// under the configured prefix so several deployments can share one server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
)

// scanCount is the COUNT hint of SCAN and the UNLINK batch size.
const scanCount = 500

// Client is a prefixed go-redis client.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects to cfg.Addr and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

// Get returns the bytes stored under key. A missing key yields an error for
// which IsNilError is true.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, c.prefix+key).Bytes()
}

// Set stores value under key for ttl.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Del removes keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, full...).Err()
}

// FlushByPattern unlinks every key matching the glob pattern and returns how
// many were removed. The pattern is relative to the prefix. Keys written
// while the scan runs may survive.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	pending := make([]string, 0, scanCount)
	unlink := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, pending...).Result()
		if err != nil {
			return fmt.Errorf("unlinking %d keys: %w", len(pending), err)
		}
		removed += n
		pending = pending[:0]
		return nil
	}

	iter := c.rdb.Scan(ctx, 0, c.prefix+pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		pending = append(pending, iter.Val())
		if len(pending) == scanCount {
			if err := unlink(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning %s: %w", pattern, err)
	}
	return removed, unlink()
}

// IsNilError reports whether err means the key does not exist.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
