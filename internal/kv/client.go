// Package kv wraps the Redis-backed key-value store that carries worker
// status slots, repository caches and the outbound retry lists.
package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Get and LPop when the key holds no value.
var ErrNotFound = errors.New("kv: key not found")

// Client is the store surface the rest of the application consumes.
// Ordering across independent keys is not guaranteed; every operation is a
// single round trip and failures propagate as errors.
type Client interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	LPush(ctx context.Context, key string, value string) error
	LPop(ctx context.Context, key string) (string, error)
	LRange(ctx context.Context, key string) ([]string, error)
	LRem(ctx context.Context, key string, value string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

// NewRedisClient builds a Client from a redis URL, tunes the pool and
// verifies connectivity with a bounded ping-with-retry.
func NewRedisClient(url string) (Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}

	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 10
	opts.MinIdleConns = 5

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := client.Ping(ctx).Err(); err == nil {
			lastErr = nil
			break
		} else {
			lastErr = err
			if i < 2 {
				time.Sleep(time.Duration(i+1) * time.Second)
			}
		}
	}
	if lastErr != nil {
		client.Close()
		return nil, errors.Wrap(lastErr, "failed to connect to redis after retries")
	}

	return &redisClient{client: client}, nil
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (c *redisClient) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *redisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *redisClient) LPush(ctx context.Context, key string, value string) error {
	return c.client.LPush(ctx, key, value).Err()
}

func (c *redisClient) LPop(ctx context.Context, key string) (string, error) {
	value, err := c.client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return value, err
}

func (c *redisClient) LRange(ctx context.Context, key string) ([]string, error) {
	return c.client.LRange(ctx, key, 0, -1).Result()
}

func (c *redisClient) LRem(ctx context.Context, key string, value string) error {
	return c.client.LRem(ctx, key, 1, value).Err()
}

func (c *redisClient) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *redisClient) Touch(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}
