package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-backed content cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every key, letting several deployments share a
	// Redis database.
	Prefix string
}

// RedisCache is a content cache shared across processes through Redis.
// Reads fail soft: connection errors are reported as misses so a Redis
// outage degrades to re-rendering rather than failing pages.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisCache creates a cache with its own Redis client.
func NewRedisCache(cfg RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisCache{rdb: rdb, prefix: cfg.Prefix}
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(rdb redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// Get retrieves the value for key. Returns (nil, false) on miss or when
// Redis is unreachable.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		// redis.Nil and transport errors are both misses.
		return nil, false
	}
	if val == nil {
		val = []byte{}
	}
	return val, true
}

// Set stores value with ttl. A non-positive ttl is a no-op, matching the
// other implementations rather than Redis' "no expiry" meaning.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Delete removes key. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.rdb.Del(ctx, c.prefix+key).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

var _ Cache = (*RedisCache)(nil)
