package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storekit/paygate/internal/domain/token"
)

// TokenCache stores previously fetched validation results for a bounded
// TTL. Get misses are indistinguishable from absent entries; storage
// failures surface as errors and callers treat them as misses.
type TokenCache interface {
	Get(ctx context.Context, key string) (*token.ValidationResult, error)
	Put(ctx context.Context, key string, result *token.ValidationResult, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// RedisTokenCache implements TokenCache on Redis with JSON values.
type RedisTokenCache struct {
	client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func (c *RedisTokenCache) Get(ctx context.Context, key string) (*token.ValidationResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var result token.ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry is as good as absent; drop it.
		c.client.Del(ctx, key)
		return nil, nil
	}
	return &result, nil
}

func (c *RedisTokenCache) Put(ctx context.Context, key string, result *token.ValidationResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
