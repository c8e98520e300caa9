package settings

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const settingsKey = "paygate:settings"

// Well-known setting names.
const (
	KeyPaymentsEnabled = "payments.enabled"
	KeySandboxBanner   = "sandbox.banner"
)

// Store reads operator-tunable settings. Lookups fall back to the given
// default on any miss or error, so a Redis outage can never take the
// payment flow down with it.
type Store interface {
	Get(ctx context.Context, key, def string) string
	GetBool(ctx context.Context, key string, def bool) bool
}

// RedisStore implements Store on a single Redis hash, letting operators
// flip switches with HSET and no redeploy.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisStore(client *redis.Client, logger zerolog.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) Get(ctx context.Context, key, def string) string {
	val, err := s.client.HGet(ctx, settingsKey, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("setting", key).Msg("settings lookup failed, using default")
		}
		return def
	}
	return val
}

func (s *RedisStore) GetBool(ctx context.Context, key string, def bool) bool {
	val := s.Get(ctx, key, strconv.FormatBool(def))
	b, err := strconv.ParseBool(val)
	if err != nil {
		s.logger.Warn().Str("setting", key).Str("value", val).Msg("setting is not a boolean, using default")
		return def
	}
	return b
}

// Static is a fixed in-memory Store, used in tests and when Redis is
// not configured.
type Static map[string]string

func (s Static) Get(_ context.Context, key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

func (s Static) GetBool(_ context.Context, key string, def bool) bool {
	if v, ok := s[key]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
