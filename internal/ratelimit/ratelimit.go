package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Limiter throttles repeated attempts per actor and action using a
// fixed window counter.
type Limiter interface {
	// Allow reports whether the actor may perform the action. It never
	// returns an error: if the underlying storage is unavailable the
	// limiter fails open, because availability of payment completion
	// outweighs throttling precision.
	Allow(ctx context.Context, actorID, action string) bool
}

// FixedWindowLimiter implements Limiter on Redis with INCR + EXPIRE.
type FixedWindowLimiter struct {
	client       *redis.Client
	window       time.Duration
	defaultLimit int
	actionLimits map[string]int
	logger       zerolog.Logger
}

type Option func(*FixedWindowLimiter)

// WithActionLimit overrides the max count for a specific action.
func WithActionLimit(action string, limit int) Option {
	return func(l *FixedWindowLimiter) { l.actionLimits[action] = limit }
}

func NewFixedWindowLimiter(client *redis.Client, limit int, window time.Duration, logger zerolog.Logger, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		client:       client,
		window:       window,
		defaultLimit: limit,
		actionLimits: make(map[string]int),
		logger:       logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *FixedWindowLimiter) limitFor(action string) int {
	if limit, ok := l.actionLimits[action]; ok {
		return limit
	}
	return l.defaultLimit
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, actorID, action string) bool {
	key := fmt.Sprintf("ratelimit:%s:%s", action, actorID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn().Err(err).Str("action", action).
			Msg("rate limiter storage unavailable, failing open")
		return true
	}

	if count == 1 {
		// First attempt in this window starts the clock.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn().Err(err).Str("action", action).
				Msg("failed to set rate limit window expiry")
		}
	}

	return count <= int64(l.limitFor(action))
}
