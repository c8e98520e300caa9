package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/storekit/paygate/internal/cache"
	"github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/token"
	"github.com/storekit/paygate/internal/gateway"
	"github.com/storekit/paygate/internal/infrastructure/observability"
)

// TokenValidator orchestrates cache lookup, provider call, response
// classification, and re-cache for payment token validation.
//
// The two-layer design exists because provider calls are network
// round-trips on the critical path of a customer-facing checkout:
// caching bounds provider load, while the bypass path guarantees the
// actual money-movement decision is never made from a stale or
// cross-scoped cache entry.
type TokenValidator struct {
	gateway gateway.Gateway
	cache   cache.TokenCache
	ttl     time.Duration
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewTokenValidator(
	gw gateway.Gateway,
	tokenCache cache.TokenCache,
	ttl time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *TokenValidator {
	return &TokenValidator{
		gateway: gw,
		cache:   tokenCache,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Validate checks a payment token with the provider. When bypassCache
// is false a cached result within its TTL is returned as-is; cached
// entries passed the auth-key check before being stored, so they are
// not re-verified. When bypassCache is true the cache read is skipped
// entirely but a fresh result is still stored.
func (v *TokenValidator) Validate(ctx context.Context, t string, strict, bypassCache bool) (*token.ValidationResult, error) {
	if t == "" {
		return nil, errors.ErrMissingToken
	}

	key := token.CacheKey(t, strict)

	if !bypassCache {
		cached, err := v.cache.Get(ctx, key)
		if err != nil {
			// Cache trouble is never fatal; fall through to the provider.
			v.logger.Warn().Err(err).Msg("token cache lookup failed")
		}
		if cached != nil {
			v.countCache("hit")
			v.countValidation("cache", "ok")
			return cached, nil
		}
		v.countCache("miss")
	} else {
		v.countCache("bypass")
	}

	result, err := v.gateway.ValidateToken(ctx, t, strict)
	if err != nil {
		v.countValidation("provider", "error")
		return nil, err
	}

	if result.IsExpired {
		// The provider still honors expired tokens for completion;
		// surface it for operators without failing the validation.
		v.logger.Warn().Str("token", token.Redact(t)).Msg("provider reports token expired")
	}

	if err := v.cache.Put(ctx, key, result, v.ttl); err != nil {
		v.logger.Warn().Err(err).Msg("failed to cache validation result")
	}

	v.countValidation("provider", "ok")
	return result, nil
}

// Invalidate drops both the strict and non-strict cache entries for a
// token. Called after a token is consumed so it cannot satisfy a second
// reconciliation from cache.
func (v *TokenValidator) Invalidate(ctx context.Context, t string) {
	for _, strict := range []bool{false, true} {
		if err := v.cache.Invalidate(ctx, token.CacheKey(t, strict)); err != nil {
			v.logger.Warn().Err(err).Bool("strict", strict).
				Str("token", token.Redact(t)).Msg("failed to invalidate cached token")
		}
	}
}

func (v *TokenValidator) countCache(result string) {
	if v.metrics != nil {
		v.metrics.CacheLookupsTotal.WithLabelValues(result).Inc()
	}
}

func (v *TokenValidator) countValidation(source, result string) {
	if v.metrics != nil {
		v.metrics.TokenValidationsTotal.WithLabelValues(source, result).Inc()
	}
}
