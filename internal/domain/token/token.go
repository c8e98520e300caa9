package token

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/storekit/paygate/internal/domain/errors"
)

// tokenPattern is the only syntax the provider ever issues. Anything
// else is rejected locally without a network call.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks the syntax of a provider-issued payment token.
func Validate(t string) error {
	if t == "" {
		return errors.ErrMissingToken
	}
	if !tokenPattern.MatchString(t) {
		return errors.ErrInvalidFormat
	}
	return nil
}

// Redact returns a loggable form of a token. Tokens are credentials;
// only a short prefix ever reaches logs or error payloads.
func Redact(t string) string {
	const keep = 6
	if len(t) <= keep {
		return "***"
	}
	return t[:keep] + "..."
}

// CacheKey derives the cache key for a (token, strict) pair. Strict and
// non-strict validations cache independently, and the raw token never
// becomes Redis key material.
func CacheKey(t string, strict bool) string {
	sum := sha256.Sum256([]byte(t))
	key := "tokencheck:" + hex.EncodeToString(sum[:16])
	if strict {
		return key + ":strict"
	}
	return key
}

// ValidationResult is the decoded outcome of asking the provider
// whether a token is valid and what it represents. Immutable once
// created; cached with a bounded TTL.
type ValidationResult struct {
	Token         string `json:"token"`
	PaymentAmount int64  `json:"payment"`
	RoutingFrom   string `json:"routing_from"`
	RoutingTo     string `json:"routing_to"`
	AuthKey       string `json:"auth_key"`
	IsSandbox     bool   `json:"sandbox"`
	// IsExpired is informational only: the provider still honors the
	// token for payment completion.
	IsExpired bool `json:"token_expired"`
}
