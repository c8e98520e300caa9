package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session identifies the inbound request's checkout session and, when
// authenticated, the acting user.
type Session struct {
	ID       string
	UserID   string // empty for guests
	ClientIP string
}

// Actor returns the rate-limit actor identity: the authenticated user
// if present, otherwise the (pre-hashed) client address.
func (s Session) Actor() string {
	if s.UserID != "" {
		return "user:" + s.UserID
	}
	return "ip:" + s.ClientIP
}

// Binding is the ephemeral association between a checkout session and
// the order awaiting payment.
type Binding struct {
	OrderID       int64
	SecurityToken string
}

// BindingStore owns the session → pending-order association. The
// reconciler only reads and clears bindings; they are created when the
// customer is redirected to the provider.
type BindingStore interface {
	Get(ctx context.Context, sessionID string) (*Binding, error)
	Put(ctx context.Context, sessionID string, b Binding, ttl time.Duration) error
	Clear(ctx context.Context, sessionID string) error
}

// RedisBindingStore implements BindingStore on Redis hashes.
type RedisBindingStore struct {
	client *redis.Client
}

func NewRedisBindingStore(client *redis.Client) *RedisBindingStore {
	return &RedisBindingStore{client: client}
}

func bindingKey(sessionID string) string {
	return "binding:" + sessionID
}

func (s *RedisBindingStore) Get(ctx context.Context, sessionID string) (*Binding, error) {
	fields, err := s.client.HGetAll(ctx, bindingKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("binding get: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	orderID, err := strconv.ParseInt(fields["order_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("binding has invalid order_id %q", fields["order_id"])
	}
	return &Binding{
		OrderID:       orderID,
		SecurityToken: fields["security_token"],
	}, nil
}

func (s *RedisBindingStore) Put(ctx context.Context, sessionID string, b Binding, ttl time.Duration) error {
	key := bindingKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"order_id":       strconv.FormatInt(b.OrderID, 10),
		"security_token": b.SecurityToken,
	})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("binding put: %w", err)
	}
	return nil
}

func (s *RedisBindingStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, bindingKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("binding clear: %w", err)
	}
	return nil
}
