package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/domain/token"
)

// Registry holds the configured gateways, each wrapped in a circuit
// breaker so a melting provider is cut off instead of stalling every
// checkout for the full request timeout.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g Gateway) {
	breaker := gobreaker.NewCircuitBreaker[*token.ValidationResult](gobreaker.Settings{
		Name:        g.Name(),
		MaxRequests: 10,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
		// Only provider-health errors trip the breaker. A flood of
		// unknown tokens is customer junk, not a sick provider.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !stderrors.Is(err, errors.ErrTransport) &&
				!stderrors.Is(err, errors.ErrUnexpectedStatus) &&
				!stderrors.Is(err, errors.ErrMalformedResponse)
		},
	})
	r.gateways[g.Name()] = &breakered{inner: g, breaker: breaker}
}

func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q", name)
	}
	return g, nil
}

// breakered decorates a Gateway with a circuit breaker on the
// network-bound operation. URL building and availability stay direct.
type breakered struct {
	inner   Gateway
	breaker *gobreaker.CircuitBreaker[*token.ValidationResult]
}

func (b *breakered) Name() string      { return b.inner.Name() }
func (b *breakered) IsAvailable() bool { return b.inner.IsAvailable() }

func (b *breakered) PaymentRedirectURL(o *order.Order) (string, error) {
	return b.inner.PaymentRedirectURL(o)
}

func (b *breakered) ValidateToken(ctx context.Context, t string, strict bool) (*token.ValidationResult, error) {
	result, err := b.breaker.Execute(func() (*token.ValidationResult, error) {
		return b.inner.ValidateToken(ctx, t, strict)
	})
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		// An open circuit reads the same as an unreachable provider.
		return nil, fmt.Errorf("%w: circuit open for %s", errors.ErrTransport, b.inner.Name())
	}
	return result, err
}
