package gateway

import (
	"context"

	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/domain/token"
)

// Gateway is the capability interface for a payment provider. Alternate
// providers plug in here without touching the reconciliation core.
type Gateway interface {
	// Name returns the provider name.
	Name() string
	// IsAvailable reports whether the gateway is configured and enabled.
	IsAvailable() bool
	// PaymentRedirectURL builds the provider URL the customer is sent
	// to for the given order.
	PaymentRedirectURL(o *order.Order) (string, error)
	// ValidateToken asks the provider whether the token is valid and
	// what payment it represents.
	ValidateToken(ctx context.Context, t string, strict bool) (*token.ValidationResult, error)
}
