package order

import (
	"time"

	"github.com/storekit/paygate/internal/domain/errors"
)

// Status represents the order status in the state machine
type Status string

const (
	StatusPending   Status = "pending"
	StatusOnHold    Status = "on_hold"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Metadata keys written by the reconciliation engine. The core never
// touches any other key in an order's metadata map.
const (
	MetaPaymentToken  = "payment_token"
	MetaRoutingFrom   = "routing_from"
	MetaRoutingTo     = "routing_to"
	MetaPaymentAmount = "payment_amount"
	MetaPaymentTime   = "payment_time"
	MetaTransactionID = "transaction_id"
	MetaIsSandbox     = "is_sandbox"
)

// Order represents an order awaiting (or past) payment.
// TotalAmount is in the provider's smallest currency unit.
type Order struct {
	ID            int64
	Status        Status
	TotalAmount   int64
	Currency      string
	OwnerUserID   *string // nil for guest orders
	TransactionID *string
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Note is a human-readable annotation attached to an order.
type Note struct {
	ID        int64
	OrderID   int64
	Text      string
	CreatedAt time.Time
}

// NewOrder creates a pending order.
func NewOrder(id int64, totalAmount int64, currency string, ownerUserID *string) (*Order, error) {
	if totalAmount <= 0 {
		return nil, errors.NewValidationError("total_amount", "must be greater than 0")
	}
	if len(currency) != 3 {
		return nil, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	now := time.Now()
	return &Order{
		ID:          id,
		Status:      StatusPending,
		TotalAmount: totalAmount,
		Currency:    currency,
		OwnerUserID: ownerUserID,
		Metadata:    make(map[string]any),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the given status
func (o *Order) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending: {
			StatusPaid,
			StatusOnHold,
			StatusCancelled,
			StatusFailed,
		},
		StatusOnHold: {
			StatusPaid, // admin resolved the mismatch
			StatusCancelled,
			StatusFailed,
		},
		StatusPaid:      {}, // terminal for the callback flow
		StatusCancelled: {},
		StatusFailed:    {},
	}

	allowed, exists := transitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// IsEligibleForPayment reports whether a callback may finalize this order.
// Only pending orders are eligible; everything else is already settled,
// flagged, or cancelled.
func (o *Order) IsEligibleForPayment() bool {
	return o.Status == StatusPending
}

// IsOwnedBy reports whether userID may act on the order. Guest orders
// (nil owner) are open to any session holder; owned orders only to the
// matching user.
func (o *Order) IsOwnedBy(userID string) bool {
	if o.OwnerUserID == nil {
		return true
	}
	return userID == *o.OwnerUserID
}
