package controller

import (
	"time"

	"github.com/storekit/paygate/internal/domain/order"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (string ids, validation tags).
// Controllers convert them before calling business logic.

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	TotalAmount int64  `json:"total_amount" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	OwnerUserID string `json:"owner_user_id,omitempty"`
}

// ReprocessRequest holds the token for a manual reconciliation run.
type ReprocessRequest struct {
	Token string `json:"token" validate:"required"`
}

// --- Response DTOs ---

// APIResponse is the uniform response envelope.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code plus a human message.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// OrderResponse represents an order in API responses. The payment token
// metadata key is elided; it is a provider secret, not API surface.
type OrderResponse struct {
	ID            int64          `json:"id"`
	Status        string         `json:"status"`
	TotalAmount   int64          `json:"total_amount"`
	Currency      string         `json:"currency"`
	OwnerUserID   *string        `json:"owner_user_id,omitempty"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NoteResponse represents an order note.
type NoteResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PayResponse carries the provider redirect for a checkout.
type PayResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// ReprocessResponse reports the outcome of a manual reconciliation.
type ReprocessResponse struct {
	Paid   bool           `json:"paid"`
	Reason string         `json:"reason,omitempty"`
	Order  *OrderResponse `json:"order,omitempty"`
}

// --- Conversion helpers ---

// FromOrder converts a domain order to an API response.
func FromOrder(o *order.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:            o.ID,
		Status:        string(o.Status),
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		OwnerUserID:   o.OwnerUserID,
		TransactionID: o.TransactionID,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if len(o.Metadata) > 0 {
		meta := make(map[string]any, len(o.Metadata))
		for k, v := range o.Metadata {
			if k == order.MetaPaymentToken {
				continue
			}
			meta[k] = v
		}
		resp.Metadata = meta
	}
	return resp
}

// FromNote converts a domain note to an API response.
func FromNote(n *order.Note) *NoteResponse {
	return &NoteResponse{ID: n.ID, Text: n.Text, CreatedAt: n.CreatedAt}
}
