package order

import "context"

// Store is the order persistence interface consumed by the
// reconciliation engine. Status-changing operations are conditional
// updates: they only apply when the order is still in the expected
// status and report whether the swap happened, so two concurrent
// reconcilers cannot both finalize the same order.
type Store interface {
	// Get retrieves an order by id. Returns errors.ErrOrderNotFound
	// when no such order exists.
	Get(ctx context.Context, id int64) (*Order, error)

	// UpdateStatus transitions the order from expected to newStatus.
	// Returns false (and no error) when the order was not in the
	// expected status.
	UpdateStatus(ctx context.Context, id int64, newStatus, expected Status) (bool, error)

	// SetMetadata merges the given keys into the order's metadata map.
	SetMetadata(ctx context.Context, id int64, meta map[string]any) error

	// AddNote appends a human-readable note to the order.
	AddNote(ctx context.Context, id int64, text string) error

	// MarkPaid records the transaction id and transitions the order
	// from pending to paid in one conditional update. Returns false
	// when the order was no longer pending.
	MarkPaid(ctx context.Context, id int64, transactionID string) (bool, error)
}

// TxRunner groups several store writes into one atomic unit when the
// underlying store supports transactions. Implementations propagate
// the transaction through the context passed to fn.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
