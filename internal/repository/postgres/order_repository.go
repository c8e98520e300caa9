package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	domainErrors "github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
)

// OrderRepository implements order.Store using PostgreSQL.
//
// The status transitions are compare-and-set: every UPDATE carries the
// expected current status in its WHERE clause, so two concurrent
// callbacks can both read "pending" but only one row update wins.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	metadata, err := json.Marshal(o.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	err = r.db(ctx).QueryRow(ctx,
		`INSERT INTO orders
		 (status, total_amount, currency, owner_user_id, transaction_id, metadata, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id`,
		string(o.Status), o.TotalAmount, o.Currency, o.OwnerUserID,
		o.TransactionID, metadata, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Get retrieves an order by its ID.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	return r.scanOrder(r.db(ctx).QueryRow(ctx,
		`SELECT id, status, total_amount, currency, owner_user_id, transaction_id, metadata, created_at, updated_at
		 FROM orders WHERE id = $1`, id))
}

// UpdateStatus transitions an order from expected to newStatus. Returns
// false without error when the order was no longer in the expected
// status, which means another writer got there first.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, newStatus, expected order.Status) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		string(newStatus), id, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetMetadata merges the given keys into the order's metadata. Existing
// keys not named in meta are preserved.
func (r *OrderRepository) SetMetadata(ctx context.Context, id int64, meta map[string]any) error {
	patch, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata patch: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE orders SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb, updated_at = NOW()
		 WHERE id = $2`,
		patch, id,
	)
	if err != nil {
		return fmt.Errorf("merge order metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOrderNotFound
	}
	return nil
}

// AddNote appends a human-readable note to the order.
func (r *OrderRepository) AddNote(ctx context.Context, id int64, text string) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO order_notes (order_id, text, created_at) VALUES ($1, $2, NOW())`,
		id, text,
	)
	if err != nil {
		return fmt.Errorf("insert order note: %w", err)
	}
	return nil
}

// MarkPaid transitions a pending order to paid and records the
// transaction id. Returns false when the order was not pending anymore.
func (r *OrderRepository) MarkPaid(ctx context.Context, id int64, transactionID string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE orders SET status = $1, transaction_id = $2, updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		string(order.StatusPaid), transactionID, id, string(order.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Notes retrieves the notes attached to an order, oldest first.
func (r *OrderRepository) Notes(ctx context.Context, id int64) ([]*order.Note, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, order_id, text, created_at
		 FROM order_notes WHERE order_id = $1 ORDER BY created_at ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	defer rows.Close()

	var notes []*order.Note
	for rows.Next() {
		n := &order.Note{}
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// --- scanning helpers ---

func (r *OrderRepository) scanOrder(s scanner) (*order.Order, error) {
	o := &order.Order{Metadata: make(map[string]any)}
	var (
		status   string
		metadata []byte
	)
	err := s.Scan(
		&o.ID, &status, &o.TotalAmount, &o.Currency, &o.OwnerUserID,
		&o.TransactionID, &metadata, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Status = order.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal order metadata: %w", err)
		}
	}
	return o, nil
}
