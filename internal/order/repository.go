package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gozon/storefront/pkg/contracts"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrAmbiguousReference = errors.New("provider order reference matches more than one order")
	ErrVariantNotFound    = errors.New("product variant not found")
)

const orderColumns = `
	id, order_number, user_id, guest_email, status, payment_status,
	subtotal_cents, shipping_cost_cents, discount_cents, total_cents,
	paymob_order_id, paymob_transaction_id, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.GuestEmail, &o.Status, &o.PaymentStatus,
		&o.SubtotalCents, &o.ShippingCostCents, &o.DiscountCents, &o.TotalCents,
		&o.PaymobOrderID, &o.PaymobTransactionID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) Get(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *Repository) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_number = $1`, strings.TrimSpace(orderNumber)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return o, nil
}

// FindByPaymobOrderID resolves the provider order reference to exactly one order.
func (r *Repository) FindByPaymobOrderID(ctx context.Context, paymobOrderID int64) (*Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE paymob_order_id = $1
		LIMIT 2`, paymobOrderID)
	if err != nil {
		return nil, fmt.Errorf("query order by paymob id: %w", err)
	}
	defer rows.Close()

	var found []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, ErrOrderNotFound
	case 1:
		return found[0], nil
	default:
		return nil, ErrAmbiguousReference
	}
}

// ApplyTransition updates the order only when its payment status accepts t,
// and records the tracking entry and outbox event in the same transaction.
// It returns false without writing anything when the order was already in a
// state the transition does not apply to, or when the same provider
// transaction already produced the target payment status.
func (r *Repository) ApplyTransition(ctx context.Context, orderID string, t Transition) (bool, error) {
	allowed := make([]string, 0, 4)
	for _, s := range AllowedFrom(t.PaymentStatus) {
		allowed = append(allowed, string(s))
	}

	var txID *int64
	if t.TransactionID != 0 {
		txID = &t.TransactionID
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var (
		orderNumber   string
		status        Status
		paymentStatus PaymentStatus
	)
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET payment_status = $2,
		    status = COALESCE(NULLIF($3::text, ''), status),
		    paymob_transaction_id = COALESCE($4::bigint, paymob_transaction_id),
		    updated_at = NOW()
		WHERE id = $1
		  AND payment_status = ANY($5::text[])
		  AND NOT (payment_status = $2 AND paymob_transaction_id IS NOT DISTINCT FROM $4::bigint)
		RETURNING order_number, status, payment_status`,
		orderID, t.PaymentStatus, string(t.Status), txID, allowed,
	).Scan(&orderNumber, &status, &paymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("update order status: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO order_tracking (order_id, status, description, created_at)
		VALUES ($1, $2, $3, $4)`,
		orderID, t.TrackingStatus, t.Description, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert tracking entry: %w", err)
	}

	event := contracts.OrderStatusChangedEvent{
		EventID:             uuid.New().String(),
		OrderID:             orderID,
		OrderNumber:         orderNumber,
		Status:              string(status),
		PaymentStatus:       string(paymentStatus),
		Outcome:             t.Outcome,
		Description:         t.Description,
		PaymobTransactionID: t.TransactionID,
		OccurredAt:          now,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_outbox (event_id, event_type, payload)
		VALUES ($1, $2, $3)`,
		event.EventID, contracts.EventOrderStatusChanged, payload,
	)
	if err != nil {
		return false, fmt.Errorf("insert outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transition: %w", err)
	}
	return true, nil
}

func (r *Repository) Items(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price_cents, line_total_cents
		FROM order_items
		WHERE order_id = $1`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity, &it.UnitPriceCents, &it.LineTotalCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DecrementStock lowers a variant's stock by qty in a single statement,
// clamping at zero, and returns the resulting quantity.
func (r *Repository) DecrementStock(ctx context.Context, variantID string, qty int) (int, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, `
		UPDATE product_variants
		SET stock_quantity = GREATEST(stock_quantity - $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING stock_quantity`,
		variantID, qty,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVariantNotFound
		}
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return remaining, nil
}

func (r *Repository) Tracking(ctx context.Context, orderID string) ([]TrackingEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, status, description, created_at
		FROM order_tracking
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tracking: %w", err)
	}
	defer rows.Close()

	var entries []TrackingEntry
	for rows.Next() {
		var e TrackingEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
