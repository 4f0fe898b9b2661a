package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo: ledger order di Postgres. Mutasi memakai CAS kolom version;
// order tidak pernah dihapus, hanya pindah state (retensi audit).
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const orderColumns = `
	id, idempotency_key, buyer_id,
	recipient, phone, street, city, province, postal_code,
	courier, bank, va_number,
	subtotal, shipping_cost, discount, total,
	order_status, payment_status, expires_at,
	cancelled_by, cancel_reason, cancel_note,
	confirmation_sent, closure_sent,
	version, created_at, updated_at, cancelled_at, finished_at`

func (r *Repo) CreateOrder(ctx context.Context, o Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`,
		o.ID, o.IdempotencyKey, o.BuyerID,
		o.Address.Recipient, o.Address.Phone, o.Address.Street, o.Address.City, o.Address.Province, o.Address.PostalCode,
		o.Courier, o.Bank, o.VANumber,
		o.Subtotal, o.ShippingCost, o.Discount, o.Total,
		string(o.OrderStatus), string(o.PaymentStatus), o.ExpiresAt,
		string(o.CancelledBy), o.CancelReason, o.CancelNote,
		o.ConfirmationSent, o.ClosureSent,
		o.Version, o.CreatedAt, o.UpdatedAt, o.CancelledAt, o.FinishedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation pada idempotency_key
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrIdempotencyConflict, o.IdempotencyKey)
		}
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, seller_id, name, unit_price, qty)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, it.ProductID, it.SellerID, it.Name, it.UnitPrice, it.Qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) OrderByID(ctx context.Context, id string) (Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r *Repo) OrderByIdempotencyKey(ctx context.Context, key string) (Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key=$1`, key)
}

func (r *Repo) findOne(ctx context.Context, q string, arg any) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	items, err := r.itemsByOrderID(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

// UpdateOrder: compare-and-swap pada kolom version. Kalah race ->
// ErrVersionConflict, caller re-read lalu coba lagi.
func (r *Repo) UpdateOrder(ctx context.Context, o Order) (Order, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET
			order_status=$1, payment_status=$2, expires_at=$3,
			cancelled_by=$4, cancel_reason=$5, cancel_note=$6,
			confirmation_sent=$7, closure_sent=$8,
			updated_at=$9, cancelled_at=$10, finished_at=$11,
			version=version+1
		WHERE id=$12 AND version=$13`,
		string(o.OrderStatus), string(o.PaymentStatus), o.ExpiresAt,
		string(o.CancelledBy), o.CancelReason, o.CancelNote,
		o.ConfirmationSent, o.ClosureSent,
		o.UpdatedAt, o.CancelledAt, o.FinishedAt,
		o.ID, o.Version,
	)
	if err != nil {
		return Order{}, err
	}
	if ct.RowsAffected() == 0 {
		// id tidak ada, atau versi sudah bergeser
		if _, err := r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, o.ID); errors.Is(err, ErrNotFound) {
			return Order{}, ErrNotFound
		}
		return Order{}, ErrVersionConflict
	}
	o.Version++
	return o, nil
}

func (r *Repo) ListByBuyer(ctx context.Context, buyerID string, offset, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE buyer_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		buyerID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *Repo) CountByBuyer(ctx context.Context, buyerID string) (int64, error) {
	var n int64
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE buyer_id=$1`, buyerID).Scan(&n)
	return n, err
}

func (r *Repo) ListDue(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_status='unpaid' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(ctx, rows)
}

func (r *Repo) collect(ctx context.Context, rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		items, err := r.itemsByOrderID(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *Repo) itemsByOrderID(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, seller_id, name, unit_price, qty
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.SellerID, &it.Name, &it.UnitPrice, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                          Order
		orderStatus, paymentStatus string
		cancelledBy                string
	)
	err := row.Scan(
		&o.ID, &o.IdempotencyKey, &o.BuyerID,
		&o.Address.Recipient, &o.Address.Phone, &o.Address.Street, &o.Address.City, &o.Address.Province, &o.Address.PostalCode,
		&o.Courier, &o.Bank, &o.VANumber,
		&o.Subtotal, &o.ShippingCost, &o.Discount, &o.Total,
		&orderStatus, &paymentStatus, &o.ExpiresAt,
		&cancelledBy, &o.CancelReason, &o.CancelNote,
		&o.ConfirmationSent, &o.ClosureSent,
		&o.Version, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt, &o.FinishedAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.OrderStatus = OrderStatus(orderStatus)
	o.PaymentStatus = PaymentStatus(paymentStatus)
	o.CancelledBy = Actor(cancelledBy)
	return o, nil
}
