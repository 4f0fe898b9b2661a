package payment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore menyimpan session di tabel payment_sessions.
type PgStore struct{ DB *pgxpool.Pool }

func (r *PgStore) Create(ctx context.Context, s Session) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payment_sessions(order_id, bank, va_number, deadline, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		s.OrderID, s.Bank, s.VANumber, s.Deadline, s.CreatedAt)
	return err
}

func (r *PgStore) Get(ctx context.Context, orderID string) (Session, bool, error) {
	var s Session
	err := r.DB.QueryRow(ctx, `
		SELECT order_id, bank, va_number, deadline, created_at
		FROM payment_sessions WHERE order_id=$1`, orderID).
		Scan(&s.OrderID, &s.Bank, &s.VANumber, &s.Deadline, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

func (r *PgStore) Delete(ctx context.Context, orderID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM payment_sessions WHERE order_id=$1`, orderID)
	return err
}
