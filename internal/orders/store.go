package orders

import (
	"context"
	"time"
)

// Store adalah ledger order: append + mutasi ber-versi, tidak pernah delete.
type Store interface {
	// CreateOrder menyimpan order + item. Idempotency key unik;
	// tabrakan mengembalikan ErrIdempotencyConflict.
	CreateOrder(ctx context.Context, o Order) error
	OrderByID(ctx context.Context, id string) (Order, error)
	OrderByIdempotencyKey(ctx context.Context, key string) (Order, error)
	// UpdateOrder menulis o hanya jika versi tersimpan == o.Version
	// (compare-and-swap); sukses menaikkan versi. Kalah race ->
	// ErrVersionConflict, caller wajib re-read lalu coba lagi.
	UpdateOrder(ctx context.Context, o Order) (Order, error)
	ListByBuyer(ctx context.Context, buyerID string, offset, limit int) ([]Order, error)
	CountByBuyer(ctx context.Context, buyerID string) (int64, error)
	// ListDue: order yang masih menunggu pembayaran dan sudah lewat deadline.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Order, error)
}

// Catalog is the read-only product boundary, consulted only at order creation.
type Catalog interface {
	ProductsByID(ctx context.Context, ids []string) (map[string]Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// ReservationStore memegang counter stok per produk; atomik di level produk,
// terpisah dari lock level order.
type ReservationStore interface {
	// ReserveAll: all-or-nothing; jika satu item kurang, tidak ada perubahan
	// stok yang tersisa dan detail kekurangan dikembalikan.
	ReserveAll(ctx context.Context, orderID string, items []ItemQty) (ok bool, details []StockShortage, err error)
	// ReleaseAll mengembalikan stok reservasi RESERVED milik order; idempotent.
	ReleaseAll(ctx context.Context, orderID string) error
}

// PaymentGateway adalah sisi gateway yang dilihat lifecycle manager.
type PaymentGateway interface {
	OpenSession(ctx context.Context, orderID, bank string, deadline time.Time) (vaNumber string, err error)
	SessionLive(ctx context.Context, orderID string) (bool, error)
	CloseSession(ctx context.Context, orderID string) error
}
