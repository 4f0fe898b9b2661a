package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: input buruk, bisa diperbaiki caller (4xx).
	ErrValidation = errors.New("validation error")

	// ErrInvalidVoucher: kode voucher tidak dikenal server.
	ErrInvalidVoucher = errors.New("invalid voucher")

	// ErrInsufficientStock: reservasi gagal, tidak ada perubahan stok yang tersisa.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrCannotCancel: order berada di state yang tidak boleh dibatalkan.
	ErrCannotCancel = errors.New("order cannot be cancelled")

	// ErrInvalidTransition: guard state machine menolak transisi.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrStaleEvent: event gateway datang setelah order meninggalkan pending;
	// diperlakukan sebagai no-op, bukan kegagalan.
	ErrStaleEvent = errors.New("stale gateway event")

	ErrNotFound = errors.New("order not found")

	// ErrForbidden: actor bukan pihak yang berhak atas operasi ini.
	ErrForbidden = errors.New("forbidden")

	// ErrVersionConflict: CAS kalah; internal, di-retry sebelum jadi ErrTransient.
	ErrVersionConflict = errors.New("version conflict")

	// ErrIdempotencyConflict: idempotency key sudah dipakai order lain (race saat insert).
	ErrIdempotencyConflict = errors.New("idempotency key already used")

	// ErrTransient: kontensi berulang; aman di-retry dari client.
	ErrTransient = errors.New("transient store contention")
)

type StockShortage struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// ShortageError membawa detail kekurangan stok per produk.
type ShortageError struct {
	Details []StockShortage
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Details))
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }
