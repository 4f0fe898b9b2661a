package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCancelled},
		{StatusPending, StatusExpired},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusShipped, StatusDelivered},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to OrderStatus }{
		{StatusPending, StatusShipped},    // loncat tahap
		{StatusPending, StatusDelivered},  // loncat tahap
		{StatusShipped, StatusCancelled},  // sudah lewat titik batal
		{StatusShipped, StatusProcessing}, // mundur
		{StatusDelivered, StatusShipped},
		{StatusCancelled, StatusPending},
		{StatusExpired, StatusProcessing}, // terminal, bayar ulang = order baru
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNextFulfillment(t *testing.T) {
	next, ok := NextFulfillment(StatusProcessing)
	assert.True(t, ok)
	assert.Equal(t, StatusShipped, next)

	next, ok = NextFulfillment(StatusShipped)
	assert.True(t, ok)
	assert.Equal(t, StatusDelivered, next)

	for _, from := range []OrderStatus{StatusPending, StatusDelivered, StatusCancelled, StatusExpired} {
		_, ok := NextFulfillment(from)
		assert.False(t, ok, "from %s", from)
	}
}

func TestCancellable(t *testing.T) {
	assert.True(t, Cancellable(StatusPending))
	assert.True(t, Cancellable(StatusProcessing))
	assert.False(t, Cancellable(StatusShipped))
	assert.False(t, Cancellable(StatusDelivered))
	assert.False(t, Cancellable(StatusCancelled))
	assert.False(t, Cancellable(StatusExpired))
}

func TestTerminal(t *testing.T) {
	assert.False(t, Order{OrderStatus: StatusPending}.Terminal())
	assert.False(t, Order{OrderStatus: StatusProcessing}.Terminal())
	assert.False(t, Order{OrderStatus: StatusShipped}.Terminal())
	assert.True(t, Order{OrderStatus: StatusDelivered}.Terminal())
	assert.True(t, Order{OrderStatus: StatusCancelled}.Terminal())
	assert.True(t, Order{OrderStatus: StatusExpired}.Terminal())
}

func TestAwaitingPayment(t *testing.T) {
	assert.True(t, Order{OrderStatus: StatusPending, PaymentStatus: PaymentUnpaid}.AwaitingPayment())
	assert.False(t, Order{OrderStatus: StatusPending, PaymentStatus: PaymentFailed}.AwaitingPayment())
	assert.False(t, Order{OrderStatus: StatusProcessing, PaymentStatus: PaymentPaid}.AwaitingPayment())
	assert.False(t, Order{OrderStatus: StatusExpired, PaymentStatus: PaymentExpired}.AwaitingPayment())
}
