package orders

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusExpired    OrderStatus = "expired"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed" // order tetap pending; retry = order baru
	PaymentExpired PaymentStatus = "expired"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true, StatusExpired: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusExpired:    {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// fulfillmentNext: jalur seller maju satu tahap, tidak boleh loncat.
var fulfillmentNext = map[OrderStatus]OrderStatus{
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

func NextFulfillment(from OrderStatus) (OrderStatus, bool) {
	next, ok := fulfillmentNext[from]
	return next, ok
}

var cancellableFrom = map[OrderStatus]bool{
	StatusPending:    true,
	StatusProcessing: true,
}

func Cancellable(from OrderStatus) bool {
	return cancellableFrom[from]
}
