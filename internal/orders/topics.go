package orders

const (
	// Seluruh domain event order lewat satu topic, dibedakan header x-event-type.
	TopicOrderEvents = "order.events"

	// Transport notification sink (fire-and-forget).
	TopicNotification = "order.notification"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
