package orders

const (
	TopicOrderCreated         = "order.created"
	TopicOrderPaid            = "order.paid"
	TopicOrderCancelled       = "order.cancelled"
	TopicOrderRefunded        = "order.refunded"
	TopicPaymentNotifications = "payment.notifications"
)

// Partition key = session id, so every event of one checkout keeps order.
func PartitionKey(sessionID string) []byte { return []byte(sessionID) }
