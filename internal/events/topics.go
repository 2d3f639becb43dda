package events

const (
	TopicOrders      = "store.orders"
	TopicPayments    = "store.payments"
	TopicAssignments = "store.assignments"
)

// All topics the notifier subscribes to.
var Topics = []string{TopicOrders, TopicPayments, TopicAssignments}

// Partition key = order_id, so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
