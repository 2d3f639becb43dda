package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cached order status: order_status:{order_id} -> {"status": "...", "payment_status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart hash: cart:{user_id} field {product_id}:{variation_id} -> qty
	KeyCart = "cart:%s"

	// Settings hash: field {key} -> "1" | "0"
	KeySettings = "settings"

	// Realtime notification channels
	ChanNotifyUser = "notify:user:%s"
	ChanNotifyRole = "notify:role:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCart        = 30 * 24 * time.Hour
	TTLSettings    = 10 * time.Minute
)
