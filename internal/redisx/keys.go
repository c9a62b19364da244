package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status": "...", "order_number": "..."}
	KeyOrderStatus = "order_status:%d"

	// Dedup notification processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// FX rate maintained by the rate-ingestion job: fx:rate:{currency} -> {"rate": "...", "fee_percent": "..."}
	KeyFXRate = "fx:rate:%s"

	// Active promotion maintained by the promo admin: promo:active -> {"discount_percent": "..."}
	KeyActivePromo = "promo:active"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
