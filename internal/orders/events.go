package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated        = "OrderCreated"
	EventOrderPaid           = "OrderPaid"
	EventOrderCancelled      = "OrderCancelled"
	EventOrderRefunded       = "OrderRefunded"
	EventPaymentNotification = "PaymentNotification"
)

// Inbound provider notification types.
const (
	NotifConfirmed = "confirmed"
	NotifExpired   = "expired"
	NotifFailed    = "failed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // session id for notifications, order number otherwise
	Payload       json.RawMessage `json:"payload"`
}

// PaymentNotification is the authenticated provider event as delivered by
// the webhook transport. Amount and PaymentRef are only set for confirmed.
type PaymentNotification struct {
	Type       string           `json:"type"`
	SessionID  string           `json:"session_id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	PaymentRef string           `json:"payment_ref,omitempty"`
}

type OrderCreatedPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SessionID   string `json:"session_id"`
	TotalCents  int64  `json:"total_cents"`
}

type OrderPaidPayload struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	PaymentRef  string          `json:"payment_ref"`
}

type OrderCancelledPayload struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"` // SESSION_EXPIRED | STALE_TIMEOUT | ADMIN
}

type OrderRefundedPayload struct {
	OrderID       int64  `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	StockRestored bool   `json:"stock_restored"`
}
