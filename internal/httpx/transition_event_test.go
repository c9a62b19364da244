package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/scentra/orders/internal/kafka"
	"github.com/scentra/orders/internal/orders"
)

func orderIn(status orders.Status) *orders.Order {
	return &orders.Order{
		ID:          42,
		OrderNumber: "ORD-20260830-000042",
		SessionID:   "cs_evt",
		Status:      status,
	}
}

func TestTransitionEventRefundedGetsOwnEventType(t *testing.T) {
	ev := transitionEvent(orderIn(orders.StatusRefunded), true, "orders-api", "trace-1")
	require.NotNil(t, ev)

	assert.Equal(t, orders.EventOrderRefunded, ev.EventType)
	assert.Equal(t, "orders-api", ev.Producer)
	assert.Equal(t, "trace-1", ev.TraceID)
	assert.Equal(t, "ORD-20260830-000042", ev.CorrelationID)

	p, err := kafkax.UnwrapPayload[orders.OrderRefundedPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.OrderID)
	assert.True(t, p.StockRestored)
}

func TestTransitionEventAdminCancelKeepsReason(t *testing.T) {
	ev := transitionEvent(orderIn(orders.StatusCancelled), true, "orders-api", "")
	require.NotNil(t, ev)

	assert.Equal(t, orders.EventOrderCancelled, ev.EventType)

	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", p.Reason)
	assert.Equal(t, int64(42), p.OrderID)
}

func TestTransitionEventNonTerminalPublishesNothing(t *testing.T) {
	for _, st := range []orders.Status{
		orders.StatusProcessing, orders.StatusShipped, orders.StatusDelivered,
	} {
		assert.Nil(t, transitionEvent(orderIn(st), false, "orders-api", ""), string(st))
	}
}
