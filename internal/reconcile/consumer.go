package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kafkax "github.com/scentra/orders/internal/kafka"
	"github.com/scentra/orders/internal/orders"
	"github.com/scentra/orders/internal/redisx"
)

// Consumer binds the handler to the payment notification topic, with Redis
// event-id dedup in front and follow-up domain events behind. The database
// transition is the real idempotency guarantee; the dedup only saves work.
type Consumer struct {
	Handler        *Handler
	Redis          *redis.Client
	ProducerPaid   *kafkax.Producer // publish order.paid
	ProducerCancel *kafkax.Producer // publish order.cancelled
	ServiceName    string
	Log            *zap.Logger
}

// HandleMessage is installed as the kafka consumer handler.
func (c *Consumer) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// Malformed payloads are rejected at the transport boundary; commit
		// so they do not wedge the partition.
		c.Log.Error("dropping malformed notification", zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentNotification {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "reconcile", env.EventID)
	if seen, _ := redisx.Exists(ctx, c.Redis, dkey); seen {
		return nil
	}

	n, err := kafkax.UnwrapPayload[orders.PaymentNotification](env.Payload)
	if err != nil {
		c.Log.Error("dropping undecodable notification payload",
			zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	out, err := c.Handler.Handle(ctx, n)
	if err != nil {
		return err // no commit, redelivered
	}

	if out.Order != nil {
		c.cacheStatus(ctx, out.Order)
	}
	if out.Changed {
		c.publishFollowUp(out.Order, env.TraceID)
	}
	_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

// publishFollowUp emits the post-commit domain event that downstream
// collaborators (confirmation email, analytics) subscribe to. Fire and
// forget: it can never fail the transition, which has already committed.
func (c *Consumer) publishFollowUp(o *orders.Order, trace string) {
	switch o.Status {
	case orders.StatusPaid:
		ref := ""
		if o.PaymentRef != nil {
			ref = *o.PaymentRef
		}
		amount := decimalOrZero(o)
		ev := c.envelope(orders.EventOrderPaid, o.SessionID, trace, kafkax.MustMarshal(orders.OrderPaidPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			PaidAmount:  amount,
			PaymentRef:  ref,
		}))
		c.ProducerPaid.Publish(orders.PartitionKey(o.SessionID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPaid)})
	case orders.StatusCancelled:
		ev := c.envelope(orders.EventOrderCancelled, o.SessionID, trace, kafkax.MustMarshal(orders.OrderCancelledPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			Reason:      "SESSION_EXPIRED",
		}))
		c.ProducerCancel.Publish(orders.PartitionKey(o.SessionID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)})
	}
}

func (c *Consumer) envelope(eventType, sessionID, trace string, payload json.RawMessage) orders.Envelope {
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.ServiceName,
		TraceID:       trace,
		CorrelationID: sessionID,
		Payload:       payload,
	}
}

func decimalOrZero(o *orders.Order) decimal.Decimal {
	if o.PaidAmount != nil {
		return *o.PaidAmount
	}
	return decimal.Zero
}

func (c *Consumer) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]any{"status": o.Status, "order_number": o.OrderNumber})
	_ = c.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
