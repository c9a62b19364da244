package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/scentra/orders/internal/kafka"
	"github.com/scentra/orders/internal/orders"
)

// WebhookHandler is the notification ingress. Signature verification happens
// upstream at the gateway; this handler only parses and makes the event
// durable. It acks the provider only after the notification is written to
// Kafka, which is what lets the reconciler promise at-least-once processing.
type WebhookHandler struct {
	Producer *kafkax.Producer // payment.notifications
	Service  string
	Log      *zap.Logger
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/payment", h.receive)
}

func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	var n orders.PaymentNotification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if n.Type == "" || n.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	// Providers send their own event id; reuse it so redeliveries dedup.
	eventID := r.Header.Get("X-Event-Id")
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ev := orders.Envelope{
		EventID:       eventID,
		EventType:     orders.EventPaymentNotification,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: n.SessionID,
		Payload:       kafkax.MustMarshal(n),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	err := h.Producer.PublishSync(ctx, orders.PartitionKey(n.SessionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentNotification)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		// Not durable yet; the provider will redeliver.
		h.Log.Error("notification enqueue failed",
			zap.String("session_id", n.SessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
