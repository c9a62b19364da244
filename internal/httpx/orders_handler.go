package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kafkax "github.com/scentra/orders/internal/kafka"
	"github.com/scentra/orders/internal/orders"
	"github.com/scentra/orders/internal/pricing"
	"github.com/scentra/orders/internal/redisx"
)

type OrdersHandler struct {
	Svc            *orders.Service
	Repo           *orders.Repo
	Redis          *redis.Client
	ProducerCreate *kafkax.Producer // order.created
	ProducerCancel *kafkax.Producer // order.cancelled (admin edge)
	ProducerRefund *kafkax.Producer // order.refunded
	Service        string
	Log            *zap.Logger
}

type CreateOrderReq struct {
	SessionID  string              `json:"session_id"`
	UserID     *string             `json:"user_id,omitempty"`
	GuestEmail *string             `json:"guest_email,omitempty"`
	Shipping   orders.Address      `json:"shipping"`
	Items      []pricing.LineInput `json:"items"`
}

type PreviewReq struct {
	Items []pricing.LineInput `json:"items"`
}

type TransitionReq struct {
	Status string `json:"status"`
}

type TransitionResp struct {
	Order         orderResp `json:"order"`
	StockRestored bool      `json:"stock_restored"`
}

type orderResp struct {
	ID                 int64            `json:"id"`
	OrderNumber        string           `json:"order_number"`
	SessionID          string           `json:"session_id"`
	UserID             *string          `json:"user_id,omitempty"`
	GuestEmail         *string          `json:"guest_email,omitempty"`
	Shipping           orders.Address   `json:"shipping"`
	SubtotalCents      int64            `json:"subtotal_cents"`
	DiscountPercent    *decimal.Decimal `json:"discount_percent,omitempty"`
	DiscountCents      int64            `json:"discount_cents"`
	TotalCents         int64            `json:"total_cents"`
	FXRate             decimal.Decimal  `json:"fx_rate"`
	FXFeePercent       decimal.Decimal  `json:"fx_fee_percent"`
	SettlementCurrency string           `json:"settlement_currency"`
	SettlementTotal    decimal.Decimal  `json:"settlement_total"`
	PaidAmount         *decimal.Decimal `json:"paid_amount,omitempty"`
	PaymentRef         *string          `json:"payment_ref,omitempty"`
	Status             orders.Status    `json:"status"`
	Items              []itemResp       `json:"items"`
	CreatedAt          time.Time        `json:"created_at"`
	PaidAt             *time.Time       `json:"paid_at,omitempty"`
}

type itemResp struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Brand          string `json:"brand"`
	Slug           string `json:"slug"`
	ImageURL       string `json:"image_url"`
	VolumeML       int    `json:"volume_ml"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders/preview", h.preview)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/transition", h.transition)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the engine's error taxonomy onto HTTP codes: validation
// 400, not-found 404, conflict 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrGuestEmailRequired),
		errors.Is(err, pricing.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrProductNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrInsufficientStock),
		errors.Is(err, orders.ErrStockReservationFailed),
		errors.Is(err, orders.ErrInvalidStatusTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrdersHandler) preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q, err := h.Svc.Preview(ctx, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SessionID == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Create(ctx, orders.CreateInput{
		SessionID:  req.SessionID,
		UserID:     req.UserID,
		GuestEmail: req.GuestEmail,
		Shipping:   req.Shipping,
	}, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.OrderNumber,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			SessionID:   o.SessionID,
			TotalCents:  o.TotalCents,
		}),
	}
	h.ProducerCreate.Publish(orders.PartitionKey(o.SessionID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusCreated, toOrderResp(o))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(o))
}

// getOrderStatus serves from the Redis cache with a DB fallback.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Svc.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status, "order_number": o.OrderNumber})
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, restored, err := h.Svc.AdminTransition(ctx, id, orders.Status(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, o)
	if ev := transitionEvent(o, restored, h.Service, r.Header.Get("X-Request-Id")); ev != nil {
		p := h.ProducerCancel
		if ev.EventType == orders.EventOrderRefunded {
			p = h.ProducerRefund
		}
		p.Publish(orders.PartitionKey(o.SessionID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(ev.EventType)})
	}

	writeJSON(w, http.StatusOK, TransitionResp{Order: toOrderResp(o), StockRestored: restored})
}

// transitionEvent builds the outbound event for an admin transition that
// entered a terminal state. A refund is its own event type, not a cancel
// with a reason; non-terminal edges publish nothing.
func transitionEvent(o *orders.Order, stockRestored bool, service, traceID string) *orders.Envelope {
	if !orders.IsTerminal(o.Status) {
		return nil
	}
	ev := &orders.Envelope{
		EventID:       uuid.NewString(),
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      service,
		TraceID:       traceID,
		CorrelationID: o.OrderNumber,
	}
	if o.Status == orders.StatusRefunded {
		ev.EventType = orders.EventOrderRefunded
		ev.Payload = kafkax.MustMarshal(orders.OrderRefundedPayload{
			OrderID:       o.ID,
			OrderNumber:   o.OrderNumber,
			StockRestored: stockRestored,
		})
		return ev
	}
	ev.EventType = orders.EventOrderCancelled
	ev.Payload = kafkax.MustMarshal(orders.OrderCancelledPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Reason:      "ADMIN",
	})
	return ev
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		h.Log.Error("product listing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]any{"status": o.Status, "order_number": o.OrderNumber})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func toOrderResp(o *orders.Order) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{
			ProductID:      it.ProductID,
			Name:           it.Name,
			Brand:          it.Brand,
			Slug:           it.Slug,
			ImageURL:       it.ImageURL,
			VolumeML:       it.VolumeML,
			Qty:            it.Qty,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: it.LineTotalCents,
		})
	}
	return orderResp{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		SessionID:          o.SessionID,
		UserID:             o.UserID,
		GuestEmail:         o.GuestEmail,
		Shipping:           o.Shipping,
		SubtotalCents:      o.SubtotalCents,
		DiscountPercent:    o.DiscountPercent,
		DiscountCents:      o.DiscountCents,
		TotalCents:         o.TotalCents,
		FXRate:             o.FXRate,
		FXFeePercent:       o.FXFeePercent,
		SettlementCurrency: o.SettlementCurrency,
		SettlementTotal:    o.SettlementTotal,
		PaidAmount:         o.PaidAmount,
		PaymentRef:         o.PaymentRef,
		Status:             o.Status,
		Items:              items,
		CreatedAt:          o.CreatedAt,
		PaidAt:             o.PaidAt,
	}
}
