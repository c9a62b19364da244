// Package reconcile advances orders in response to provider payment
// notifications. The channel is at-least-once and unordered, so every path
// is idempotent: duplicates and late arrivals are answered with the current
// order state, never an error.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scentra/orders/internal/orders"
)

// Store is the slice of the order repository reconciliation needs.
type Store interface {
	MarkPaidBySession(ctx context.Context, sessionID string, amount decimal.Decimal, paymentRef string) (*orders.Order, bool, error)
	CancelPendingBySession(ctx context.Context, sessionID string) (*orders.Order, bool, error)
}

type Handler struct {
	Store Store
	Log   *zap.Logger
}

// Outcome reports what a notification did. Order is nil for pure no-ops
// (failed, unknown type, expiry for an unknown session); Changed is false
// whenever the notification was absorbed without a transition.
type Outcome struct {
	Order   *orders.Order
	Changed bool
}

func (h *Handler) Handle(ctx context.Context, n orders.PaymentNotification) (Outcome, error) {
	switch n.Type {
	case orders.NotifConfirmed:
		return h.confirmed(ctx, n)
	case orders.NotifExpired:
		return h.expired(ctx, n)
	case orders.NotifFailed:
		// Observability only; the shopper may retry on the same session.
		h.Log.Info("payment attempt failed", zap.String("session_id", n.SessionID))
		return Outcome{}, nil
	default:
		// Unrecognized provider event types are accepted and ignored.
		h.Log.Debug("ignoring unrecognized notification type",
			zap.String("type", n.Type), zap.String("session_id", n.SessionID))
		return Outcome{}, nil
	}
}

func (h *Handler) confirmed(ctx context.Context, n orders.PaymentNotification) (Outcome, error) {
	amount := decimal.Zero
	if n.Amount != nil {
		amount = *n.Amount
	}
	o, changed, err := h.Store.MarkPaidBySession(ctx, n.SessionID, amount, n.PaymentRef)
	if err != nil {
		// The session id is only handed out after the order exists, so a
		// missing order is surfaced, not swallowed.
		return Outcome{}, fmt.Errorf("confirm session %s: %w", n.SessionID, err)
	}
	if !changed {
		h.Log.Info("duplicate payment confirmation absorbed",
			zap.String("session_id", n.SessionID), zap.String("status", string(o.Status)))
		return Outcome{Order: o}, nil
	}
	h.Log.Info("order paid",
		zap.Int64("order_id", o.ID),
		zap.String("session_id", n.SessionID),
		zap.String("payment_ref", n.PaymentRef))
	return Outcome{Order: o, Changed: true}, nil
}

func (h *Handler) expired(ctx context.Context, n orders.PaymentNotification) (Outcome, error) {
	o, changed, err := h.Store.CancelPendingBySession(ctx, n.SessionID)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			// Rare ordering or already cleaned up; nothing to do.
			h.Log.Info("expiry for unknown session ignored", zap.String("session_id", n.SessionID))
			return Outcome{}, nil
		}
		return Outcome{}, fmt.Errorf("expire session %s: %w", n.SessionID, err)
	}
	if !changed {
		// Expiry after payment landed must not cancel a paid order.
		h.Log.Info("expiry absorbed, order already past pending",
			zap.String("session_id", n.SessionID), zap.String("status", string(o.Status)))
		return Outcome{Order: o}, nil
	}
	h.Log.Info("order cancelled on session expiry",
		zap.Int64("order_id", o.ID), zap.String("session_id", n.SessionID))
	return Outcome{Order: o, Changed: true}, nil
}
