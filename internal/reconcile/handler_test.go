package reconcile

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scentra/orders/internal/orders"
)

type mockStore struct {
	paidOrder   *orders.Order
	paidChanged bool
	paidErr     error
	paidCalls   int
	gotAmount   decimal.Decimal
	gotRef      string

	cancelOrder   *orders.Order
	cancelChanged bool
	cancelErr     error
	cancelCalls   int
}

func (m *mockStore) MarkPaidBySession(_ context.Context, _ string, amount decimal.Decimal, ref string) (*orders.Order, bool, error) {
	m.paidCalls++
	m.gotAmount = amount
	m.gotRef = ref
	return m.paidOrder, m.paidChanged, m.paidErr
}

func (m *mockStore) CancelPendingBySession(_ context.Context, _ string) (*orders.Order, bool, error) {
	m.cancelCalls++
	return m.cancelOrder, m.cancelChanged, m.cancelErr
}

func newHandler(s *mockStore) *Handler {
	return &Handler{Store: s, Log: zap.NewNop()}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestHandle_Confirmed(t *testing.T) {
	store := &mockStore{
		paidOrder:   &orders.Order{ID: 1, Status: orders.StatusPaid},
		paidChanged: true,
	}
	h := newHandler(store)

	out, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifConfirmed, SessionID: "cs_1", Amount: decPtr("204.00"), PaymentRef: "pi_123",
	})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, orders.StatusPaid, out.Order.Status)
	assert.True(t, store.gotAmount.Equal(dec("204.00")))
	assert.Equal(t, "pi_123", store.gotRef)
}

// A redelivered confirmation is success, not an error, and the order state
// does not change past the first application.
func TestHandle_ConfirmedDuplicateIsNoOp(t *testing.T) {
	store := &mockStore{
		paidOrder:   &orders.Order{ID: 1, Status: orders.StatusPaid},
		paidChanged: false,
	}
	h := newHandler(store)

	n := orders.PaymentNotification{Type: orders.NotifConfirmed, SessionID: "cs_1", Amount: decPtr("204.00")}
	out, err := h.Handle(context.Background(), n)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, orders.StatusPaid, out.Order.Status)
}

func TestHandle_ConfirmedUnknownSessionIsError(t *testing.T) {
	store := &mockStore{paidErr: orders.ErrOrderNotFound}
	h := newHandler(store)

	_, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifConfirmed, SessionID: "cs_missing",
	})
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestHandle_ExpiredCancelsPending(t *testing.T) {
	store := &mockStore{
		cancelOrder:   &orders.Order{ID: 2, Status: orders.StatusCancelled},
		cancelChanged: true,
	}
	h := newHandler(store)

	out, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifExpired, SessionID: "cs_2",
	})
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, orders.StatusCancelled, out.Order.Status)
}

// Expiry arriving after payment landed must not cancel the paid order.
func TestHandle_ExpiredAfterPaidUnchanged(t *testing.T) {
	store := &mockStore{
		cancelOrder:   &orders.Order{ID: 2, Status: orders.StatusPaid},
		cancelChanged: false,
	}
	h := newHandler(store)

	out, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifExpired, SessionID: "cs_2",
	})
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, orders.StatusPaid, out.Order.Status)
}

func TestHandle_ExpiredUnknownSessionIsNoOp(t *testing.T) {
	store := &mockStore{cancelErr: orders.ErrOrderNotFound}
	h := newHandler(store)

	out, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifExpired, SessionID: "cs_gone",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Order)
	assert.False(t, out.Changed)
}

func TestHandle_FailedIsObservabilityOnly(t *testing.T) {
	store := &mockStore{}
	h := newHandler(store)

	out, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifFailed, SessionID: "cs_3",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Order)
	assert.Zero(t, store.paidCalls)
	assert.Zero(t, store.cancelCalls)
}

func TestHandle_UnknownTypeIgnored(t *testing.T) {
	store := &mockStore{}
	h := newHandler(store)

	out, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: "checkout.session.async_payment_started", SessionID: "cs_4",
	})
	require.NoError(t, err)
	assert.Nil(t, out.Order)
	assert.Zero(t, store.paidCalls)
	assert.Zero(t, store.cancelCalls)
}

func TestHandle_ConfirmedWithoutAmountRecordsZero(t *testing.T) {
	store := &mockStore{
		paidOrder:   &orders.Order{ID: 1, Status: orders.StatusPaid},
		paidChanged: true,
	}
	h := newHandler(store)

	_, err := h.Handle(context.Background(), orders.PaymentNotification{
		Type: orders.NotifConfirmed, SessionID: "cs_1",
	})
	require.NoError(t, err)
	assert.True(t, store.gotAmount.IsZero())
}
