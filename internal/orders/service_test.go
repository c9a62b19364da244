package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scentra/orders/internal/pricing"
)

type mockStore struct {
	createIn    *CreateInput
	createQuote *pricing.Quote
	createOut   *Order
	createErr   error

	transitionTo  Status
	transitionOut *Order
	restored      bool
	transitionErr error
}

func (m *mockStore) CreateOrder(_ context.Context, in CreateInput, q *pricing.Quote) (*Order, error) {
	m.createIn = &in
	m.createQuote = q
	return m.createOut, m.createErr
}

func (m *mockStore) GetByID(_ context.Context, id int64) (*Order, error) {
	return &Order{ID: id}, nil
}

func (m *mockStore) Transition(_ context.Context, _ int64, to Status) (*Order, bool, error) {
	m.transitionTo = to
	return m.transitionOut, m.restored, m.transitionErr
}

type mockPricer struct {
	quote *pricing.Quote
	err   error
	calls int
}

func (m *mockPricer) Quote(_ context.Context, _ []pricing.LineInput) (*pricing.Quote, error) {
	m.calls++
	return m.quote, m.err
}

func strPtr(s string) *string { return &s }

func TestCreate_RequiresOwner(t *testing.T) {
	store := &mockStore{}
	pricer := &mockPricer{}
	svc := &Service{Store: store, Pricer: pricer, Log: zap.NewNop()}

	_, err := svc.Create(context.Background(), CreateInput{SessionID: "cs_1"}, []pricing.LineInput{{ProductID: "p1", Qty: 1}})
	require.ErrorIs(t, err, ErrGuestEmailRequired)

	// Rejected before pricing or persistence was touched.
	assert.Zero(t, pricer.calls)
	assert.Nil(t, store.createIn)
}

func TestCreate_EmptyOwnerFieldsRejected(t *testing.T) {
	svc := &Service{Store: &mockStore{}, Pricer: &mockPricer{}, Log: zap.NewNop()}
	_, err := svc.Create(context.Background(),
		CreateInput{SessionID: "cs_1", UserID: strPtr(""), GuestEmail: strPtr("")}, nil)
	require.ErrorIs(t, err, ErrGuestEmailRequired)
}

func TestCreate_RepricesAndPersists(t *testing.T) {
	q := &pricing.Quote{SubtotalCents: 1000, TotalCents: 1000}
	store := &mockStore{createOut: &Order{ID: 9, OrderNumber: "ORD-20260101-000009", SessionID: "cs_1", Status: StatusPending}}
	pricer := &mockPricer{quote: q}
	svc := &Service{Store: store, Pricer: pricer, Log: zap.NewNop()}

	o, err := svc.Create(context.Background(),
		CreateInput{SessionID: "cs_1", GuestEmail: strPtr("g@example.com")},
		[]pricing.LineInput{{ProductID: "p1", Qty: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(9), o.ID)
	assert.Equal(t, 1, pricer.calls, "create runs its own authoritative quote")
	assert.Same(t, q, store.createQuote)
}

func TestCreate_RegisteredCheckoutDropsGuestEmail(t *testing.T) {
	store := &mockStore{createOut: &Order{ID: 1}}
	svc := &Service{Store: store, Pricer: &mockPricer{quote: &pricing.Quote{}}, Log: zap.NewNop()}

	_, err := svc.Create(context.Background(),
		CreateInput{SessionID: "cs_1", UserID: strPtr("u1"), GuestEmail: strPtr("g@example.com")}, nil)
	require.NoError(t, err)
	assert.Nil(t, store.createIn.GuestEmail, "exactly one owner must be persisted")
	assert.Equal(t, "u1", *store.createIn.UserID)
}

func TestCreate_PricingErrorStopsCreation(t *testing.T) {
	store := &mockStore{}
	pricer := &mockPricer{err: pricing.ErrInsufficientStock}
	svc := &Service{Store: store, Pricer: pricer, Log: zap.NewNop()}

	_, err := svc.Create(context.Background(),
		CreateInput{SessionID: "cs_1", GuestEmail: strPtr("g@example.com")},
		[]pricing.LineInput{{ProductID: "p1", Qty: 2}})
	require.ErrorIs(t, err, pricing.ErrInsufficientStock)
	assert.Nil(t, store.createIn)
}

func TestAdminTransition_UnknownStatus(t *testing.T) {
	svc := &Service{Store: &mockStore{}, Pricer: &mockPricer{}, Log: zap.NewNop()}
	_, _, err := svc.AdminTransition(context.Background(), 1, Status("SHIPPED_BACK"))
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestAdminTransition_ReportsStockRestored(t *testing.T) {
	store := &mockStore{transitionOut: &Order{ID: 3, Status: StatusCancelled}, restored: true}
	svc := &Service{Store: store, Pricer: &mockPricer{}, Log: zap.NewNop()}

	o, restored, err := svc.AdminTransition(context.Background(), 3, StatusCancelled)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, StatusCancelled, store.transitionTo)
}
