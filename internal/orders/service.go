package orders

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scentra/orders/internal/pricing"
)

// Store is the persistence seam the service drives.
type Store interface {
	CreateOrder(ctx context.Context, in CreateInput, q *pricing.Quote) (*Order, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	Transition(ctx context.Context, orderID int64, to Status) (*Order, bool, error)
}

// Pricer produces the authoritative quote; see pricing.Calculator.
type Pricer interface {
	Quote(ctx context.Context, lines []pricing.LineInput) (*pricing.Quote, error)
}

type Service struct {
	Store  Store
	Pricer Pricer
	Log    *zap.Logger
}

// Preview prices a cart without side effects. The caller uses it to open a
// payment session; Create re-runs the same calculation and its result wins.
func (s *Service) Preview(ctx context.Context, lines []pricing.LineInput) (*pricing.Quote, error) {
	return s.Pricer.Quote(ctx, lines)
}

// Create validates ownership, re-prices the cart and persists the order with
// its reservations in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput, lines []pricing.LineInput) (*Order, error) {
	if !present(in.UserID) && !present(in.GuestEmail) {
		return nil, ErrGuestEmailRequired
	}
	if present(in.UserID) {
		// Registered checkout wins; the row keeps exactly one owner.
		in.GuestEmail = nil
	}

	q, err := s.Pricer.Quote(ctx, lines)
	if err != nil {
		return nil, err
	}
	o, err := s.Store.CreateOrder(ctx, in, q)
	if err != nil {
		return nil, err
	}
	s.Log.Info("order created",
		zap.Int64("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("session_id", o.SessionID),
		zap.Int64("total_cents", o.TotalCents))
	return o, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.Store.GetByID(ctx, id)
}

// AdminTransition moves an order along the transition table and reports
// whether stock was credited back.
func (s *Service) AdminTransition(ctx context.Context, orderID int64, to Status) (*Order, bool, error) {
	if !Valid(to) {
		return nil, false, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, to)
	}
	o, restored, err := s.Store.Transition(ctx, orderID, to)
	if err != nil {
		return nil, false, err
	}
	s.Log.Info("order transitioned",
		zap.Int64("order_id", orderID),
		zap.String("to", string(to)),
		zap.Bool("stock_restored", restored))
	return o, restored, nil
}

func present(s *string) bool { return s != nil && *s != "" }
