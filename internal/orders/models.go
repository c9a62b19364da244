package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string
	Name       string
	Brand      string
	Slug       string
	ImageURL   string
	VolumeML   int
	PriceCents int64
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Address is the shipping destination captured at checkout.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

type Order struct {
	ID          int64
	OrderNumber string
	SessionID   string
	UserID      *string
	GuestEmail  *string
	Shipping    Address

	// Financial snapshot, frozen at creation.
	SubtotalCents      int64
	DiscountPercent    *decimal.Decimal
	DiscountCents      int64
	TotalCents         int64
	FXRate             decimal.Decimal
	FXFeePercent       decimal.Decimal
	SettlementCurrency string
	SettlementTotal    decimal.Decimal

	// Set exactly once, by payment reconciliation.
	PaidAmount *decimal.Decimal
	PaymentRef *string
	PaidAt     *time.Time

	Status    Status
	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is an immutable snapshot of a cart line at order-creation time,
// denormalized so historical orders render even if the product changes.
type OrderItem struct {
	ID             int64
	OrderID        int64
	ProductID      string
	Name           string
	Brand          string
	Slug           string
	ImageURL       string
	VolumeML       int
	Qty            int
	UnitPriceCents int64
	LineTotalCents int64
}
