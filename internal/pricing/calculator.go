package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

var hundred = decimal.NewFromInt(100)

// LineInput is one requested cart line.
type LineInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// CatalogProduct is the current catalog row a quote is priced from.
type CatalogProduct struct {
	ID         string
	Name       string
	Brand      string
	Slug       string
	ImageURL   string
	VolumeML   int
	PriceCents int64
	Stock      int
}

// ItemSnapshot freezes a cart line at quote time; it becomes the OrderItem row.
type ItemSnapshot struct {
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

// Quote is the full pricing breakdown for a cart.
type Quote struct {
	Items              []ItemSnapshot   `json:"items"`
	SubtotalCents      int64            `json:"subtotal_cents"`
	DiscountPercent    *decimal.Decimal `json:"discount_percent,omitempty"`
	DiscountCents      int64            `json:"discount_cents"`
	TotalCents         int64            `json:"total_cents"`
	FXRate             decimal.Decimal  `json:"fx_rate"`
	FXFeePercent       decimal.Decimal  `json:"fx_fee_percent"`
	SettlementCurrency string           `json:"settlement_currency"`
	SettlementTotal    decimal.Decimal  `json:"settlement_total"`
}

// FXQuote is the rate lookup result for the settlement currency.
type FXQuote struct {
	Rate       decimal.Decimal
	FeePercent decimal.Decimal
}

// ProductSource loads current catalog rows by id, excluding soft-deleted products.
type ProductSource interface {
	LoadProducts(ctx context.Context, ids []string) ([]CatalogProduct, error)
}

// DiscountSource returns the active store-wide discount percent, nil when none.
type DiscountSource interface {
	ActiveDiscount(ctx context.Context) (*decimal.Decimal, error)
}

// RateSource returns the FX rate for a currency, nil when unavailable.
type RateSource interface {
	Rate(ctx context.Context, currency string) (*FXQuote, error)
}

// Calculator computes a deterministic quote from catalog state plus the
// promotion and FX collaborators. It has no side effects; calling it twice
// with unchanged inputs yields identical results.
type Calculator struct {
	Products  ProductSource
	Discounts DiscountSource
	Rates     RateSource

	SettlementCurrency string
	FallbackRate       decimal.Decimal
	FallbackFeePct     decimal.Decimal
	MaxQtyPerLine      int

	Log *zap.Logger
}

func (c *Calculator) Quote(ctx context.Context, lines []LineInput) (*Quote, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty cart", ErrInvalidQuantity)
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Qty < 1 || (c.MaxQtyPerLine > 0 && l.Qty > c.MaxQtyPerLine) {
			return nil, fmt.Errorf("%w: product %s qty %d", ErrInvalidQuantity, l.ProductID, l.Qty)
		}
		ids = append(ids, l.ProductID)
	}

	products, err := c.Products.LoadProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]CatalogProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// Both availability checks run before anything else looks at the cart.
	q := &Quote{Items: make([]ItemSnapshot, 0, len(lines))}
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}
		if p.Stock < l.Qty {
			return nil, fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, l.ProductID, p.Stock, l.Qty)
		}
		lineTotal := p.PriceCents * int64(l.Qty)
		q.Items = append(q.Items, ItemSnapshot{
			ProductID:      p.ID,
			Name:           p.Name,
			Brand:          p.Brand,
			Slug:           p.Slug,
			ImageURL:       p.ImageURL,
			VolumeML:       p.VolumeML,
			Qty:            l.Qty,
			UnitPriceCents: p.PriceCents,
			LineTotalCents: lineTotal,
		})
		q.SubtotalCents += lineTotal
	}

	pct, err := c.Discounts.ActiveDiscount(ctx)
	if err != nil {
		return nil, fmt.Errorf("discount lookup: %w", err)
	}
	if pct != nil {
		q.DiscountPercent = pct
		q.DiscountCents = decimal.NewFromInt(q.SubtotalCents).Mul(*pct).Div(hundred).Round(0).IntPart()
	}
	q.TotalCents = q.SubtotalCents - q.DiscountCents

	fx, err := c.Rates.Rate(ctx, c.SettlementCurrency)
	if err != nil {
		return nil, fmt.Errorf("rate lookup: %w", err)
	}
	if fx == nil {
		// Checkout never hard-fails on a stale-rate outage.
		if c.Log != nil {
			c.Log.Warn("fx rate unavailable, using fallback",
				zap.String("currency", c.SettlementCurrency),
				zap.String("fallback_rate", c.FallbackRate.String()))
		}
		fx = &FXQuote{Rate: c.FallbackRate, FeePercent: c.FallbackFeePct}
	}
	q.FXRate = fx.Rate
	q.FXFeePercent = fx.FeePercent
	q.SettlementCurrency = c.SettlementCurrency

	totalMajor := decimal.NewFromInt(q.TotalCents).Div(hundred)
	q.SettlementTotal = totalMajor.
		Div(fx.Rate).
		Mul(decimal.NewFromInt(1).Add(fx.FeePercent.Div(hundred))).
		Round(2)
	return q, nil
}
