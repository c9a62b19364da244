// Package promo reads the active store-wide promotion from Redis. The engine
// consumes it as a pure {discountPercent} lookup.
package promo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/scentra/orders/internal/redisx"
)

type Source struct {
	Redis *redis.Client
}

type promoDoc struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// ActiveDiscount returns nil when no promotion is running. Unreadable or
// zero-percent documents count as no promotion.
func (s *Source) ActiveDiscount(ctx context.Context) (*decimal.Decimal, error) {
	raw, err := s.Redis.Get(ctx, redisx.KeyActivePromo).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	var doc promoDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, nil
	}
	if doc.DiscountPercent.IsZero() {
		return nil, nil
	}
	return &doc.DiscountPercent, nil
}
