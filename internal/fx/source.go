// Package fx reads the FX rate the rate-ingestion job maintains in Redis.
// The engine consumes it as a pure {rate, feePercent} lookup.
package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/scentra/orders/internal/pricing"
	"github.com/scentra/orders/internal/redisx"
)

type Source struct {
	Redis *redis.Client
}

type rateDoc struct {
	Rate       decimal.Decimal `json:"rate"`
	FeePercent decimal.Decimal `json:"fee_percent"`
}

// Rate returns nil (not an error) when no rate is published, so the caller
// can apply its fallback.
func (s *Source) Rate(ctx context.Context, currency string) (*pricing.FXQuote, error) {
	raw, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeyFXRate, currency)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		// A Redis outage is the same stale-rate outage as a missing key.
		return nil, nil
	}
	var doc rateDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, nil
	}
	if doc.Rate.IsZero() {
		return nil, nil
	}
	return &pricing.FXQuote{Rate: doc.Rate, FeePercent: doc.FeePercent}, nil
}
