// Package reaper cancels orders stuck in PENDING past the notification
// window, releasing their reserved stock. It is the timeout mechanism for
// sessions the provider never reports on; the timeout exceeds the provider's
// own session expiry so the provider's notification gets priority.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the slice of the order repository the sweep needs.
type Store interface {
	ListStalePending(ctx context.Context, olderThan time.Time) ([]int64, error)
	CancelPending(ctx context.Context, orderID int64) (bool, error)
}

type Result struct {
	Cancelled int
	Errors    int
}

type Reaper struct {
	Store    Store
	Timeout  time.Duration
	Interval time.Duration
	Log      *zap.Logger

	// OnCancelled, when set, runs after each successful cancellation commit
	// (domain event publication); it can never fail the sweep.
	OnCancelled func(orderID int64)

	now func() time.Time
}

func (r *Reaper) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// ReapOnce runs a single sweep. Orders are processed independently: one bad
// row is counted and skipped, never aborting the batch.
func (r *Reaper) ReapOnce(ctx context.Context) Result {
	cutoff := r.clock().Add(-r.Timeout)
	ids, err := r.Store.ListStalePending(ctx, cutoff)
	if err != nil {
		r.Log.Error("stale order listing failed", zap.Error(err))
		return Result{Errors: 1}
	}

	var res Result
	for _, id := range ids {
		cancelled, err := r.Store.CancelPending(ctx, id)
		if err != nil {
			res.Errors++
			r.Log.Error("stale order cancellation failed", zap.Int64("order_id", id), zap.Error(err))
			continue
		}
		if !cancelled {
			// Raced a payment confirmation between list and cancel.
			continue
		}
		res.Cancelled++
		r.Log.Info("stale order cancelled", zap.Int64("order_id", id))
		if r.OnCancelled != nil {
			r.OnCancelled(id)
		}
	}
	if res.Cancelled > 0 || res.Errors > 0 {
		r.Log.Info("reap sweep finished",
			zap.Int("cancelled", res.Cancelled), zap.Int("errors", res.Errors))
	}
	return res
}

// Run sweeps on the configured interval until the context ends.
func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.ReapOnce(ctx)
		}
	}
}
