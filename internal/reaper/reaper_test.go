package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type pendingOrder struct {
	id        int64
	createdAt time.Time
}

// fakeStore mimics the repository's SQL: listing filters PENDING rows by
// created_at < cutoff, cancelling flips the row unless something raced.
type fakeStore struct {
	pending   []pendingOrder
	cancelErr map[int64]error
	raced     map[int64]bool
	cancelled []int64
}

func (f *fakeStore) ListStalePending(_ context.Context, olderThan time.Time) ([]int64, error) {
	var ids []int64
	for _, o := range f.pending {
		if o.createdAt.Before(olderThan) {
			ids = append(ids, o.id)
		}
	}
	return ids, nil
}

func (f *fakeStore) CancelPending(_ context.Context, id int64) (bool, error) {
	if err := f.cancelErr[id]; err != nil {
		return false, err
	}
	if f.raced[id] {
		return false, nil
	}
	f.cancelled = append(f.cancelled, id)
	return true, nil
}

func newReaper(s Store, timeout time.Duration, now time.Time) *Reaper {
	return &Reaper{
		Store:   s,
		Timeout: timeout,
		Log:     zap.NewNop(),
		now:     func() time.Time { return now },
	}
}

func TestReapOnce_TimeoutBoundary(t *testing.T) {
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	timeout := 45 * time.Minute
	store := &fakeStore{pending: []pendingOrder{{id: 1, createdAt: created}}}

	// Invoked just before the timeout elapses: untouched.
	r := newReaper(store, timeout, created.Add(timeout-time.Second))
	res := r.ReapOnce(context.Background())
	assert.Equal(t, Result{}, res)
	assert.Empty(t, store.cancelled)

	// Invoked just after: cancelled.
	r = newReaper(store, timeout, created.Add(timeout+time.Second))
	res = r.ReapOnce(context.Background())
	assert.Equal(t, Result{Cancelled: 1}, res)
	assert.Equal(t, []int64{1}, store.cancelled)
}

func TestReapOnce_PartialFailureDoesNotStallSweep(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Hour)
	store := &fakeStore{
		pending: []pendingOrder{
			{id: 1, createdAt: old},
			{id: 2, createdAt: old},
			{id: 3, createdAt: old},
		},
		cancelErr: map[int64]error{2: errors.New("deadlock detected")},
	}

	r := newReaper(store, time.Hour, now)
	res := r.ReapOnce(context.Background())

	assert.Equal(t, Result{Cancelled: 2, Errors: 1}, res)
	assert.Equal(t, []int64{1, 3}, store.cancelled)
}

// An order that got paid between listing and cancelling is skipped without
// counting as either outcome.
func TestReapOnce_RacedOrderSkipped(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: []pendingOrder{{id: 7, createdAt: now.Add(-2 * time.Hour)}},
		raced:   map[int64]bool{7: true},
	}

	r := newReaper(store, time.Hour, now)
	res := r.ReapOnce(context.Background())
	assert.Equal(t, Result{}, res)
}

func TestReapOnce_FiresCallbackPerCancellation(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		pending: []pendingOrder{
			{id: 1, createdAt: now.Add(-2 * time.Hour)},
			{id: 2, createdAt: now.Add(-3 * time.Hour)},
		},
	}
	r := newReaper(store, time.Hour, now)
	var notified []int64
	r.OnCancelled = func(id int64) { notified = append(notified, id) }

	r.ReapOnce(context.Background())
	assert.Equal(t, []int64{1, 2}, notified)
}
