package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MarkPaidBySession transitions PENDING -> PAID, recording the captured
// amount and payment reference. Any non-PENDING order is returned unchanged
// with changed=false: that is the idempotency guarantee under redelivered
// notifications. Returns ErrOrderNotFound if no order carries the session id.
func (r *Repo) MarkPaidBySession(ctx context.Context, sessionID string, amount decimal.Decimal, paymentRef string) (*Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, status, err := lockBySession(ctx, tx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if status != StatusPending {
		_ = tx.Rollback(ctx)
		o, err := r.GetByID(ctx, id)
		return o, false, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, paid_amount=$3, payment_ref=$4, paid_at=now(), updated_at=now()
		WHERE id=$1`, id, StatusPaid, amount, paymentRef); err != nil {
		return nil, false, fmt.Errorf("mark paid: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	o, err := r.GetByID(ctx, id)
	return o, true, err
}

// CancelPendingBySession handles a session-expiry notification: a PENDING
// order is cancelled and its stock released; anything past PENDING is
// returned unchanged (expiry after payment must not cancel a paid order).
func (r *Repo) CancelPendingBySession(ctx context.Context, sessionID string) (*Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, status, err := lockBySession(ctx, tx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if status != StatusPending {
		_ = tx.Rollback(ctx)
		o, err := r.GetByID(ctx, id)
		return o, false, err
	}

	if err := cancelLockedTx(ctx, tx, id); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	o, err := r.GetByID(ctx, id)
	return o, true, err
}

// CancelPending is the reaper's per-order unit: cancel and release if the
// order is still PENDING, otherwise leave it alone.
func (r *Repo) CancelPending(ctx context.Context, orderID int64) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrOrderNotFound
		}
		return false, err
	}
	if Status(status) != StatusPending {
		return false, nil
	}
	if err := cancelLockedTx(ctx, tx, orderID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Transition executes an admin-requested edge from the transition table,
// releasing stock in the same transaction when the edge enters a terminal
// state. stockRestored tells the caller whether stock was actually credited
// back, so nothing gets double-credited.
func (r *Repo) Transition(ctx context.Context, orderID int64, to Status) (*Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrOrderNotFound
		}
		return nil, false, err
	}
	from := Status(raw)
	if !CanTransition(from, to) {
		return nil, false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}

	restored := false
	if ReleasesStock(from, to) {
		if err := releaseOrderItemsTx(ctx, tx, orderID); err != nil {
			return nil, false, err
		}
		restored = true
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, to); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	o, err := r.GetByID(ctx, orderID)
	return o, restored, err
}

// ListStalePending returns ids of PENDING orders created before the cutoff.
func (r *Repo) ListStalePending(ctx context.Context, olderThan time.Time) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id FROM orders WHERE status=$1 AND created_at < $2 ORDER BY id`,
		StatusPending, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func lockBySession(ctx context.Context, tx pgx.Tx, sessionID string) (int64, Status, error) {
	var id int64
	var status string
	err := tx.QueryRow(ctx, `SELECT id, status FROM orders WHERE session_id=$1 FOR UPDATE`, sessionID).
		Scan(&id, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", ErrOrderNotFound
		}
		return 0, "", err
	}
	return id, Status(status), nil
}

func cancelLockedTx(ctx context.Context, tx pgx.Tx, orderID int64) error {
	if err := releaseOrderItemsTx(ctx, tx, orderID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, StatusCancelled); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}
