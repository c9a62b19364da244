package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// reserveTx decrements stock only if enough remains, as a single conditional
// update. Zero rows affected means a concurrent reservation won the race (or
// the product vanished); the caller must abort its whole transaction. A
// read-then-write here would oversell under concurrent checkouts.
func reserveTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	ct, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %s qty %d", ErrStockReservationFailed, productID, qty)
	}
	return nil
}

// releaseTx returns previously reserved quantity to stock. Unconditional:
// released quantities always correspond to quantities this order reserved.
func releaseTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	if _, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}

// releaseOrderItemsTx releases every line of the order inside the caller's
// transaction.
func releaseOrderItemsTx(ctx context.Context, tx pgx.Tx, orderID int64) error {
	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return err
	}
	type line struct {
		pid string
		qty int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.pid, &l.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, l := range lines {
		if err := releaseTx(ctx, tx, l.pid, l.qty); err != nil {
			return err
		}
	}
	return nil
}
