package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scentra/orders/internal/pricing"
)

type Repo struct{ DB *pgxpool.Pool }

// CreateInput carries everything order creation needs besides the quote.
// The session id comes from the payment collaborator and is the idempotency
// key reconciliation locates the order by.
type CreateInput struct {
	SessionID  string
	UserID     *string
	GuestEmail *string
	Shipping   Address
}

const orderColumns = `id, order_number, session_id, user_id, guest_email, shipping,
       subtotal_cents, discount_percent, discount_cents, total_cents,
       fx_rate, fx_fee_percent, settlement_currency, settlement_total,
       paid_amount, payment_ref, status, created_at, paid_at, updated_at`

// CreateOrder inserts the order with a placeholder number, snapshots every
// item, reserves stock per item and finalizes the order number, all in one
// transaction. Any reservation shortfall rolls the whole unit back.
func (r *Repo) CreateOrder(ctx context.Context, in CreateInput, q *pricing.Quote) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ship, err := json.Marshal(in.Shipping)
	if err != nil {
		return nil, fmt.Errorf("encode shipping: %w", err)
	}

	var o Order
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(order_number, session_id, user_id, guest_email, shipping,
		                   subtotal_cents, discount_percent, discount_cents, total_cents,
		                   fx_rate, fx_fee_percent, settlement_currency, settlement_total, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,'PENDING')
		RETURNING id, created_at, updated_at
	`, placeholderNumber(), in.SessionID, in.UserID, in.GuestEmail, ship,
		q.SubtotalCents, q.DiscountPercent, q.DiscountCents, q.TotalCents,
		q.FXRate, q.FXFeePercent, q.SettlementCurrency, q.SettlementTotal,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range q.Items {
		var itemID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, name, brand, slug, image_url,
			                        volume_ml, qty, unit_price_cents, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING id
		`, o.ID, it.ProductID, it.Name, it.Brand, it.Slug, it.ImageURL,
			it.VolumeML, it.Qty, it.UnitPriceCents, it.LineTotalCents,
		).Scan(&itemID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		if err := reserveTx(ctx, tx, it.ProductID, it.Qty); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, OrderItem{
			ID:             itemID,
			OrderID:        o.ID,
			ProductID:      it.ProductID,
			Name:           it.Name,
			Brand:          it.Brand,
			Slug:           it.Slug,
			ImageURL:       it.ImageURL,
			VolumeML:       it.VolumeML,
			Qty:            it.Qty,
			UnitPriceCents: it.UnitPriceCents,
			LineTotalCents: it.LineTotalCents,
		})
	}

	// The number is derived from the id, which exists only after the insert.
	o.OrderNumber = FormatOrderNumber(o.ID, o.CreatedAt)
	if _, err := tx.Exec(ctx, `UPDATE orders SET order_number=$2 WHERE id=$1`, o.ID, o.OrderNumber); err != nil {
		return nil, fmt.Errorf("finalize order number: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.SessionID = in.SessionID
	o.UserID = in.UserID
	o.GuestEmail = in.GuestEmail
	o.Shipping = in.Shipping
	o.SubtotalCents = q.SubtotalCents
	o.DiscountPercent = q.DiscountPercent
	o.DiscountCents = q.DiscountCents
	o.TotalCents = q.TotalCents
	o.FXRate = q.FXRate
	o.FXFeePercent = q.FXFeePercent
	o.SettlementCurrency = q.SettlementCurrency
	o.SettlementTotal = q.SettlementTotal
	o.Status = StatusPending
	return &o, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Order, error) {
	return r.getOrder(ctx, `WHERE id=$1`, id)
}

func (r *Repo) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	return r.getOrder(ctx, `WHERE session_id=$1`, sessionID)
}

func (r *Repo) getOrder(ctx context.Context, where string, arg any) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var ship []byte
	var status string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.SessionID, &o.UserID, &o.GuestEmail, &ship,
		&o.SubtotalCents, &o.DiscountPercent, &o.DiscountCents, &o.TotalCents,
		&o.FXRate, &o.FXFeePercent, &o.SettlementCurrency, &o.SettlementTotal,
		&o.PaidAmount, &o.PaymentRef, &status, &o.CreatedAt, &o.PaidAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	if len(ship) > 0 {
		if err := json.Unmarshal(ship, &o.Shipping); err != nil {
			return nil, fmt.Errorf("decode shipping: %w", err)
		}
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, brand, slug, image_url,
		       volume_ml, qty, unit_price_cents, line_total_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Brand, &it.Slug,
			&it.ImageURL, &it.VolumeML, &it.Qty, &it.UnitPriceCents, &it.LineTotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// LoadProducts implements pricing.ProductSource; soft-deleted rows are
// invisible to the calculator.
func (r *Repo) LoadProducts(ctx context.Context, ids []string) ([]pricing.CatalogProduct, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, brand, slug, image_url, volume_ml, price_cents, stock
		FROM products WHERE deleted_at IS NULL AND id IN (`+strings.Join(params, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.CatalogProduct
	for rows.Next() {
		var p pricing.CatalogProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Slug, &p.ImageURL, &p.VolumeML, &p.PriceCents, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, brand, slug, image_url, volume_ml, price_cents, stock, created_at, updated_at
		FROM products WHERE deleted_at IS NULL ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Slug, &p.ImageURL, &p.VolumeML,
			&p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
