package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kigalimart/storefront/internal/catalog"
	"github.com/kigalimart/storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, number, external_id, user_id, status, subtotal, delivery_fee, total,
	payment_status, payment_provider, payment_ref, refund_status, refund_amount,
	address, phone, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.ExternalID, &o.UserID, &o.Status, &o.Subtotal, &o.DeliveryFee, &o.Total,
		&o.PaymentStatus, &o.PaymentProvider, &o.PaymentRef, &o.RefundStatus, &o.RefundAmount,
		&o.Address, &o.Phone, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create is idempotent on ExternalID: an existing order is returned with
// existed=true. Stock rows are locked (FOR UPDATE) and decremented in the
// same transaction as the insert; any shortage rolls everything back.
// Locks are taken in ref order so concurrent orders cannot deadlock.
func (r *Repo) Create(ctx context.Context, o Order, lines []LineInput, fee func(int64) int64) (Order, bool, error) {
	if existing, err := r.byExternalID(ctx, o.ExternalID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines = append([]LineInput(nil), lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].Ref().Less(lines[j].Ref()) })

	rows := make(map[catalog.LineRef]StockRow, len(lines))
	for _, l := range lines {
		if !l.Ref().Valid() {
			// priced as unavailable below
			continue
		}
		row, err := lockStock(ctx, tx, l.Ref())
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return Order{}, false, err
		}
		rows[l.Ref()] = row
	}

	items, subtotal, err := PriceLines(o.ID, lines, rows)
	if err != nil {
		return Order{}, false, err
	}
	o.Items = items
	o.Subtotal = subtotal
	o.DeliveryFee = fee(subtotal)
	o.Total = o.Subtotal + o.DeliveryFee

	for _, it := range items {
		if err := adjustStock(ctx, tx, it.Ref(), -it.Qty); err != nil {
			return Order{}, false, err
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, number, external_id, user_id, status, subtotal, delivery_fee, total,
			payment_status, refund_status, address, phone, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		o.ID, o.Number, o.ExternalID, o.UserID, o.Status, o.Subtotal, o.DeliveryFee, o.Total,
		o.PaymentStatus, o.RefundStatus, o.Address, o.Phone, o.Notes).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			// lost a race on external_id
			_ = tx.Rollback(ctx)
			existing, gerr := r.byExternalID(ctx, o.ExternalID)
			if gerr != nil {
				return Order{}, false, gerr
			}
			return existing, true, nil
		}
		return Order{}, false, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, variation_id, name, qty, unit_price, line_total, refund_state)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, o.ID, it.ProductID, nullable(it.VariationID), it.Name, it.Qty, it.UnitPrice, it.LineTotal, it.RefundState); err != nil {
			return Order{}, false, err
		}
	}
	if err := insertHistory(ctx, tx, o.ID, "", o.Status, o.UserID); err != nil {
		return Order{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

func lockStock(ctx context.Context, tx pgx.Tx, ref catalog.LineRef) (StockRow, error) {
	var row StockRow
	if ref.VariationID == "" {
		err := tx.QueryRow(ctx, `SELECT name, price, stock, active FROM products WHERE id=$1 FOR UPDATE`, ref.ProductID).
			Scan(&row.Name, &row.Price, &row.Stock, &row.Active)
		return row, err
	}
	var base, vprice int64
	var sku string
	err := tx.QueryRow(ctx, `
		SELECT p.name, v.sku, p.price, v.price, v.stock, p.active
		FROM product_variations v JOIN products p ON p.id = v.product_id
		WHERE v.id=$1 AND v.product_id=$2
		FOR UPDATE OF v`, ref.VariationID, ref.ProductID).
		Scan(&row.Name, &sku, &base, &vprice, &row.Stock, &row.Active)
	row.Price = catalog.EffectivePrice(base, vprice)
	row.Name = fmt.Sprintf("%s (%s)", row.Name, sku)
	return row, err
}

// adjustStock adds delta (negative to take) and refuses to go below zero.
func adjustStock(ctx context.Context, tx pgx.Tx, ref catalog.LineRef, delta int) error {
	var sql string
	args := []any{delta}
	if ref.VariationID == "" {
		sql = `UPDATE products SET stock = stock + $1, updated_at = now() WHERE id=$2 AND stock + $1 >= 0`
		args = append(args, ref.ProductID)
	} else {
		sql = `UPDATE product_variations SET stock = stock + $1 WHERE id=$2 AND stock + $1 >= 0`
		args = append(args, ref.VariationID)
	}
	ct, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, ref.ProductID)
	}
	return nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID string, from, to Status, actorID string) error {
	_, err := tx.Exec(ctx, `INSERT INTO order_status_history(order_id, from_status, to_status, actor_id) VALUES ($1,$2,$3,$4)`,
		orderID, from, to, actorID)
	return err
}

func (r *Repo) byExternalID(ctx context.Context, externalID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return o, err
	}
	o.Items, err = r.items(ctx, r.DB, o.ID)
	return o, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) items(ctx context.Context, q querier, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variation_id, name, qty, unit_price, line_total,
			refund_state, refund_qty, refund_requested_qty, refund_reason
		FROM order_items WHERE order_id=$1 ORDER BY name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var it Item
		var vid *string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &vid, &it.Name, &it.Qty, &it.UnitPrice, &it.LineTotal,
			&it.RefundState, &it.RefundQty, &it.RequestedQty, &it.RefundReason); err != nil {
			return nil, err
		}
		if vid != nil {
			it.VariationID = *vid
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return o, err
	}
	o.Items, err = r.items(ctx, r.DB, id)
	return o, err
}

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, f.UserID, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves the order only if it is still in from. With restock
// every item quantity goes back to the catalog.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status, actorID string, restock bool) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	if restock {
		items, err := r.items(ctx, tx, id)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := adjustStock(ctx, tx, it.Ref(), it.Qty); err != nil {
				return err
			}
		}
	}
	if err := insertHistory(ctx, tx, id, from, to, actorID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) LinkPayment(ctx context.Context, id, provider, ref string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status='paid', payment_provider=$2, payment_ref=$3, updated_at=now()
		WHERE id=$1 AND payment_status='unpaid'`, id, provider, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// SetItemRefund moves one item between refund states, guarded on from.
// qty is the open request; units already refunded are left alone.
func (r *Repo) SetItemRefund(ctx context.Context, orderID, itemID string, from, to RefundState, qty int, reason string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE order_items SET refund_state=$4, refund_requested_qty=$5, refund_reason=$6
		WHERE order_id=$1 AND id=$2 AND refund_state=$3 AND refund_qty + $5 <= qty`, orderID, itemID, from, to, qty, reason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConflict
	}
	if _, err := r.syncRefundStatus(ctx, tx, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CompleteItemRefund books the approved request into the refunded units,
// adds its amount to the order and, once every item is fully refunded,
// moves the order to refunded.
func (r *Repo) CompleteItemRefund(ctx context.Context, orderID, itemID, actorID string, restock bool) (amount int64, finalized bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrNotFound
		}
		return 0, false, err
	}

	var it Item
	var vid *string
	err = tx.QueryRow(ctx, `
		SELECT product_id, variation_id, refund_requested_qty, unit_price
		FROM order_items
		WHERE order_id=$1 AND id=$2 AND refund_state='approved'
		FOR UPDATE`, orderID, itemID).
		Scan(&it.ProductID, &vid, &it.RequestedQty, &it.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrConflict
	}
	if err != nil {
		return 0, false, err
	}
	if vid != nil {
		it.VariationID = *vid
	}
	if _, err := tx.Exec(ctx, `
		UPDATE order_items SET refund_state='refunded',
			refund_qty = refund_qty + refund_requested_qty, refund_requested_qty = 0
		WHERE id=$1`, itemID); err != nil {
		return 0, false, err
	}
	amount = it.UnitPrice * int64(it.RequestedQty)

	if _, err := tx.Exec(ctx, `UPDATE orders SET refund_amount = refund_amount + $2, updated_at=now() WHERE id=$1`, orderID, amount); err != nil {
		return 0, false, err
	}
	if restock {
		if err := adjustStock(ctx, tx, it.Ref(), it.RequestedQty); err != nil {
			return 0, false, err
		}
	}

	summary, err := r.syncRefundStatus(ctx, tx, orderID)
	if err != nil {
		return 0, false, err
	}
	if summary == RefundSummaryFull && CanTransition(status, StatusRefunded) {
		if _, err := tx.Exec(ctx, `
			UPDATE orders SET status='refunded',
				payment_status = CASE WHEN payment_status='paid' THEN 'refunded' ELSE payment_status END,
				updated_at=now()
			WHERE id=$1`, orderID); err != nil {
			return 0, false, err
		}
		if err := insertHistory(ctx, tx, orderID, status, StatusRefunded, actorID); err != nil {
			return 0, false, err
		}
		finalized = true
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, err
	}
	return amount, finalized, nil
}

func (r *Repo) syncRefundStatus(ctx context.Context, tx pgx.Tx, orderID string) (string, error) {
	items, err := r.items(ctx, tx, orderID)
	if err != nil {
		return "", err
	}
	summary := SummarizeRefunds(items)
	if _, err := tx.Exec(ctx, `UPDATE orders SET refund_status=$2, updated_at=now() WHERE id=$1`, orderID, summary); err != nil {
		return "", err
	}
	return summary, nil
}
