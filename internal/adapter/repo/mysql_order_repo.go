package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// MySQLOrderRepo is the durable OrderStore. The orders table carries a unique
// index on idempotency_key; create-or-get is insert, catch the duplicate-key
// rejection, re-read. Status transitions are conditional UPDATEs checked via
// RowsAffected.
type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

const orderColumns = `id,owner_ref,items_json,shipping_json,payment_method,
items_price,tax_price,shipping_price,total_price,
is_paid,paid_at,payment_json,session_id,is_delivered,delivered_at,
idempotency_key,created_at`

func (r *MySQLOrderRepo) CreateOrGet(ctx context.Context, key string, build func() (*domain.Order, error)) (*domain.Order, bool, error) {
	if key == "" {
		return nil, false, usecase.ErrMissingIdempotencyKey
	}

	// Replay fast path before any pricing work.
	if o, err := r.getByKey(ctx, key); err == nil {
		return o, false, nil
	} else if !errors.Is(err, usecase.ErrOrderNotFound) {
		return nil, false, err
	}

	o, err := build()
	if err != nil {
		return nil, false, err
	}
	o.IdempotencyKey = key

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return nil, false, fmt.Errorf("marshal items: %w", err)
	}
	shipJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return nil, false, fmt.Errorf("marshal shipping address: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO orders (id,owner_ref,items_json,shipping_json,payment_method,
items_price,tax_price,shipping_price,total_price,
is_paid,is_delivered,idempotency_key,created_at)
VALUES (?,?,?,?,?,?,?,?,?,0,0,?,?)`,
		o.ID, o.OwnerRef, itemsJSON, shipJSON, o.PaymentMethod,
		o.ItemsPrice.StringFixed(2), o.TaxPrice.StringFixed(2),
		o.ShippingPrice.StringFixed(2), o.TotalPrice.StringFixed(2),
		o.IdempotencyKey, o.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			// Lost the race: another writer committed this key first.
			existing, readErr := r.getByKey(ctx, key)
			if readErr != nil {
				return nil, false, readErr
			}
			return existing, false, nil
		}
		return nil, false, wrapDBErr(err)
	}
	return o, true, nil
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) getByKey(ctx context.Context, key string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE idempotency_key=?`, key)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE session_id=?`, sessionID)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) MarkPaid(ctx context.Context, id string, res domain.PaymentResult, paidAt time.Time) (*domain.Order, bool, error) {
	payJSON, err := json.Marshal(res)
	if err != nil {
		return nil, false, fmt.Errorf("marshal payment result: %w", err)
	}

	// Guarded transition: applies only while unpaid, concurrent retries see
	// rows=0 and fall through to a plain read.
	out, err := r.db.ExecContext(ctx, `
UPDATE orders
SET is_paid=1, paid_at=?, payment_json=?, session_id=?
WHERE id=? AND is_paid=0`,
		paidAt, payJSON, res.SessionID, id)
	if err != nil {
		return nil, false, wrapDBErr(err)
	}
	rows, err := out.RowsAffected()
	if err != nil {
		return nil, false, wrapDBErr(err)
	}

	o, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return o, rows > 0, nil
}

func (r *MySQLOrderRepo) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (*domain.Order, error) {
	_, err := r.db.ExecContext(ctx, `
UPDATE orders
SET is_delivered=1, delivered_at=?
WHERE id=? AND is_delivered=0`,
		deliveredAt, id)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return r.GetByID(ctx, id)
}

func (r *MySQLOrderRepo) ListByOwner(ctx context.Context, ownerRef string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE owner_ref=? ORDER BY created_at DESC`, ownerRef)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return collectOrders(rows)
}

func (r *MySQLOrderRepo) ListAll(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return collectOrders(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                           domain.Order
		itemsJSON, shipJSON         []byte
		payJSON                     sql.NullString
		sessionID                   sql.NullString
		items, tax, shipping, total string
		paidAt, deliveredAt         sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OwnerRef, &itemsJSON, &shipJSON, &o.PaymentMethod,
		&items, &tax, &shipping, &total,
		&o.IsPaid, &paidAt, &payJSON, &sessionID, &o.IsDelivered, &deliveredAt,
		&o.IdempotencyKey, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrOrderNotFound
	}
	if err != nil {
		return nil, wrapDBErr(err)
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(shipJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if payJSON.Valid && payJSON.String != "" {
		var pr domain.PaymentResult
		if err := json.Unmarshal([]byte(payJSON.String), &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		o.PaymentResult = &pr
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}

	for dst, src := range map[*decimal.Decimal]string{
		&o.ItemsPrice: items, &o.TaxPrice: tax,
		&o.ShippingPrice: shipping, &o.TotalPrice: total,
	} {
		d, err := decimal.NewFromString(src)
		if err != nil {
			return nil, fmt.Errorf("parse price column: %w", err)
		}
		*dst = d
	}
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	defer rows.Close()
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(err)
	}
	return out, nil
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// wrapDBErr maps timeouts and cancellations to the retryable taxonomy so
// callers can safely re-submit with the same idempotency key.
func wrapDBErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", usecase.ErrUpstreamUnavailable, err)
	}
	return err
}

var _ usecase.OrderStore = (*MySQLOrderRepo)(nil)
