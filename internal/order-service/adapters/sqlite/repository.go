// Package sqlite is the embedded implementation of ports.OrderRepository.
//
// Money columns are TEXT holding exact decimal strings; SQLite has no fixed
// point type and REAL would lose cents. Every write that touches lines
// recomputes the header total inside the same transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"

	_ "modernc.org/sqlite"
)

var _ ports.OrderRepository = (*Repository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    status            TEXT NOT NULL,
    payment_method    TEXT NOT NULL DEFAULT '',
    shipping_address  TEXT NOT NULL DEFAULT '',
    total             TEXT NOT NULL DEFAULT '0',
    created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at);

CREATE TABLE IF NOT EXISTS order_lines (
    id          TEXT PRIMARY KEY,
    order_id    TEXT NOT NULL REFERENCES orders(id),
    position    INTEGER NOT NULL,
    item_id     TEXT NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity >= 1),
    unit_price  TEXT NOT NULL,
    subtotal    TEXT NOT NULL,
    tax         TEXT NOT NULL,
    license_id  TEXT
);

CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id, position);
`

// timeLayout is fixed width so TEXT comparison orders rows by time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// One writer keeps transactions serialised without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateOrder writes the header as DRAFT with a zero total, inserts the
// lines, recomputes the total and flips the status to PLACED in a single
// transaction. order is updated in place with ids, total and status.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	var total decimal.Decimal
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		const insertHeader = `
			INSERT INTO orders (id, user_id, status, payment_method, shipping_address, total, created_at)
			VALUES (?, ?, ?, ?, ?, '0', ?)`
		if _, err := tx.ExecContext(ctx, insertHeader,
			order.ID,
			order.UserID,
			string(domain.StatusDraft),
			order.PaymentMethod,
			order.ShippingAddress,
			order.CreatedAt.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("sqlite: insert order %s: %w", order.ID, err)
		}

		for i := range order.Lines {
			line := &order.Lines[i]
			line.OrderID = order.ID
			if err := insertLine(ctx, tx, line, i); err != nil {
				return err
			}
		}

		var err error
		total, err = recompute(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(domain.StatusPlaced), order.ID); err != nil {
			return fmt.Errorf("sqlite: place order %s: %w", order.ID, err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	order.Total = total
	order.Status = domain.StatusPlaced
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	const q = `
		SELECT id, user_id, status, payment_method, shipping_address, total, created_at
		FROM   orders
		WHERE  id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order %s: %w", id, err)
	}

	order.Lines, err = r.linesOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByUser returns the user's orders oldest first, each with its lines.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	const q = `
		SELECT id, user_id, status, payment_method, shipping_address, total, created_at
		FROM   orders
		WHERE  user_id = ?
		ORDER  BY created_at, id`

	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders of %s: %w", userID, err)
	}

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, o := range orders {
		if o.Lines, err = r.linesOf(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// DeleteOrder removes an order header. It refuses while lines remain.
func (r *Repository) DeleteOrder(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := orderExists(ctx, tx, id); err != nil {
			return err
		}

		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_lines WHERE order_id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("sqlite: count lines of %s: %w", id, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: order %s has %d lines", domain.ErrOrderHasLines, id, n)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: delete order %s: %w", id, err)
		}
		return nil
	})
}

func (r *Repository) GetLine(ctx context.Context, orderID, lineID string) (*domain.OrderLine, error) {
	const q = `
		SELECT id, order_id, item_id, quantity, unit_price, subtotal, tax, COALESCE(license_id, '')
		FROM   order_lines
		WHERE  order_id = ? AND id = ?`

	line, err := scanLine(r.db.QueryRowContext(ctx, q, orderID, lineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in order %s", domain.ErrLineNotFound, lineID, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get line %s: %w", lineID, err)
	}
	return line, nil
}

func (r *Repository) AddLine(ctx context.Context, line *domain.OrderLine) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := orderExists(ctx, tx, line.OrderID); err != nil {
			return err
		}

		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM order_lines WHERE order_id = ?`, line.OrderID,
		).Scan(&next); err != nil {
			return fmt.Errorf("sqlite: next line position: %w", err)
		}

		if err := insertLine(ctx, tx, line, next); err != nil {
			return err
		}
		_, err := recompute(ctx, tx, line.OrderID)
		return err
	})
}

// UpdateLine replaces item, quantity and prices. A license bound to a
// different item is dropped from the line.
func (r *Repository) UpdateLine(ctx context.Context, line *domain.OrderLine) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		const q = `
			UPDATE order_lines
			SET    license_id = CASE WHEN item_id = ? THEN license_id ELSE NULL END,
			       item_id = ?, quantity = ?, unit_price = ?, subtotal = ?, tax = ?
			WHERE  order_id = ? AND id = ?`

		res, err := tx.ExecContext(ctx, q,
			line.ItemID,
			line.ItemID,
			line.Quantity,
			line.UnitPrice.String(),
			line.Subtotal.String(),
			line.Tax.String(),
			line.OrderID,
			line.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: update line %s: %w", line.ID, err)
		}
		if err := expectOne(res, fmt.Errorf("%w: %s in order %s", domain.ErrLineNotFound, line.ID, line.OrderID)); err != nil {
			return err
		}

		_, err = recompute(ctx, tx, line.OrderID)
		return err
	})
}

func (r *Repository) RemoveLine(ctx context.Context, orderID, lineID string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ? AND id = ?`, orderID, lineID)
		if err != nil {
			return fmt.Errorf("sqlite: remove line %s: %w", lineID, err)
		}
		if err := expectOne(res, fmt.Errorf("%w: %s in order %s", domain.ErrLineNotFound, lineID, orderID)); err != nil {
			return err
		}

		_, err = recompute(ctx, tx, orderID)
		return err
	})
}

func (r *Repository) SetLineLicense(ctx context.Context, lineID, licenseID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE order_lines SET license_id = ? WHERE id = ?`, nullableString(licenseID), lineID)
	if err != nil {
		return fmt.Errorf("sqlite: set license on line %s: %w", lineID, err)
	}
	return expectOne(res, fmt.Errorf("%w: %s", domain.ErrLineNotFound, lineID))
}

func (r *Repository) RecomputeTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		total, err = recompute(ctx, tx, orderID)
		return err
	})
	return total, err
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (r *Repository) linesOf(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	const q = `
		SELECT id, order_id, item_id, quantity, unit_price, subtotal, tax, COALESCE(license_id, '')
		FROM   order_lines
		WHERE  order_id = ?
		ORDER  BY position`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: lines of %s: %w", orderID, err)
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

func insertLine(ctx context.Context, tx *sql.Tx, line *domain.OrderLine, position int) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}

	const q = `
		INSERT INTO order_lines (id, order_id, position, item_id, quantity, unit_price, subtotal, tax, license_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, q,
		line.ID,
		line.OrderID,
		position,
		line.ItemID,
		line.Quantity,
		line.UnitPrice.String(),
		line.Subtotal.String(),
		line.Tax.String(),
		nullableString(line.LicenseID),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert line %s: %w", line.ID, err)
	}
	return nil
}

// recompute sets orders.total to the sum of line totals and returns it.
func recompute(ctx context.Context, tx *sql.Tx, orderID string) (decimal.Decimal, error) {
	rows, err := tx.QueryContext(ctx, `SELECT subtotal, tax FROM order_lines WHERE order_id = ?`, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlite: read line totals of %s: %w", orderID, err)
	}

	total := decimal.Zero
	for rows.Next() {
		var subtotal, tax decimal.Decimal
		if err := rows.Scan(&subtotal, &tax); err != nil {
			rows.Close()
			return decimal.Zero, fmt.Errorf("sqlite: scan line totals: %w", err)
		}
		total = total.Add(subtotal).Add(tax)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return decimal.Zero, err
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `UPDATE orders SET total = ? WHERE id = ?`, total.String(), orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlite: update total of %s: %w", orderID, err)
	}
	if err := expectOne(res, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func orderExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: lookup order %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o         domain.Order
		status    string
		createdAt string
	)
	if err := s.Scan(&o.ID, &o.UserID, &status, &o.PaymentMethod, &o.ShippingAddress, &o.Total, &createdAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanLine(s scanner) (*domain.OrderLine, error) {
	var l domain.OrderLine
	if err := s.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.Tax, &l.LicenseID); err != nil {
		return nil, err
	}
	return &l, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
