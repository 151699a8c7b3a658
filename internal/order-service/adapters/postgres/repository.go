// Package postgres implements ports.OrderRepository on a pgx connection pool.
// Money is stored as NUMERIC and moved across the wire as text so no float
// conversion ever happens.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/gamestore-orders/internal/order-service/domain"
	"github.com/jcmexdev/gamestore-orders/internal/order-service/ports"
)

var _ ports.OrderRepository = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse connection string: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	r.pool.Close()
}

// Migrate creates the order tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			status           VARCHAR(32) NOT NULL,
			payment_method   VARCHAR(64) NOT NULL DEFAULT '',
			shipping_address TEXT NOT NULL DEFAULT '',
			total            NUMERIC NOT NULL DEFAULT 0,
			created_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS order_lines (
			id         TEXT PRIMARY KEY,
			order_id   TEXT NOT NULL REFERENCES orders(id),
			position   INTEGER NOT NULL,
			item_id    TEXT NOT NULL,
			quantity   INTEGER NOT NULL CHECK (quantity >= 1),
			unit_price NUMERIC NOT NULL,
			subtotal   NUMERIC NOT NULL,
			tax        NUMERIC NOT NULL,
			license_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id, position)`,
	}

	for _, m := range migrations {
		if _, err := r.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("postgres: run migration: %w", err)
		}
	}
	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	var total decimal.Decimal
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertHeader = `
			INSERT INTO orders (id, user_id, status, payment_method, shipping_address, total, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6)`
		if _, err := tx.Exec(ctx, insertHeader,
			order.ID, order.UserID, string(domain.StatusDraft),
			order.PaymentMethod, order.ShippingAddress, order.CreatedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert order %s: %w", order.ID, err)
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

		if _, err := tx.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2`, string(domain.StatusPlaced), order.ID); err != nil {
			return fmt.Errorf("postgres: place order %s: %w", order.ID, err)
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

const selectOrder = `
	SELECT id, user_id, status, payment_method, shipping_address, total::text, created_at
	FROM   orders`

const selectLine = `
	SELECT id, order_id, item_id, quantity, unit_price::text, subtotal::text, tax::text, COALESCE(license_id, '')
	FROM   order_lines`

func (r *Repository) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order %s: %w", id, err)
	}

	if order.Lines, err = r.linesOf(ctx, id); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders of %s: %w", userID, err)
	}

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range orders {
		if o.Lines, err = r.linesOf(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *Repository) DeleteOrder(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Lock the header so a concurrent AddLine cannot slip in.
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("postgres: lock order %s: %w", id, err)
		}

		var n int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM order_lines WHERE order_id = $1`, id).Scan(&n); err != nil {
			return fmt.Errorf("postgres: count lines of %s: %w", id, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: order %s has %d lines", domain.ErrOrderHasLines, id, n)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
			return fmt.Errorf("postgres: delete order %s: %w", id, err)
		}
		return nil
	})
}

func (r *Repository) GetLine(ctx context.Context, orderID, lineID string) (*domain.OrderLine, error) {
	line, err := scanLine(r.pool.QueryRow(ctx, selectLine+` WHERE order_id = $1 AND id = $2`, orderID, lineID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in order %s", domain.ErrLineNotFound, lineID, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get line %s: %w", lineID, err)
	}
	return line, nil
}

func (r *Repository) AddLine(ctx context.Context, line *domain.OrderLine) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM orders WHERE id = $1 FOR UPDATE`, line.OrderID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, line.OrderID)
		}
		if err != nil {
			return fmt.Errorf("postgres: lock order %s: %w", line.OrderID, err)
		}

		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM order_lines WHERE order_id = $1`, line.OrderID,
		).Scan(&next); err != nil {
			return fmt.Errorf("postgres: next line position: %w", err)
		}

		if err := insertLine(ctx, tx, line, next); err != nil {
			return err
		}
		_, err = recompute(ctx, tx, line.OrderID)
		return err
	})
}

func (r *Repository) UpdateLine(ctx context.Context, line *domain.OrderLine) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `
			UPDATE order_lines
			SET    license_id = CASE WHEN item_id = $1 THEN license_id ELSE NULL END,
			       item_id = $1, quantity = $2,
			       unit_price = $3::text::numeric, subtotal = $4::text::numeric, tax = $5::text::numeric
			WHERE  order_id = $6 AND id = $7`

		tag, err := tx.Exec(ctx, q,
			line.ItemID, line.Quantity,
			line.UnitPrice.String(), line.Subtotal.String(), line.Tax.String(),
			line.OrderID, line.ID,
		)
		if err != nil {
			return fmt.Errorf("postgres: update line %s: %w", line.ID, err)
		}
		if err := expectOne(tag, fmt.Errorf("%w: %s in order %s", domain.ErrLineNotFound, line.ID, line.OrderID)); err != nil {
			return err
		}

		_, err = recompute(ctx, tx, line.OrderID)
		return err
	})
}

func (r *Repository) RemoveLine(ctx context.Context, orderID, lineID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1 AND id = $2`, orderID, lineID)
		if err != nil {
			return fmt.Errorf("postgres: remove line %s: %w", lineID, err)
		}
		if err := expectOne(tag, fmt.Errorf("%w: %s in order %s", domain.ErrLineNotFound, lineID, orderID)); err != nil {
			return err
		}

		_, err = recompute(ctx, tx, orderID)
		return err
	})
}

func (r *Repository) SetLineLicense(ctx context.Context, lineID, licenseID string) error {
	var lic *string
	if licenseID != "" {
		lic = &licenseID
	}
	tag, err := r.pool.Exec(ctx, `UPDATE order_lines SET license_id = $1 WHERE id = $2`, lic, lineID)
	if err != nil {
		return fmt.Errorf("postgres: set license on line %s: %w", lineID, err)
	}
	return expectOne(tag, fmt.Errorf("%w: %s", domain.ErrLineNotFound, lineID))
}

func (r *Repository) RecomputeTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		total, err = recompute(ctx, tx, orderID)
		return err
	})
	return total, err
}

func (r *Repository) linesOf(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.pool.Query(ctx, selectLine+` WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: lines of %s: %w", orderID, err)
	}
	defer rows.Close()

	lines := []domain.OrderLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan line: %w", err)
		}
		lines = append(lines, *l)
	}
	return lines, rows.Err()
}

func insertLine(ctx context.Context, tx pgx.Tx, line *domain.OrderLine, position int) error {
	if line.ID == "" {
		line.ID = uuid.NewString()
	}

	var lic *string
	if line.LicenseID != "" {
		lic = &line.LicenseID
	}

	const q = `
		INSERT INTO order_lines (id, order_id, position, item_id, quantity, unit_price, subtotal, tax, license_id)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9)`

	_, err := tx.Exec(ctx, q,
		line.ID, line.OrderID, position, line.ItemID, line.Quantity,
		line.UnitPrice.String(), line.Subtotal.String(), line.Tax.String(),
		lic,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert line %s: %w", line.ID, err)
	}
	return nil
}

// recompute sums line totals in SQL and writes the result to the header.
func recompute(ctx context.Context, tx pgx.Tx, orderID string) (decimal.Decimal, error) {
	const q = `
		UPDATE orders
		SET    total = COALESCE((SELECT SUM(subtotal + tax) FROM order_lines WHERE order_id = $1), 0)
		WHERE  id = $1
		RETURNING total::text`

	var raw string
	err := tx.QueryRow(ctx, q, orderID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("postgres: recompute total of %s: %w", orderID, err)
	}
	return decimal.NewFromString(raw)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
		total  string
	)
	if err := row.Scan(&o.ID, &o.UserID, &status, &o.PaymentMethod, &o.ShippingAddress, &total, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()

	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("postgres: order %s total %q: %w", o.ID, total, err)
	}
	return &o, nil
}

func scanLine(row pgx.Row) (*domain.OrderLine, error) {
	var (
		l                   domain.OrderLine
		unit, subtotal, tax string
	)
	if err := row.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Quantity, &unit, &subtotal, &tax, &l.LicenseID); err != nil {
		return nil, err
	}

	var err error
	if l.UnitPrice, err = decimal.NewFromString(unit); err != nil {
		return nil, fmt.Errorf("postgres: line %s unit price: %w", l.ID, err)
	}
	if l.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("postgres: line %s subtotal: %w", l.ID, err)
	}
	if l.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("postgres: line %s tax: %w", l.ID, err)
	}
	return &l, nil
}

func expectOne(tag pgconn.CommandTag, notFound error) error {
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
