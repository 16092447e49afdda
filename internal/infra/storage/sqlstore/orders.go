package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

type orderRepository struct {
	s *Store
}

const orderColumns = `id, user_id, restaurant_id, delivery_address, phone_number, note,
	total_amount, delivery_fee, status, ordered_at, completed_at, cancel_reason`

func (r *orderRepository) Create(ctx context.Context, o *domain.Order) error {
	const q = `INSERT INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.s.exec(ctx, q,
		o.ID, o.UserID, o.RestaurantID, o.DeliveryAddress, o.PhoneNumber, o.Note,
		o.TotalAmount, o.DeliveryFee, string(o.Status), formatTime(o.OrderedAt),
		nullableTime(o.CompletedAt), o.CancelReason,
	); err != nil {
		return fmt.Errorf("sqlstore: insert order %q: %w", o.ID, err)
	}

	for i, line := range o.Lines {
		if _, err := r.s.exec(ctx,
			`INSERT INTO order_lines (order_id, line_no, menu_item_id, menu_item_name, quantity, unit_price)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, i, line.MenuItemID, line.MenuItemName, line.Quantity, line.UnitPriceAtOrderTime,
		); err != nil {
			return fmt.Errorf("sqlstore: insert order line of %q: %w", o.ID, err)
		}
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.s.queryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`+r.s.forUpdate(), orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get order %q: %w", orderID, err)
	}
	if o.Lines, err = r.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string, page ports.Page) ([]*domain.Order, error) {
	page = page.Normalize()
	rows, err := r.s.query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ?
		 ORDER BY ordered_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, page.Size, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list orders of %q: %w", userID, err)
	}

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlstore: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlstore: iterate orders: %w", err)
	}
	// lines are read after the cursor is released; SQLite runs on one connection.
	rows.Close()

	for _, o := range orders {
		if o.Lines, err = r.lines(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, o *domain.Order, expected domain.OrderStatus) error {
	res, err := r.s.exec(ctx,
		`UPDATE orders SET status = ?, completed_at = ?, cancel_reason = ? WHERE id = ? AND status = ?`,
		string(o.Status), nullableTime(o.CompletedAt), o.CancelReason, o.ID, string(expected))
	if err != nil {
		return fmt.Errorf("sqlstore: update order %q: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: update order %q: %w", o.ID, err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = r.s.queryRow(ctx, `SELECT status FROM orders WHERE id = ?`, o.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Errorf(domain.KindNotFound, "order %s not found", o.ID)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: reread order %q: %w", o.ID, err)
	}
	return domain.Errorf(domain.KindInvalidStatusTransition,
		"order %s changed concurrently: expected %s, found %s", o.ID, expected, current)
}

func (r *orderRepository) lines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.s.query(ctx,
		`SELECT menu_item_id, menu_item_name, quantity, unit_price
		 FROM order_lines WHERE order_id = ? ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get order lines of %q: %w", orderID, err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.MenuItemID, &l.MenuItemName, &l.Quantity, &l.UnitPriceAtOrderTime); err != nil {
			return nil, fmt.Errorf("sqlstore: scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o           domain.Order
		status      string
		orderedAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(
		&o.ID, &o.UserID, &o.RestaurantID, &o.DeliveryAddress, &o.PhoneNumber, &o.Note,
		&o.TotalAmount, &o.DeliveryFee, &status, &orderedAt, &completedAt, &o.CancelReason,
	); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	var err error
	if o.OrderedAt, err = parseTime(orderedAt); err != nil {
		return nil, err
	}
	if o.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
