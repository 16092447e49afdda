package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

type cartRepository struct {
	s *Store
}

func (r *cartRepository) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	q := `SELECT id, user_id, restaurant_id, created_at, updated_at
	      FROM carts WHERE user_id = ?` + r.s.forUpdate()

	var (
		cart                 domain.Cart
		createdAt, updatedAt string
	)
	err := r.s.queryRow(ctx, q, userID).Scan(&cart.ID, &cart.UserID, &cart.RestaurantID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "cart for user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get cart of %q: %w", userID, err)
	}
	if cart.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if cart.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	rows, err := r.s.query(ctx,
		`SELECT menu_item_id, quantity FROM cart_lines WHERE cart_id = ? ORDER BY line_no`, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get cart lines of %q: %w", cart.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.MenuItemID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("sqlstore: scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate cart lines: %w", err)
	}
	return &cart, nil
}

// Save upserts the cart header and rewrites its lines. Callers run it inside
// a transaction so the header and lines change together.
func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	const upsert = `
		INSERT INTO carts (id, user_id, restaurant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = excluded.restaurant_id,
			updated_at    = excluded.updated_at`

	if _, err := r.s.exec(ctx, upsert,
		cart.ID, cart.UserID, cart.RestaurantID, formatTime(cart.CreatedAt), formatTime(cart.UpdatedAt),
	); err != nil {
		return fmt.Errorf("sqlstore: save cart %q: %w", cart.ID, err)
	}

	if _, err := r.s.exec(ctx, `DELETE FROM cart_lines WHERE cart_id = ?`, cart.ID); err != nil {
		return fmt.Errorf("sqlstore: clear cart lines of %q: %w", cart.ID, err)
	}
	for i, line := range cart.Lines {
		if _, err := r.s.exec(ctx,
			`INSERT INTO cart_lines (cart_id, menu_item_id, quantity, line_no) VALUES (?, ?, ?, ?)`,
			cart.ID, line.MenuItemID, line.Quantity, i,
		); err != nil {
			return fmt.Errorf("sqlstore: insert cart line %q: %w", line.MenuItemID, err)
		}
	}
	return nil
}
