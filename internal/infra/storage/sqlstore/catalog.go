package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

// Catalog reads restaurants, menu items and user profiles from the tables
// shared with the catalog and user services. It always uses the pool, never a
// transaction, so callers must not invoke it from inside WithinTx on SQLite.
type Catalog struct {
	s *Store
}

var (
	_ ports.Catalog       = (*Catalog)(nil)
	_ ports.UserDirectory = (*Catalog)(nil)
)

func (s *Store) Catalog() *Catalog {
	return &Catalog{s: &Store{db: s.db, q: s.db, driver: s.driver}}
}

func (c *Catalog) GetMenuItem(ctx context.Context, menuItemID string) (*domain.MenuItem, error) {
	var (
		item         domain.MenuItem
		availability string
	)
	err := c.s.queryRow(ctx,
		`SELECT id, restaurant_id, name, price, availability FROM menu_items WHERE id = ?`, menuItemID,
	).Scan(&item.ID, &item.RestaurantID, &item.Name, &item.Price, &availability)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "menu item %s not found", menuItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get menu item %q: %w", menuItemID, err)
	}
	item.Availability = domain.Availability(availability)
	return &item, nil
}

func (c *Catalog) GetRestaurant(ctx context.Context, restaurantID string) (*domain.Restaurant, error) {
	var r domain.Restaurant
	err := c.s.queryRow(ctx,
		`SELECT id, name, owner_id, minimum_order_amount, delivery_fee FROM restaurants WHERE id = ?`, restaurantID,
	).Scan(&r.ID, &r.Name, &r.OwnerID, &r.MinimumOrderAmount, &r.DeliveryFee)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "restaurant %s not found", restaurantID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get restaurant %q: %w", restaurantID, err)
	}
	return &r, nil
}

func (c *Catalog) GetUserProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var u domain.UserProfile
	err := c.s.queryRow(ctx,
		`SELECT id, address, phone_number FROM user_profiles WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Address, &u.PhoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get user profile %q: %w", userID, err)
	}
	return &u, nil
}

func (c *Catalog) SaveRestaurant(ctx context.Context, r domain.Restaurant) error {
	_, err := c.s.exec(ctx, `
		INSERT INTO restaurants (id, name, owner_id, minimum_order_amount, delivery_fee)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			owner_id = excluded.owner_id,
			minimum_order_amount = excluded.minimum_order_amount,
			delivery_fee = excluded.delivery_fee`,
		r.ID, r.Name, r.OwnerID, r.MinimumOrderAmount, r.DeliveryFee)
	if err != nil {
		return fmt.Errorf("sqlstore: save restaurant %q: %w", r.ID, err)
	}
	return nil
}

func (c *Catalog) SaveMenuItem(ctx context.Context, m domain.MenuItem) error {
	_, err := c.s.exec(ctx, `
		INSERT INTO menu_items (id, restaurant_id, name, price, availability)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = excluded.restaurant_id,
			name = excluded.name,
			price = excluded.price,
			availability = excluded.availability`,
		m.ID, m.RestaurantID, m.Name, m.Price, string(m.Availability))
	if err != nil {
		return fmt.Errorf("sqlstore: save menu item %q: %w", m.ID, err)
	}
	return nil
}

func (c *Catalog) SaveUserProfile(ctx context.Context, u domain.UserProfile) error {
	_, err := c.s.exec(ctx, `
		INSERT INTO user_profiles (id, address, phone_number)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			address = excluded.address,
			phone_number = excluded.phone_number`,
		u.ID, u.Address, u.PhoneNumber)
	if err != nil {
		return fmt.Errorf("sqlstore: save user profile %q: %w", u.ID, err)
	}
	return nil
}
