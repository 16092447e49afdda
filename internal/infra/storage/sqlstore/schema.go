package sqlstore

import (
	"context"
	"fmt"
)

// schema is shared by both drivers. Timestamps are stored as fixed-width UTC
// TEXT (see time.go) so range filters compare lexicographically.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS restaurants (
		id                   TEXT PRIMARY KEY,
		name                 TEXT   NOT NULL,
		owner_id             TEXT   NOT NULL,
		minimum_order_amount BIGINT NOT NULL DEFAULT 0,
		delivery_fee         BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS menu_items (
		id            TEXT PRIMARY KEY,
		restaurant_id TEXT   NOT NULL REFERENCES restaurants(id),
		name          TEXT   NOT NULL,
		price         BIGINT NOT NULL,
		availability  TEXT   NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		id           TEXT PRIMARY KEY,
		address      TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL UNIQUE,
		restaurant_id TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
		cart_id      TEXT    NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		menu_item_id TEXT    NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity >= 1),
		line_no      INTEGER NOT NULL,
		PRIMARY KEY (cart_id, menu_item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		user_id          TEXT   NOT NULL,
		restaurant_id    TEXT   NOT NULL,
		delivery_address TEXT   NOT NULL,
		phone_number     TEXT   NOT NULL,
		note             TEXT   NOT NULL DEFAULT '',
		total_amount     BIGINT NOT NULL,
		delivery_fee     BIGINT NOT NULL,
		status           TEXT   NOT NULL,
		ordered_at       TEXT   NOT NULL,
		completed_at     TEXT,
		cancel_reason    TEXT   NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, ordered_at)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id       TEXT    NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		line_no        INTEGER NOT NULL,
		menu_item_id   TEXT    NOT NULL,
		menu_item_name TEXT    NOT NULL DEFAULT '',
		quantity       INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price     BIGINT  NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
	// order_id is UNIQUE: a second payment for the same order loses at commit.
	`CREATE TABLE IF NOT EXISTS payments (
		id                TEXT PRIMARY KEY,
		order_id          TEXT    NOT NULL UNIQUE REFERENCES orders(id),
		amount            BIGINT  NOT NULL,
		method            TEXT    NOT NULL,
		status            TEXT    NOT NULL,
		attempts          INTEGER NOT NULL DEFAULT 0,
		transaction_id    TEXT    NOT NULL DEFAULT '',
		masked_instrument TEXT    NOT NULL DEFAULT '',
		failure_reason    TEXT    NOT NULL DEFAULT '',
		cancel_reason     TEXT    NOT NULL DEFAULT '',
		paid_at           TEXT,
		cancelled_at      TEXT,
		created_at        TEXT    NOT NULL,
		updated_at        TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status, updated_at)`,
}

// migrate runs the DDL. Idempotent due to IF NOT EXISTS.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: apply schema: %w", err)
		}
	}
	return nil
}
