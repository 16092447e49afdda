package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

type paymentRepository struct {
	s *Store
}

const paymentColumns = `p.id, p.order_id, p.amount, p.method, p.status, p.attempts, p.transaction_id,
	p.masked_instrument, p.failure_reason, p.cancel_reason, p.paid_at, p.cancelled_at,
	p.created_at, p.updated_at`

// Create inserts a new payment. The UNIQUE constraint on order_id turns a
// concurrent second insert into ALREADY_PAID.
func (r *paymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.s.exec(ctx, `
		INSERT INTO payments (id, order_id, amount, method, status, attempts, transaction_id,
			masked_instrument, failure_reason, cancel_reason, paid_at, cancelled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.Amount, string(p.Method), string(p.Status), p.Attempts, p.TransactionID,
		p.MaskedInstrument, p.FailureReason, p.CancelReason, nullableTime(p.PaidAt), nullableTime(p.CancelledAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.Wrap(domain.KindAlreadyPaid, err, fmt.Sprintf("order %s already has a payment", p.OrderID))
	}
	if err != nil {
		return fmt.Errorf("sqlstore: insert payment %q: %w", p.ID, err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, paymentID string) (*domain.Payment, error) {
	row := r.s.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = ?`+r.s.forUpdate(), paymentID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "payment %s not found", paymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get payment %q: %w", paymentID, err)
	}
	return p, nil
}

func (r *paymentRepository) GetByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := r.s.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.order_id = ?`+r.s.forUpdate(), orderID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Errorf(domain.KindNotFound, "payment for order %s not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get payment of order %q: %w", orderID, err)
	}
	return p, nil
}

func (r *paymentRepository) Update(ctx context.Context, p *domain.Payment, expected domain.PaymentStatus) error {
	res, err := r.s.exec(ctx, `
		UPDATE payments SET
			method = ?, status = ?, attempts = ?, transaction_id = ?, masked_instrument = ?,
			failure_reason = ?, cancel_reason = ?, paid_at = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(p.Method), string(p.Status), p.Attempts, p.TransactionID, p.MaskedInstrument,
		p.FailureReason, p.CancelReason, nullableTime(p.PaidAt), nullableTime(p.CancelledAt), formatTime(p.UpdatedAt),
		p.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: update payment %q: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: update payment %q: %w", p.ID, err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = r.s.queryRow(ctx, `SELECT status FROM payments WHERE id = ?`, p.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Errorf(domain.KindNotFound, "payment %s not found", p.ID)
	}
	if err != nil {
		return fmt.Errorf("sqlstore: reread payment %q: %w", p.ID, err)
	}
	return domain.Errorf(domain.KindInvalidStatusTransition,
		"payment %s changed concurrently: expected %s, found %s", p.ID, expected, current)
}

// History lists the payments of a user's orders, newest first. Zero From/To
// leave that side of the range open; To is exclusive.
func (r *paymentRepository) History(ctx context.Context, q ports.PaymentQuery) ([]*domain.Payment, error) {
	page := q.Page.Normalize()

	var (
		where = []string{"o.user_id = ?"}
		args  = []any{q.UserID}
	)
	if !q.From.IsZero() {
		where = append(where, "p.created_at >= ?")
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		where = append(where, "p.created_at < ?")
		args = append(args, formatTime(q.To))
	}
	args = append(args, page.Size, page.Offset())

	query := `SELECT ` + paymentColumns + `
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`

	return r.list(ctx, query, args...)
}

// ListStale returns payments stuck in status since before updatedBefore,
// oldest first.
func (r *paymentRepository) ListStale(ctx context.Context, status domain.PaymentStatus, updatedBefore time.Time, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+paymentColumns+` FROM payments p
		WHERE p.status = ? AND p.updated_at < ?
		ORDER BY p.updated_at LIMIT ?`,
		string(status), formatTime(updatedBefore), limit)
}

func (r *paymentRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list payments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate payments: %w", err)
	}
	return out, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p                    domain.Payment
		method, status       string
		paidAt, cancelledAt  sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&p.ID, &p.OrderID, &p.Amount, &method, &status, &p.Attempts, &p.TransactionID,
		&p.MaskedInstrument, &p.FailureReason, &p.CancelReason, &paidAt, &cancelledAt,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)

	var err error
	if p.PaidAt, err = parseNullTime(paidAt); err != nil {
		return nil, err
	}
	if p.CancelledAt, err = parseNullTime(cancelledAt); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
