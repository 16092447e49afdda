// Package sqlite stores the settlement journal in its own SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jcmexdev/food-ordering/internal/coordinator/sagalog"
)

// The table is append-only; the latest row per saga_id is its current state.
const schema = `
CREATE TABLE IF NOT EXISTS settlement_journal (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id     TEXT NOT NULL,
    status      TEXT NOT NULL,
    step        TEXT NOT NULL DEFAULT '',
    payload     TEXT,
    errors      TEXT NOT NULL DEFAULT '[]',
    trace_id    TEXT NOT NULL DEFAULT '',
    span_id     TEXT NOT NULL DEFAULT '',
    recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_settlement_journal_saga ON settlement_journal(saga_id, id);
CREATE INDEX IF NOT EXISTS idx_settlement_journal_trace ON settlement_journal(trace_id);
`

type Repository struct {
	db *sql.DB
}

var _ sagalog.Repository = (*Repository)(nil)

// Open opens or creates the journal at path.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply journal schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, e *sagalog.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settlement_journal
			(saga_id, status, step, payload, errors, trace_id, span_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SagaID,
		string(e.Status),
		e.Step,
		nullableString(e.Payload),
		e.Errors,
		e.TraceID,
		e.SpanID,
		e.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save journal entry for %q: %w", e.SagaID, err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, sagaID string) ([]*sagalog.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT saga_id, status, step, COALESCE(payload, ''), errors, trace_id, span_id, recorded_at
		FROM   settlement_journal
		WHERE  saga_id = ?
		ORDER  BY id`, sagaID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list journal of %q: %w", sagaID, err)
	}
	defer rows.Close()

	var out []*sagalog.Entry
	for rows.Next() {
		var (
			e          sagalog.Entry
			recordedAt string
		)
		if err := rows.Scan(&e.SagaID, &e.Status, &e.Step, &e.Payload, &e.Errors,
			&e.TraceID, &e.SpanID, &recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan journal entry: %w", err)
		}
		if e.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse time %q: %w", recordedAt, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// nullableString stores NULL instead of '' for rows without a payload.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
