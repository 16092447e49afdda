package sagalog

import "context"

// Repository persists journal entries. Save appends; it never updates.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	// List returns every entry of a saga in write order.
	List(ctx context.Context, sagaID string) ([]*Entry, error)
}
