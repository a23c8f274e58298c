package attendance

import (
	"context"

	"classroom/internal/store"
)

// Repository persists attendance records in the attendance flat table.
type Repository struct {
	table *store.Table[Record]
}

// NewRepository creates a repo.
func NewRepository(backend store.Backend) *Repository {
	return &Repository{table: store.NewTable[Record](backend, store.Attendance)}
}

// Insert appends a record.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	return r.table.Append(ctx, rec)
}

// List returns records matching f in insertion order.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	rows, err := r.table.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, rec := range rows {
		if f.match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}
