package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Table is a typed view over one collection document: an ordered JSON array
// of T, rewritten in full on every mutation.
type Table[T any] struct {
	backend Backend
	name    string
}

// NewTable binds a collection name to a record type.
func NewTable[T any](backend Backend, name string) *Table[T] {
	return &Table[T]{backend: backend, name: name}
}

func (t *Table[T]) Name() string { return t.name }

// All returns every record in insertion order.
func (t *Table[T]) All(ctx context.Context) ([]T, error) {
	doc, err := t.backend.Load(ctx, t.name)
	if err != nil {
		return nil, err
	}
	return decode[T](t.name, doc)
}

// Update applies fn to the current records and persists the result. fn runs
// while the backend holds the collection exclusively; if it returns an error
// nothing is written.
func (t *Table[T]) Update(ctx context.Context, fn func(rows []T) ([]T, error)) error {
	return t.backend.Mutate(ctx, t.name, func(doc []byte) ([]byte, error) {
		rows, err := decode[T](t.name, doc)
		if err != nil {
			return nil, err
		}
		next, err := fn(rows)
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []T{}
		}
		out, err := json.MarshalIndent(next, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t.name, err)
		}
		return out, nil
	})
}

// Append adds one record at the end of the collection.
func (t *Table[T]) Append(ctx context.Context, rec T) error {
	return t.Update(ctx, func(rows []T) ([]T, error) {
		return append(rows, rec), nil
	})
}

func decode[T any](name string, doc []byte) ([]T, error) {
	rows := []T{}
	if len(doc) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(doc, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}
