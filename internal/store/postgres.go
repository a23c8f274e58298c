package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresBackend stores each collection as one JSONB document in the
// flat_tables table. Mutations lock the row for the whole transaction.
type PostgresBackend struct {
	Client *sql.DB
}

// NewPostgresBackend opens a pgx connection pool, pings it and creates the
// flat_tables table plus a row per name.
func NewPostgresBackend(ctx context.Context, connString string, names ...string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b := &PostgresBackend{Client: db}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS flat_tables (
			name       TEXT PRIMARY KEY,
			doc        JSONB NOT NULL DEFAULT '[]'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, name := range names {
		if err := ensureRow(ctx, db, name); err != nil {
			db.Close()
			return nil, err
		}
	}
	return b, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureRow(ctx context.Context, db execer, name string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO flat_tables (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	return nil
}

// Load returns the stored document, or [] when the row does not exist.
func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, error) {
	var doc string
	err := b.Client.QueryRowContext(ctx, `SELECT doc::text FROM flat_tables WHERE name = $1`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return emptyDoc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return []byte(doc), nil
}

// Mutate runs fn inside a transaction holding SELECT ... FOR UPDATE on the row.
func (b *PostgresBackend) Mutate(ctx context.Context, name string, fn func(doc []byte) ([]byte, error)) error {
	tx, err := b.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := ensureRow(ctx, tx, name); err != nil {
		return err
	}
	var doc string
	if err := tx.QueryRowContext(ctx, `SELECT doc::text FROM flat_tables WHERE name = $1 FOR UPDATE`, name).Scan(&doc); err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	next, err := fn([]byte(doc))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE flat_tables SET doc = $2::jsonb, updated_at = NOW() WHERE name = $1
	`, name, string(next)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return tx.Commit()
}

// Healthy pings the pool.
func (b *PostgresBackend) Healthy(ctx context.Context) bool {
	if b == nil || b.Client == nil {
		return false
	}
	return b.Client.PingContext(ctx) == nil
}

// Close closes the underlying pool.
func (b *PostgresBackend) Close() error {
	if b == nil || b.Client == nil {
		return nil
	}
	return b.Client.Close()
}
