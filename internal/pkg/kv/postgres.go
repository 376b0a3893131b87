package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	"clickearn/internal/pkg/db"
	"clickearn/internal/pkg/kv/migrations"
)

// PgxConn is the subset of pgxpool.Pool the postgres backend needs.
// pgxmock pools satisfy it as well.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend persists values in a JSONB table.
type PostgresBackend struct {
	conn  PgxConn
	close func()
}

// OpenPostgres applies the schema through pool and returns a backend that
// owns the pool.
func OpenPostgres(ctx context.Context, pool *db.Pool) (*PostgresBackend, error) {
	sqlDB := pool.SQLDB()
	if err := migrate(ctx, sqlDB, goose.DialectPostgres, migrations.Postgres, "postgres"); err != nil {
		return nil, err
	}
	return &PostgresBackend{conn: pool, close: pool.Close}, nil
}

// NewPostgresBackend wraps a connection whose schema is already in place.
// The caller keeps ownership of conn.
func NewPostgresBackend(conn PgxConn) *PostgresBackend {
	return &PostgresBackend{conn: conn}
}

// Get returns the stored JSON document.
func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `SELECT value FROM kv_store WHERE key = $1`

	var value []byte
	err := b.conn.QueryRow(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get kv_store[%s]: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the document.
func (b *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	const query = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	if _, err := b.conn.Exec(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("failed to set kv_store[%s]: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (b *PostgresBackend) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_store WHERE key = $1`

	if _, err := b.conn.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete kv_store[%s]: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (b *PostgresBackend) DeletePrefix(ctx context.Context, prefix string) error {
	const query = `DELETE FROM kv_store WHERE starts_with(key, $1)`

	if _, err := b.conn.Exec(ctx, query, prefix); err != nil {
		return fmt.Errorf("failed to delete kv_store prefix %s: %w", prefix, err)
	}
	return nil
}

// Close releases the pool when the backend owns it.
func (b *PostgresBackend) Close() error {
	if b.close != nil {
		b.close()
	}
	return nil
}
