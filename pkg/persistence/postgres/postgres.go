// Package postgres stores persistence artifacts as JSONB rows in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"ordermgmt/pkg/persistence"
)

const schema = `CREATE TABLE IF NOT EXISTS artifacts (
	name TEXT PRIMARY KEY,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Backend persists artifacts in the artifacts table.
type Backend struct {
	db *sqlx.DB
}

// Open connects to the database and ensures the artifacts table exists.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	b := New(db)
	if err := b.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing connection. The caller must ensure the artifacts
// table exists, see Migrate.
func New(db *sqlx.DB) *Backend {
	return &Backend{db: db}
}

// Migrate creates the artifacts table when missing.
func (b *Backend) Migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "create artifacts table")
}

// Write upserts the artifact row.
func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO artifacts (name, body, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		name, string(data))
	return errors.Wrapf(err, "upsert artifact %s", name)
}

// Read loads the artifact body or returns persistence.ErrNotExist.
func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := b.db.GetContext(ctx, &body, "SELECT body FROM artifacts WHERE name=$1", name)
	if err == sql.ErrNoRows {
		return nil, persistence.ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select artifact %s", name)
	}
	return body, nil
}

// Close closes the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}
