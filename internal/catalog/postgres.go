package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the building_catalogs table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS building_catalogs (
    name       TEXT PRIMARY KEY,
    document   JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] that keeps each catalog as one JSONB document
// keyed by name. Saves are a single upsert statement, so a document is either
// replaced whole or not at all.
//
// PostgresStore does not implement [Locker]: two concurrent runs against the
// same name can lose one of the updates.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// Load implements [Store.Load].
func (s *PostgresStore) Load(ctx context.Context, name string) (*Catalog, error) {
	const query = `SELECT document FROM building_catalogs WHERE name = $1`

	var doc []byte
	err := s.db.QueryRow(ctx, query, name).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("catalog: load %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", name, err)
	}

	c, err := Decode(doc, FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", name, err)
	}
	return c, nil
}

// Save implements [Store.Save].
func (s *PostgresStore) Save(ctx context.Context, name string, c *Catalog) error {
	data, err := Encode(c, FormatJSON)
	if err != nil {
		return fmt.Errorf("catalog: save %q: %w: %w", name, ErrWrite, err)
	}

	const query = `
		INSERT INTO building_catalogs (name, document)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET
			document   = EXCLUDED.document,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, name, string(data)); err != nil {
		return fmt.Errorf("catalog: save %q: %w: %w", name, ErrWrite, err)
	}
	return nil
}

// Close closes the underlying pool or connection if it has a Close method
// without a context (e.g. *pgxpool.Pool).
func (s *PostgresStore) Close() {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
}
