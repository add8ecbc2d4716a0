// Package engine owns the connection to the embedded DuckDB engine.
// A Conn is exclusively owned by one build session and never shared.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Executor executes SQL statements. Conn implements it against a live
// engine; the builder's transcript recorder implements it for dry runs.
type Executor interface {
	Exec(ctx context.Context, query string) error
}

// Conn is one open DuckDB connection.
type Conn struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database artifact at path.
// Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Conn, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb at %q: %w", path, err)
	}

	return &Conn{db: db, path: path}, nil
}

// Path returns the database artifact path.
func (c *Conn) Path() string {
	return c.path
}

// Exec executes a statement that returns no rows.
func (c *Conn) Exec(ctx context.Context, query string) error {
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Query executes a statement and returns its rows.
func (c *Conn) Query(ctx context.Context, query string) (*sql.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// Close closes the connection. Safe to call more than once.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	db := c.db
	c.db = nil
	return db.Close()
}

var _ Executor = (*Conn)(nil)
