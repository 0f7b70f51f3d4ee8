package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cognicore/cocoscore/pkg/cocoscore/store/sqlstore"
)

// Dialect is the PostgreSQL flavour of the run schema. Bulk rows go through
// COPY.
var Dialect = sqlstore.Dialect{
	Name: "postgres",
	Schema: []string{`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	config TEXT NOT NULL,
	exponent DOUBLE PRECISION NOT NULL,
	pairs INTEGER NOT NULL,
	entities INTEGER NOT NULL,
	total DOUBLE PRECISION NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS run_pairs (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	a TEXT NOT NULL,
	b TEXT NOT NULL,
	count DOUBLE PRECISION NOT NULL,
	score DOUBLE PRECISION,
	PRIMARY KEY(run_id, a, b)
);`, `
CREATE INDEX IF NOT EXISTS run_pairs_b ON run_pairs(run_id, b);`, `
CREATE TABLE IF NOT EXISTS run_entities (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	entity TEXT NOT NULL,
	count DOUBLE PRECISION NOT NULL,
	PRIMARY KEY(run_id, entity)
);`,
	},
	Numbered: true,
	BulkInsert: func(table string, columns ...string) (string, bool) {
		return pq.CopyIn(table, columns...), true
	},
}

// Options tunes the connection pool
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions returns a small pool suitable for the query service
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects to PostgreSQL, verifies the connection and creates the run
// schema if needed.
func Open(ctx context.Context, dsn string, opts Options) (*sqlstore.Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	st, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}
