package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/cognicore/cocoscore/pkg/cocoscore/store/sqlstore"
)

// Dialect is the SQLite flavour of the run schema
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	config TEXT NOT NULL,
	exponent REAL NOT NULL,
	pairs INTEGER NOT NULL,
	entities INTEGER NOT NULL,
	total REAL NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS run_pairs (
	run_id TEXT NOT NULL,
	a TEXT NOT NULL,
	b TEXT NOT NULL,
	count REAL NOT NULL,
	score REAL,
	PRIMARY KEY(run_id, a, b),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);`, `
CREATE INDEX IF NOT EXISTS run_pairs_b ON run_pairs(run_id, b);`, `
CREATE TABLE IF NOT EXISTS run_entities (
	run_id TEXT NOT NULL,
	entity TEXT NOT NULL,
	count REAL NOT NULL,
	PRIMARY KEY(run_id, entity),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);`,
	},
	BulkInsert: sqlstore.Insert,
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// run schema if needed.
func OpenSQLite(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	st, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}
