package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/cocoscore/pkg/cocoscore/store/sqlstore"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store/storetest"
)

// TestSchemaCreationIdempotent tests that initializing the schema repeatedly is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if _, err := sqlstore.New(ctx, db, Dialect); err != nil {
			t.Fatalf("schema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 3 { // runs, run_pairs, run_entities
		t.Errorf("Expected 3 tables, got %d", count)
	}
}

// TestUnscoredPairStoredAsNull checks that a pair without a score keeps a NULL score column
func TestUnscoredPairStoredAsNull(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	if err := st.SaveRun(ctx, storetest.SampleRun("run", time.Now())); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	var score sql.NullFloat64
	err = st.DB().QueryRowContext(ctx, "SELECT score FROM run_pairs WHERE run_id = ? AND a = ? AND b = ?", "run", "x", "y").Scan(&score)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if score.Valid {
		t.Errorf("expected NULL score, got %v", score.Float64)
	}
}
