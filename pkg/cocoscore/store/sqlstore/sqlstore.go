// Package sqlstore implements store.Store over database/sql. Backends supply
// a Dialect for schema, placeholders and bulk inserts.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cognicore/cocoscore/pkg/cocoscore/aggregate"
	"github.com/cognicore/cocoscore/pkg/cocoscore/pmi"
	"github.com/cognicore/cocoscore/pkg/cocoscore/store"
)

// Dialect describes the differences between SQL backends
type Dialect struct {
	Name string

	// Schema statements, run in order at open.
	Schema []string

	// Numbered switches ? placeholders to $1, $2, ...
	Numbered bool

	// BulkInsert returns the statement used to insert many rows into table.
	// When flush is true the statement must be executed once more without
	// arguments after the last row.
	BulkInsert func(table string, columns ...string) (stmt string, flush bool)
}

// Insert is the default BulkInsert: one parameterized INSERT per row
func Insert(table string, columns ...string) (string, bool) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), marks), false
}

// Store is a store.Store backed by a *sql.DB
type Store struct {
	db *sql.DB
	d  Dialect
}

// New initializes the schema and returns the store. The store owns db.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	if d.BulkInsert == nil {
		d.BulkInsert = Insert
	}
	s := &Store{db: db, d: d}
	for _, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s schema: %w", d.Name, err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	if !s.d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// SaveRun stores a run, replacing any run with the same ID
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	if err := r.Validate(); err != nil {
		return err
	}
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.deleteRun(ctx, tx, r.ID); err != nil {
			return fmt.Errorf("replace run %s: %w", r.ID, err)
		}

		_, err := tx.ExecContext(ctx, s.q(`
INSERT INTO runs (id, pipeline, created_at, config, exponent, pairs, entities, total)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			r.ID, r.Pipeline, r.CreatedAt.UnixNano(), string(cfg), r.Exponent,
			r.Counts.UniquePairs(), r.Counts.UniqueEntities(), r.Counts.Total())
		if err != nil {
			return fmt.Errorf("insert run %s: %w", r.ID, err)
		}

		pairs := r.Counts.Pairs()
		err = s.bulk(ctx, tx, "run_pairs", []string{"run_id", "a", "b", "count", "score"}, len(pairs), func(i int) []any {
			p := pairs[i]
			score := sql.NullFloat64{}
			if v, ok := r.Scores[p]; ok {
				score = sql.NullFloat64{Float64: v, Valid: true}
			}
			return []any{r.ID, p.A, p.B, r.Counts.PairCount(p.A, p.B), score}
		})
		if err != nil {
			return err
		}

		entities := r.Counts.Entities()
		return s.bulk(ctx, tx, "run_entities", []string{"run_id", "entity", "count"}, len(entities), func(i int) []any {
			return []any{r.ID, entities[i], r.Counts.EntityCount(entities[i])}
		})
	})
}

// deleteRun removes the rows of a run and reports whether the run existed
func (s *Store) deleteRun(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	for _, table := range []string{"run_pairs", "run_entities"} {
		if _, err := tx.ExecContext(ctx, s.q("DELETE FROM "+table+" WHERE run_id = ?"), id); err != nil {
			return false, err
		}
	}
	res, err := tx.ExecContext(ctx, s.q("DELETE FROM runs WHERE id = ?"), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteRun removes a run with its pairs and entities
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		found, err := s.deleteRun(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("delete run %s: %w", id, err)
		}
		if !found {
			return store.NotFound(id)
		}
		return nil
	})
}

func (s *Store) bulk(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, row func(i int) []any) error {
	query, flush := s.d.BulkInsert(table, columns...)
	if !flush {
		query = s.q(query)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	if flush {
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flush %s: %w", table, err)
		}
	}
	return nil
}

const runColumns = "id, pipeline, created_at, config, exponent, pairs, entities, total"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (store.RunInfo, error) {
	var (
		info    store.RunInfo
		created int64
		cfg     string
	)
	if err := row.Scan(&info.ID, &info.Pipeline, &created, &cfg, &info.Exponent, &info.Pairs, &info.Entities, &info.Total); err != nil {
		return store.RunInfo{}, err
	}
	info.CreatedAt = time.Unix(0, created).UTC()
	var c aggregate.Config
	if err := json.Unmarshal([]byte(cfg), &c); err != nil {
		return store.RunInfo{}, fmt.Errorf("decode config of run %s: %w", info.ID, err)
	}
	info.Config = c
	return info, nil
}

// GetRun returns the metadata of a run
func (s *Store) GetRun(ctx context.Context, id string) (store.RunInfo, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+runColumns+" FROM runs WHERE id = ?"), id)
	info, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RunInfo{}, store.NotFound(id)
	}
	if err != nil {
		return store.RunInfo{}, err
	}
	return info, nil
}

// ListRuns returns runs newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RunInfo
	for rows.Next() {
		info, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

type pairRow struct {
	pair  pmi.Pair
	count float64
	score sql.NullFloat64
}

// LoadRun reads a full run. Counts are rebuilt from pair rows in canonical
// order, which reproduces the marginals exactly.
func (s *Store) LoadRun(ctx context.Context, id string) (*store.Run, error) {
	info, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q("SELECT a, b, count, score FROM run_pairs WHERE run_id = ?"), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []pairRow
	for rows.Next() {
		var r pairRow
		if err := rows.Scan(&r.pair.A, &r.pair.B, &r.count, &r.score); err != nil {
			return nil, err
		}
		pairs = append(pairs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pair.Less(pairs[j].pair) })

	run := &store.Run{
		ID:        info.ID,
		Pipeline:  info.Pipeline,
		CreatedAt: info.CreatedAt,
		Config:    info.Config,
		Exponent:  info.Exponent,
		Counts:    pmi.NewWeightedCounts(),
		Scores:    make(pmi.Scores, len(pairs)),
	}
	for _, r := range pairs {
		run.Counts.AddPair(r.pair, r.count)
		if r.score.Valid {
			run.Scores[r.pair] = r.score.Float64
		}
	}
	return run, nil
}

func (s *Store) runTotal(ctx context.Context, id string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, s.q("SELECT total FROM runs WHERE id = ?"), id).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.NotFound(id)
	}
	return total, err
}

// PairScore explains the score of one pair in a run
func (s *Store) PairScore(ctx context.Context, id, a, b string) (store.PairResult, error) {
	p, err := store.CheckPair(a, b)
	if err != nil {
		return store.PairResult{}, err
	}
	total, err := s.runTotal(ctx, id)
	if err != nil {
		return store.PairResult{}, err
	}

	res := store.PairResult{A: p.A, B: p.B, Total: total}
	var score sql.NullFloat64
	err = s.db.QueryRowContext(ctx, s.q(`
SELECT count, score FROM run_pairs WHERE run_id = ? AND a = ? AND b = ?`), id, p.A, p.B).Scan(&res.Count, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return store.PairResult{}, store.MissingPair(id, p)
	}
	if err != nil {
		return store.PairResult{}, err
	}
	res.Score, res.Scored = score.Float64, score.Valid

	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT entity, count FROM run_entities WHERE run_id = ? AND entity IN (?, ?)`), id, p.A, p.B)
	if err != nil {
		return store.PairResult{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			entity string
			count  float64
		)
		if err := rows.Scan(&entity, &count); err != nil {
			return store.PairResult{}, err
		}
		if entity == p.A {
			res.CountA = count
		} else {
			res.CountB = count
		}
	}
	return res, rows.Err()
}

// TopPartners returns the k best scoring partners of an entity
func (s *Store) TopPartners(ctx context.Context, id, entity string, k int) ([]store.Partner, error) {
	if _, err := s.runTotal(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
SELECT
	CASE WHEN a = ? THEN b ELSE a END AS partner,
	count,
	score
FROM run_pairs
WHERE run_id = ? AND (a = ? OR b = ?)`), entity, id, entity, entity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []store.Partner
	for rows.Next() {
		var (
			p     store.Partner
			score sql.NullFloat64
		)
		if err := rows.Scan(&p.Entity, &p.Count, &score); err != nil {
			return nil, err
		}
		p.Score, p.Scored = score.Float64, score.Valid
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.SortPartners(partners, k), nil
}
