package storage

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// InitVectorExtension registers sqlite-vec with every future connection.
// It is global and idempotent.
func InitVectorExtension() {
	sqlite_vec.Auto()
}

// VectorEntry is one stored vector.
type VectorEntry struct {
	SymbolID string
	Vector   []float32
}

// VectorHit is a nearest-neighbour result. Distance is cosine distance,
// lower is closer.
type VectorHit struct {
	SymbolID string
	Distance float64
}

// VectorIndex is the approximate-nearest-neighbour index over symbol
// embeddings. The embeddings table is its source of truth: Rebuild restores
// it from there.
type VectorIndex interface {
	// Name identifies the index in integrity reports.
	Name() string
	// Begin starts a batch bound to tx. Indexes living inside SQLite write
	// through tx; others buffer until Commit.
	Begin(tx *sql.Tx) VectorBatch
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)
	Count(ctx context.Context) (int, error)
	Rebuild(ctx context.Context, entries []VectorEntry) error
	Close() error
}

// VectorBatch collects vector changes for one transaction.
type VectorBatch interface {
	Upsert(id string, vec []float32) error
	Delete(ids ...string) error
	// Commit applies buffered changes once the SQLite transaction committed.
	Commit(ctx context.Context) error
}

// sqliteVecIndex stores vectors in a vec0 virtual table next to the graph,
// so vector writes share the file transaction.
type sqliteVecIndex struct {
	db         *sql.DB
	dimensions int
}

func newSQLiteVecIndex(db *sql.DB, dimensions int) (*sqliteVecIndex, error) {
	idx := &sqliteVecIndex{db: db, dimensions: dimensions}
	if err := idx.create(db); err != nil {
		return nil, err
	}
	return idx, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (v *sqliteVecIndex) create(e execer) error {
	createSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS symbols_vec USING vec0(
			symbol_id TEXT PRIMARY KEY,
			embedding float[%d]
		)
	`, v.dimensions)
	if _, err := e.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

func (v *sqliteVecIndex) Name() string { return "vector" }

func (v *sqliteVecIndex) Begin(tx *sql.Tx) VectorBatch {
	return &sqliteVecBatch{tx: tx, dimensions: v.dimensions}
}

func (v *sqliteVecIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	if len(query) != v.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(query), v.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query embedding: %w", err)
	}

	rows, err := v.db.QueryContext(ctx, `
		SELECT symbol_id, vec_distance_cosine(embedding, ?) AS distance
		FROM symbols_vec
		ORDER BY distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.SymbolID, &h.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (v *sqliteVecIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols_vec").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// Rebuild recreates the vec0 table from entries in one transaction.
func (v *sqliteVecIndex) Rebuild(ctx context.Context, entries []VectorEntry) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin vector rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DROP TABLE IF EXISTS symbols_vec"); err != nil {
		return fmt.Errorf("failed to drop vector index: %w", err)
	}
	if err := v.create(tx); err != nil {
		return err
	}
	batch := v.Begin(tx)
	for _, e := range entries {
		if err := batch.Upsert(e.SymbolID, e.Vector); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vector rebuild: %w", err)
	}
	return nil
}

func (v *sqliteVecIndex) Close() error { return nil }

type sqliteVecBatch struct {
	tx         *sql.Tx
	dimensions int
}

// Upsert deletes then inserts: vec0 tables do not support INSERT OR REPLACE.
func (b *sqliteVecBatch) Upsert(id string, vec []float32) error {
	if len(vec) != b.dimensions {
		return fmt.Errorf("vector for %s has %d dimensions, index expects %d", id, len(vec), b.dimensions)
	}
	if _, err := b.tx.Exec("DELETE FROM symbols_vec WHERE symbol_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete vector for symbol %s: %w", id, err)
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding for symbol %s: %w", id, err)
	}
	if _, err := b.tx.Exec("INSERT INTO symbols_vec (symbol_id, embedding) VALUES (?, ?)", id, blob); err != nil {
		return fmt.Errorf("failed to insert vector for symbol %s: %w", id, err)
	}
	return nil
}

func (b *sqliteVecBatch) Delete(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt, err := b.tx.Prepare("DELETE FROM symbols_vec WHERE symbol_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare vector delete statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("failed to delete vector for symbol %s: %w", id, err)
		}
	}
	return nil
}

// Commit is a no-op: the rows were written inside the transaction.
func (b *sqliteVecBatch) Commit(ctx context.Context) error { return nil }
