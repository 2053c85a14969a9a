package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/mvp-joe/symgraph/internal/model"
)

// EmbeddingsForFile returns the stored embeddings of a file's symbols keyed by
// symbol id. The pipeline reuses those whose text hash is unchanged.
func (s *Store) EmbeddingsForFile(ctx context.Context, path string) (map[string]Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.symbol_id, e.model, e.text_hash, e.vector
		FROM embeddings e
		JOIN symbols s ON s.id = e.symbol_id
		WHERE s.file_path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings of %s: %w", path, err)
	}
	defer rows.Close()

	out := make(map[string]Embedding)
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out[e.SymbolID] = e
	}
	return out, rows.Err()
}

func scanEmbedding(row rowScanner) (Embedding, error) {
	var (
		e    Embedding
		blob []byte
	)
	if err := row.Scan(&e.SymbolID, &e.Model, &e.TextHash, &blob); err != nil {
		return e, fmt.Errorf("failed to scan embedding: %w", err)
	}
	vec, err := DeserializeEmbedding(blob)
	if err != nil {
		return e, fmt.Errorf("embedding of %s: %w", e.SymbolID, err)
	}
	e.Vector = vec
	return e, nil
}

// StoreEmbeddings persists embeddings and their vector entries together.
// Embeddings of symbols that no longer exist are skipped: the file changed
// while they were being computed.
func (s *Store) StoreEmbeddings(ctx context.Context, embs []Embedding) (int, error) {
	if len(embs) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	live := make([]Embedding, 0, len(embs))
	for _, e := range embs {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM symbols WHERE id = ?", e.SymbolID).Scan(&exists)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to check symbol %s: %w", e.SymbolID, err)
		}
		live = append(live, e)
	}

	batch := s.vectors.Begin(tx)
	if err := upsertEmbeddings(ctx, tx, batch, live, s.opts.Dimensions); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit embeddings: %w", err)
	}
	if err := batch.Commit(ctx); err != nil {
		log.Printf("Warning: failed to update vector index: %v", err)
	}
	return len(live), nil
}

// SymbolsWithoutEmbeddings returns embeddable symbols that have no stored
// vector yet, oldest files first. They are not errors, only candidates for
// backfill.
func (s *Store) SymbolsWithoutEmbeddings(ctx context.Context, limit int) ([]*model.Symbol, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+symbolColumnsPrefixed("s")+`
		FROM symbols s
		LEFT JOIN embeddings e ON e.symbol_id = s.id
		WHERE e.symbol_id IS NULL
		  AND s.kind NOT IN ('import', 'export')
		  AND (TRIM(s.signature) != '' OR TRIM(s.doc_comment) != '')
		ORDER BY s.file_path, s.start_byte, s.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unembedded symbols: %w", err)
	}
	return collectSymbols(rows)
}

// CountUnembedded counts embeddable symbols without a vector.
func (s *Store) CountUnembedded(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM symbols s
		LEFT JOIN embeddings e ON e.symbol_id = s.id
		WHERE e.symbol_id IS NULL
		  AND s.kind NOT IN ('import', 'export')
		  AND (TRIM(s.signature) != '' OR TRIM(s.doc_comment) != '')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unembedded symbols: %w", err)
	}
	return n, nil
}

// SemanticSearch returns the k symbols nearest to query. Score is cosine
// similarity.
func (s *Store) SemanticSearch(ctx context.Context, query []float32, k int) ([]SearchHit, error) {
	hits, err := s.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.SymbolID
	}
	syms, err := s.GetSymbols(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		sym, ok := syms[h.SymbolID]
		if !ok {
			// Stale vector for a deleted symbol; the integrity check drops it.
			continue
		}
		out = append(out, SearchHit{Symbol: sym, Score: 1 - h.Distance})
	}
	return out, nil
}

// allEmbeddings streams the embeddings table for vector rebuilds.
func (s *Store) allEmbeddings(ctx context.Context) ([]VectorEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT symbol_id, model, text_hash, vector FROM embeddings ORDER BY symbol_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var out []VectorEntry
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		if len(e.Vector) != s.opts.Dimensions {
			continue
		}
		out = append(out, VectorEntry{SymbolID: e.SymbolID, Vector: e.Vector})
	}
	return out, rows.Err()
}

func (s *Store) countEmbeddings(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings WHERE dimensions = ?", s.opts.Dimensions).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}
