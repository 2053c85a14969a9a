package storage

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mvp-joe/symgraph/internal/model"
)

// SearchHit is a ranked search result.
type SearchHit struct {
	Symbol *model.Symbol
	// Score is higher for better matches. Keyword scores are negated bm25,
	// semantic scores are cosine similarity.
	Score float64
}

// SearchText runs a full-text query over symbol names, name terms,
// signatures and doc comments. Every query word must match, as a prefix.
// Names weigh most, then name terms, signatures and doc comments.
func (s *Store) SearchText(ctx context.Context, text string, limit int) ([]SearchHit, error) {
	match := buildFTSQuery(text)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+symbolColumnsPrefixed("s")+`, bm25(symbols_fts, 0.0, 10.0, 5.0, 2.0, 1.0, 0.0) AS rank
		FROM symbols_fts
		JOIN symbols s ON s.rowid = symbols_fts.rowid
		WHERE symbols_fts MATCH ?
		ORDER BY rank, s.id
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run keyword search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var rank float64
		sym, err := scanSymbol(rows, &rank)
		if err != nil {
			return nil, err
		}
		hits = append(hits, SearchHit{Symbol: sym, Score: -rank})
	}
	return hits, rows.Err()
}

// buildFTSQuery turns free text into an FTS5 expression. Each word becomes a
// quoted prefix term so user input never reaches the query parser as syntax.
func buildFTSQuery(text string) string {
	var terms []string
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		for _, word := range model.SplitIdentifier(field) {
			terms = append(terms, `"`+word+`"*`)
		}
	}
	return strings.Join(terms, " AND ")
}

// rebuildFTS repopulates the mirror from the symbols table.
func (s *Store) rebuildFTS(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin FTS rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM symbols_fts"); err != nil {
		return fmt.Errorf("failed to clear FTS index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO symbols_fts(rowid, symbol_id, name, terms, signature, doc_comment, file_path)
		SELECT rowid, id, name, terms, signature, doc_comment, file_path FROM symbols`); err != nil {
		return fmt.Errorf("failed to repopulate FTS index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit FTS rebuild: %w", err)
	}
	return nil
}

func (s *Store) countFTS(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols_fts").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count FTS rows: %w", err)
	}
	return n, nil
}
