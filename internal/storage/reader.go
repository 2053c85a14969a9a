package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/symgraph/internal/model"
)

var symbolColumnNames = []string{
	"id", "name", "kind", "language", "file_path",
	"start_line", "start_column", "end_line", "end_column", "start_byte", "end_byte",
	"signature", "doc_comment", "visibility", "parent_id", "metadata",
}

func symbolColumnsPrefixed(alias string) string {
	cols := make([]string, len(symbolColumnNames))
	for i, c := range symbolColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSymbol reads the symbolColumnNames columns followed by any extra columns.
func scanSymbol(row rowScanner, extra ...any) (*model.Symbol, error) {
	var (
		sym      model.Symbol
		kind     string
		vis      string
		parentID sql.NullString
		meta     string
	)
	dest := []any{
		&sym.ID, &sym.Name, &kind, &sym.Language, &sym.FilePath,
		&sym.StartLine, &sym.StartColumn, &sym.EndLine, &sym.EndColumn, &sym.StartByte, &sym.EndByte,
		&sym.Signature, &sym.DocComment, &vis, &parentID, &meta,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	sym.Kind = model.SymbolKind(kind)
	sym.Visibility = model.Visibility(vis)
	sym.ParentID = parentID.String
	m, err := decodeMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("symbol %s: %w", sym.ID, err)
	}
	sym.Metadata = m
	return &sym, nil
}

func collectSymbols(rows *sql.Rows) ([]*model.Symbol, error) {
	defer rows.Close()
	var out []*model.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// GetSymbol returns one symbol by id, ErrNotFound if absent.
func (s *Store) GetSymbol(ctx context.Context, id string) (*model.Symbol, error) {
	query, args, err := sq.Select(symbolColumnNames...).From("symbols").
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	sym, err := scanSymbol(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("symbol %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load symbol %s: %w", id, err)
	}
	return sym, nil
}

// GetSymbols loads symbols by id; missing ids are skipped.
func (s *Store) GetSymbols(ctx context.Context, ids []string) (map[string]*model.Symbol, error) {
	out := make(map[string]*model.Symbol, len(ids))
	for _, chunk := range chunkStrings(ids, maxVariables) {
		query, args, err := sq.Select(symbolColumnNames...).From("symbols").
			Where(sq.Eq{"id": chunk}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to load symbols: %w", err)
		}
		syms, err := collectSymbols(rows)
		if err != nil {
			return nil, err
		}
		for _, sym := range syms {
			out[sym.ID] = sym
		}
	}
	return out, nil
}

// SymbolQuery filters FindSymbols. Empty fields match everything.
type SymbolQuery struct {
	Name     string
	Kind     model.SymbolKind
	Language string
	FilePath string
	Limit    int
}

// FindSymbols returns symbols matching every non-empty filter, ordered by
// file and position.
func (s *Store) FindSymbols(ctx context.Context, q SymbolQuery) ([]*model.Symbol, error) {
	b := sq.Select(symbolColumnNames...).From("symbols")
	if q.Name != "" {
		b = b.Where(sq.Eq{"name": q.Name})
	}
	if q.Kind != "" {
		b = b.Where(sq.Eq{"kind": string(q.Kind)})
	}
	if q.Language != "" {
		b = b.Where(sq.Eq{"language": q.Language})
	}
	if q.FilePath != "" {
		b = b.Where(sq.Eq{"file_path": q.FilePath})
	}
	b = b.OrderBy("file_path", "start_byte", "id")
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	return collectSymbols(rows)
}

// FindSymbolsByName is FindSymbols by exact name.
func (s *Store) FindSymbolsByName(ctx context.Context, name string) ([]*model.Symbol, error) {
	return s.FindSymbols(ctx, SymbolQuery{Name: name})
}

// SymbolsInFile returns the symbols of one file in source order.
func (s *Store) SymbolsInFile(ctx context.Context, path string) ([]*model.Symbol, error) {
	return s.FindSymbols(ctx, SymbolQuery{FilePath: path})
}

// SymbolAt returns the innermost symbol whose span contains line in path.
func (s *Store) SymbolAt(ctx context.Context, path string, line int) (*model.Symbol, error) {
	query, args, err := sq.Select(symbolColumnNames...).From("symbols").
		Where(sq.Eq{"file_path": path}).
		Where("start_line <= ? AND end_line >= ?", line, line).
		Where(sq.NotEq{"kind": []string{string(model.KindImport), string(model.KindExport)}}).
		OrderBy("(end_byte - start_byte)", "id").
		Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	sym, err := scanSymbol(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s:%d: %w", path, line, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load symbol at %s:%d: %w", path, line, err)
	}
	return sym, nil
}

// RelationshipQuery filters ListRelationships. An empty SymbolID lists every edge.
type RelationshipQuery struct {
	SymbolID  string
	Direction model.Direction
	Kind      model.RelationshipKind
	Limit     int
}

var relationshipColumnNames = []string{
	"id", "from_symbol_id", "to_symbol_id", "kind", "file_path", "line_number", "confidence", "metadata",
}

// ListRelationships returns resolved edges touching a symbol.
func (s *Store) ListRelationships(ctx context.Context, q RelationshipQuery) ([]*model.Relationship, error) {
	b := sq.Select(relationshipColumnNames...).From("relationships")
	if q.SymbolID != "" {
		switch q.Direction {
		case model.DirectionOutgoing:
			b = b.Where(sq.Eq{"from_symbol_id": q.SymbolID})
		case model.DirectionIncoming:
			b = b.Where(sq.Eq{"to_symbol_id": q.SymbolID})
		default:
			b = b.Where(sq.Or{sq.Eq{"from_symbol_id": q.SymbolID}, sq.Eq{"to_symbol_id": q.SymbolID}})
		}
	}
	if q.Kind != "" {
		b = b.Where(sq.Eq{"kind": string(q.Kind)})
	}
	b = b.OrderBy("file_path", "line_number", "id")
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var out []*model.Relationship
	for rows.Next() {
		var (
			r    model.Relationship
			kind string
			meta string
		)
		if err := rows.Scan(&r.ID, &r.FromSymbolID, &r.ToSymbolID, &kind, &r.FilePath, &r.LineNumber, &r.Confidence, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		r.Kind = model.RelationshipKind(kind)
		if r.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("relationship %s: %w", r.ID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// IdentifiersInFile returns usage sites of a file in source order.
func (s *Store) IdentifiersInFile(ctx context.Context, path string) ([]*model.Identifier, error) {
	query, args, err := sq.Select(
		"id", "name", "kind", "language", "file_path",
		"start_line", "start_column", "end_line", "end_column", "start_byte", "end_byte",
		"containing_symbol_id", "target_symbol_id", "confidence", "code_context",
	).From("identifiers").Where(sq.Eq{"file_path": path}).OrderBy("start_byte", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identifiers: %w", err)
	}
	defer rows.Close()

	var out []*model.Identifier
	for rows.Next() {
		var (
			id                 model.Identifier
			kind               string
			containing, target sql.NullString
		)
		if err := rows.Scan(&id.ID, &id.Name, &kind, &id.Language, &id.FilePath,
			&id.StartLine, &id.StartColumn, &id.EndLine, &id.EndColumn, &id.StartByte, &id.EndByte,
			&containing, &target, &id.Confidence, &id.CodeContext); err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		id.Kind = model.IdentifierKind(kind)
		id.ContainingSymbolID = containing.String
		id.TargetSymbolID = target.String
		out = append(out, &id)
	}
	return out, rows.Err()
}

// SymbolType returns the stored type of a symbol, ErrNotFound if none.
func (s *Store) SymbolType(ctx context.Context, symbolID string) (*model.TypeInfo, error) {
	var (
		t        model.TypeInfo
		inferred int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT symbol_id, resolved_type, language, is_inferred FROM symbol_types WHERE symbol_id = ?",
		symbolID).Scan(&t.SymbolID, &t.ResolvedType, &t.Language, &inferred)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("type of %s: %w", symbolID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load type of %s: %w", symbolID, err)
	}
	t.IsInferred = inferred != 0
	return &t, nil
}

// GetFile returns a file record, ErrNotFound if the file is not indexed.
func (s *Store) GetFile(ctx context.Context, path string) (*model.File, error) {
	var (
		f       model.File
		content sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT path, language, hash, size, last_modified, content, symbol_count
		FROM files WHERE path = ?`, path).
		Scan(&f.Path, &f.Language, &f.Hash, &f.Size, &f.LastModified, &content, &f.SymbolCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %s: %w", path, err)
	}
	f.Content = content.String
	return &f, nil
}

// FileHash returns the stored content hash of path, "" if it is not indexed.
func (s *Store) FileHash(ctx context.Context, path string) (string, error) {
	var h string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM files WHERE path = ?", path).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load hash of %s: %w", path, err)
	}
	return h, nil
}

// FileHashes maps every indexed path to its content hash.
func (s *Store) FileHashes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, hash FROM files")
	if err != nil {
		return nil, fmt.Errorf("failed to query file hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var p, h string
		if err := rows.Scan(&p, &h); err != nil {
			return nil, fmt.Errorf("failed to scan file hash: %w", err)
		}
		out[p] = h
	}
	return out, rows.Err()
}

// ListFiles returns file records without content, ordered by path.
func (s *Store) ListFiles(ctx context.Context) ([]*model.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, language, hash, size, last_modified, symbol_count
		FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var out []*model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.Path, &f.Language, &f.Hash, &f.Size, &f.LastModified, &f.SymbolCount); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// Stats summarizes the store.
type Stats struct {
	Files         int
	Symbols       int
	Relationships int
	Pending       int
	Unresolved    int
	Identifiers   int
	Embeddings    int
	Vectors       int
	ByLanguage    map[string]int
	ByKind        map[string]int
}

// Stats counts every table plus symbols per language and kind.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByLanguage: make(map[string]int), ByKind: make(map[string]int)}
	counts := []struct {
		dest  *int
		query string
	}{
		{&st.Files, "SELECT COUNT(*) FROM files"},
		{&st.Symbols, "SELECT COUNT(*) FROM symbols"},
		{&st.Relationships, "SELECT COUNT(*) FROM relationships"},
		{&st.Pending, "SELECT COUNT(*) FROM pending_relationships"},
		{&st.Unresolved, "SELECT COUNT(*) FROM pending_relationships WHERE resolved_to IS NULL"},
		{&st.Identifiers, "SELECT COUNT(*) FROM identifiers"},
		{&st.Embeddings, "SELECT COUNT(*) FROM embeddings"},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to run %q: %w", c.query, err)
		}
	}

	n, err := s.vectors.Count(ctx)
	if err != nil {
		return nil, err
	}
	st.Vectors = n

	for col, dest := range map[string]map[string]int{"language": st.ByLanguage, "kind": st.ByKind} {
		rows, err := s.db.QueryContext(ctx, "SELECT "+col+", COUNT(*) FROM symbols GROUP BY "+col)
		if err != nil {
			return nil, fmt.Errorf("failed to group symbols by %s: %w", col, err)
		}
		for rows.Next() {
			var k string
			var v int
			if err := rows.Scan(&k, &v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s count: %w", col, err)
			}
			dest[k] = v
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// maxVariables stays under SQLite's host parameter limit.
const maxVariables = 500

func chunkStrings(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}
