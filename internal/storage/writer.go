package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/symgraph/internal/model"
)

// Embedding is a stored symbol vector. TextHash identifies the text it was
// computed from, so unchanged symbols can reuse it.
type Embedding struct {
	SymbolID string
	Model    string
	TextHash string
	Vector   []float32
}

// FileUpdate is everything Pass 1 produced for one file plus the embeddings of
// its embeddable symbols. Embeddings is the complete set for the file: a
// symbol missing from it is stored without a vector and left for backfill.
type FileUpdate struct {
	File          *model.File
	Symbols       []*model.Symbol
	Relationships []*model.Relationship
	Pending       []*model.PendingRelationship
	Identifiers   []*model.Identifier
	Types         []*model.TypeInfo
	Embeddings    []Embedding
}

// CommitResult reports how a commit changed the file's symbol set. Pass 2 is
// scoped with it.
type CommitResult struct {
	OldNames   []string
	NewNames   []string
	AddedNames []string
	RemovedIDs []string
}

// ChangedNames is the union of old and new names, sorted.
func (r *CommitResult) ChangedNames() []string {
	return sortedUnion(r.OldNames, r.NewNames)
}

// CommitFile replaces everything stored for one file in a single transaction:
// symbols, FTS rows (by trigger), types, relationships originating in the
// file, pending rows, identifiers, embeddings and vector entries.
//
// Symbols whose id survives are updated in place, so edges from other files
// to them are kept. Symbols that disappeared are deleted and edges to them
// cascade away.
func (s *Store) CommitFile(ctx context.Context, u *FileUpdate) (*CommitResult, error) {
	if u == nil || u.File == nil {
		return nil, fmt.Errorf("file update requires a file record")
	}
	path := u.File.Path

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := fileSymbols(ctx, tx, path)
	if err != nil {
		return nil, err
	}

	newIDs := make(map[string]bool, len(u.Symbols))
	for _, sym := range u.Symbols {
		newIDs[sym.ID] = true
	}
	var removed []string
	for id := range old {
		if !newIDs[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	batch := s.vectors.Begin(tx)
	if err := clearFile(ctx, tx, batch, path, old); err != nil {
		return nil, err
	}
	if err := deleteSymbols(ctx, tx, removed); err != nil {
		return nil, err
	}

	u.File.SymbolCount = len(u.Symbols)
	if err := upsertFile(ctx, tx, u.File); err != nil {
		return nil, err
	}
	if err := upsertSymbols(ctx, tx, u.Symbols); err != nil {
		return nil, err
	}
	if err := upsertTypes(ctx, tx, u.Types); err != nil {
		return nil, err
	}
	if err := upsertRelationships(ctx, tx, u.Relationships); err != nil {
		return nil, err
	}
	if err := upsertPending(ctx, tx, u.Pending); err != nil {
		return nil, err
	}
	if err := upsertIdentifiers(ctx, tx, u.Identifiers); err != nil {
		return nil, err
	}
	if err := upsertEmbeddings(ctx, tx, batch, u.Embeddings, s.opts.Dimensions); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit %s: %w", path, err)
	}
	s.afterCommit(ctx, batch, removed, u.Symbols)

	res := &CommitResult{RemovedIDs: removed}
	oldNames := make(map[string]bool)
	for _, name := range old {
		oldNames[name] = true
	}
	for name := range oldNames {
		res.OldNames = append(res.OldNames, name)
	}
	seen := make(map[string]bool)
	for _, sym := range u.Symbols {
		if _, existed := old[sym.ID]; !existed {
			res.AddedNames = append(res.AddedNames, sym.Name)
		}
		if !seen[sym.Name] {
			seen[sym.Name] = true
			res.NewNames = append(res.NewNames, sym.Name)
		}
	}
	sort.Strings(res.OldNames)
	sort.Strings(res.NewNames)
	res.AddedNames = sortedUnion(res.AddedNames)
	return res, nil
}

// DeleteFile removes a file and everything derived from it in one transaction.
// Deleting a file that is not indexed is a no-op.
func (s *Store) DeleteFile(ctx context.Context, path string) (*CommitResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	old, err := fileSymbols(ctx, tx, path)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(old))
	for id := range old {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	batch := s.vectors.Begin(tx)
	if err := clearFile(ctx, tx, batch, path, old); err != nil {
		return nil, err
	}
	if err := deleteSymbols(ctx, tx, ids); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
		return nil, fmt.Errorf("failed to delete file record %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete of %s: %w", path, err)
	}
	s.afterCommit(ctx, batch, ids, nil)

	res := &CommitResult{RemovedIDs: ids}
	for _, name := range old {
		res.OldNames = append(res.OldNames, name)
	}
	res.OldNames = sortedUnion(res.OldNames)
	return res, nil
}

// afterCommit applies changes to indexes that live outside the transaction.
// Failures leave those indexes stale until the next integrity check.
func (s *Store) afterCommit(ctx context.Context, batch VectorBatch, removed []string, indexed []*model.Symbol) {
	if err := batch.Commit(ctx); err != nil {
		log.Printf("Warning: failed to update vector index: %v", err)
	}
	for _, o := range s.observers {
		if len(removed) > 0 {
			if err := o.Remove(ctx, removed); err != nil {
				log.Printf("Warning: failed to remove symbols from %s index: %v", o.Name(), err)
			}
		}
		if len(indexed) > 0 {
			if err := o.Index(ctx, indexed); err != nil {
				log.Printf("Warning: failed to index symbols in %s index: %v", o.Name(), err)
			}
		}
	}
}

// fileSymbols maps the ids of a file's stored symbols to their names.
func fileSymbols(ctx context.Context, tx *sql.Tx, path string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, name FROM symbols WHERE file_path = ?", path)
	if err != nil {
		return nil, fmt.Errorf("failed to load symbols of %s: %w", path, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

// clearFile removes the per-file rows that are rewritten wholesale on commit.
// Symbols are handled separately so surviving ids keep their incoming edges.
func clearFile(ctx context.Context, tx *sql.Tx, batch VectorBatch, path string, old map[string]string) error {
	stmts := []struct {
		what  string
		query string
	}{
		{"relationships", "DELETE FROM relationships WHERE file_path = ?"},
		{"pending relationships", "DELETE FROM pending_relationships WHERE file_path = ?"},
		{"identifiers", "DELETE FROM identifiers WHERE file_path = ?"},
		{"types", "DELETE FROM symbol_types WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)"},
		{"embeddings", "DELETE FROM embeddings WHERE symbol_id IN (SELECT id FROM symbols WHERE file_path = ?)"},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, path); err != nil {
			return fmt.Errorf("failed to delete %s of %s: %w", st.what, path, err)
		}
	}

	ids := make([]string, 0, len(old))
	for id := range old {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return batch.Delete(ids...)
}

func deleteSymbols(ctx context.Context, tx *sql.Tx, ids []string) error {
	for _, chunk := range chunkStrings(ids, maxVariables) {
		query, args, err := sq.Delete("symbols").Where(sq.Eq{"id": chunk}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete symbols: %w", err)
		}
	}
	return nil
}

// prepareUpsert builds an INSERT for columns with an upsert suffix and
// prepares it once for the whole batch.
func prepareUpsert(ctx context.Context, tx *sql.Tx, table string, columns []string, suffix string) (*sql.Stmt, error) {
	query, _, err := sq.Insert(table).
		Columns(columns...).
		Values(make([]any, len(columns))...).
		Suffix(suffix).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s insert: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	return stmt, nil
}

// updateAll renders "ON CONFLICT(key) DO UPDATE SET col = excluded.col, ...".
func updateAll(key string, columns []string) string {
	suffix := "ON CONFLICT(" + key + ") DO UPDATE SET "
	first := true
	for _, c := range columns {
		if c == key {
			continue
		}
		if !first {
			suffix += ", "
		}
		suffix += c + " = excluded." + c
		first = false
	}
	return suffix
}

var fileColumns = []string{"path", "language", "hash", "size", "last_modified", "content", "symbol_count", "indexed_at"}

func upsertFile(ctx context.Context, tx *sql.Tx, f *model.File) error {
	stmt, err := prepareUpsert(ctx, tx, "files", fileColumns, updateAll("path", fileColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, f.Path, f.Language, f.Hash, f.Size, f.LastModified,
		f.Content, f.SymbolCount, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write file record %s: %w", f.Path, err)
	}
	return nil
}

var symbolWriteColumns = append(append([]string{}, symbolColumnNames...), "terms")

func upsertSymbols(ctx context.Context, tx *sql.Tx, symbols []*model.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	stmt, err := prepareUpsert(ctx, tx, "symbols", symbolWriteColumns, updateAll("id", symbolWriteColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sym := range symbols {
		if !sym.Kind.Valid() {
			return fmt.Errorf("symbol %s has unknown kind %q", sym.ID, sym.Kind)
		}
		meta, err := encodeMetadata(sym.Metadata)
		if err != nil {
			return fmt.Errorf("symbol %s: %w", sym.ID, err)
		}
		vis := sym.Visibility
		if vis == "" {
			vis = model.VisibilityPublic
		}
		_, err = stmt.ExecContext(ctx,
			sym.ID, sym.Name, string(sym.Kind), sym.Language, sym.FilePath,
			sym.StartLine, sym.StartColumn, sym.EndLine, sym.EndColumn, sym.StartByte, sym.EndByte,
			sym.Signature, sym.DocComment, string(vis), nullable(sym.ParentID), meta,
			model.Terms(sym.Name),
		)
		if err != nil {
			return fmt.Errorf("failed to write symbol %s: %w", sym.ID, err)
		}
	}
	return nil
}

var typeColumns = []string{"symbol_id", "resolved_type", "language", "is_inferred"}

func upsertTypes(ctx context.Context, tx *sql.Tx, types []*model.TypeInfo) error {
	if len(types) == 0 {
		return nil
	}
	stmt, err := prepareUpsert(ctx, tx, "symbol_types", typeColumns, updateAll("symbol_id", typeColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range types {
		if _, err := stmt.ExecContext(ctx, t.SymbolID, t.ResolvedType, t.Language, boolToInt(t.IsInferred)); err != nil {
			return fmt.Errorf("failed to write type of %s: %w", t.SymbolID, err)
		}
	}
	return nil
}

var relationshipWriteColumns = relationshipColumnNames

func upsertRelationships(ctx context.Context, tx *sql.Tx, rels []*model.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	stmt, err := prepareUpsert(ctx, tx, "relationships", relationshipWriteColumns, updateAll("id", relationshipWriteColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rels {
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("relationship %s: %w", r.ID, err)
		}
		_, err = stmt.ExecContext(ctx, r.ID, r.FromSymbolID, r.ToSymbolID, string(r.Kind),
			r.FilePath, r.LineNumber, r.Confidence, meta)
		if err != nil {
			return fmt.Errorf("failed to write relationship %s (%s -> %s): %w", r.ID, r.FromSymbolID, r.ToSymbolID, err)
		}
	}
	return nil
}

var pendingColumns = []string{"id", "from_symbol_id", "callee_name", "kind", "file_path", "line_number", "confidence"}

// upsertPending writes pending rows as unresolved. An existing row keeps its
// resolved_to until Pass 2 revisits it.
func upsertPending(ctx context.Context, tx *sql.Tx, pending []*model.PendingRelationship) error {
	if len(pending) == 0 {
		return nil
	}
	stmt, err := prepareUpsert(ctx, tx, "pending_relationships", pendingColumns, updateAll("id", pendingColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range pending {
		_, err := stmt.ExecContext(ctx, p.ID, p.FromSymbolID, p.CalleeName, string(p.Kind),
			p.FilePath, p.LineNumber, p.Confidence)
		if err != nil {
			return fmt.Errorf("failed to write pending relationship %s: %w", p.ID, err)
		}
	}
	return nil
}

var identifierColumns = []string{
	"id", "name", "kind", "language", "file_path",
	"start_line", "start_column", "end_line", "end_column", "start_byte", "end_byte",
	"containing_symbol_id", "target_symbol_id", "confidence", "code_context",
}

func upsertIdentifiers(ctx context.Context, tx *sql.Tx, idents []*model.Identifier) error {
	if len(idents) == 0 {
		return nil
	}
	stmt, err := prepareUpsert(ctx, tx, "identifiers", identifierColumns, updateAll("id", identifierColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range idents {
		_, err := stmt.ExecContext(ctx, id.ID, id.Name, string(id.Kind), id.Language, id.FilePath,
			id.StartLine, id.StartColumn, id.EndLine, id.EndColumn, id.StartByte, id.EndByte,
			nullable(id.ContainingSymbolID), nullable(id.TargetSymbolID), id.Confidence, id.CodeContext)
		if err != nil {
			return fmt.Errorf("failed to write identifier %s: %w", id.ID, err)
		}
	}
	return nil
}

var embeddingColumns = []string{"symbol_id", "model", "dimensions", "text_hash", "vector", "created_at"}

// upsertEmbeddings stores embedding values and their vector entries in the
// same batch.
func upsertEmbeddings(ctx context.Context, tx *sql.Tx, batch VectorBatch, embs []Embedding, dims int) error {
	if len(embs) == 0 {
		return nil
	}
	stmt, err := prepareUpsert(ctx, tx, "embeddings", embeddingColumns, updateAll("symbol_id", embeddingColumns))
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range embs {
		if len(e.Vector) != dims {
			return fmt.Errorf("embedding for %s has %d dimensions, store expects %d", e.SymbolID, len(e.Vector), dims)
		}
		if _, err := stmt.ExecContext(ctx, e.SymbolID, e.Model, len(e.Vector), e.TextHash, SerializeEmbedding(e.Vector), now); err != nil {
			return fmt.Errorf("failed to write embedding for %s: %w", e.SymbolID, err)
		}
		if err := batch.Upsert(e.SymbolID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

// StoreFileInfo writes or replaces one file record.
func (s *Store) StoreFileInfo(ctx context.Context, f *model.File) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertFile(ctx, tx, f)
	})
}

// BulkStoreSymbols upserts symbols in one transaction. workspaceID must be
// the id this database is bound to.
func (s *Store) BulkStoreSymbols(ctx context.Context, symbols []*model.Symbol, workspaceID string) error {
	if workspaceID != s.workspaceID {
		return fmt.Errorf("%w: store holds %s, got %s", ErrWorkspaceMismatch, s.workspaceID, workspaceID)
	}
	if err := s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertSymbols(ctx, tx, symbols)
	}); err != nil {
		return err
	}
	for _, o := range s.observers {
		if err := o.Index(ctx, symbols); err != nil {
			log.Printf("Warning: failed to index symbols in %s index: %v", o.Name(), err)
		}
	}
	return nil
}

// BulkStoreRelationships upserts resolved edges in one transaction. An edge
// whose endpoint does not exist fails the whole batch.
func (s *Store) BulkStoreRelationships(ctx context.Context, rels []*model.Relationship) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertRelationships(ctx, tx, rels)
	})
}

// BulkStorePending upserts pending relationships in one transaction.
func (s *Store) BulkStorePending(ctx context.Context, pending []*model.PendingRelationship) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertPending(ctx, tx, pending)
	})
}

// BulkStoreIdentifiers upserts usage sites in one transaction.
func (s *Store) BulkStoreIdentifiers(ctx context.Context, idents []*model.Identifier) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertIdentifiers(ctx, tx, idents)
	})
}

// inTx runs fn in a write transaction under the writer lock.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.inTxLocked(ctx, fn)
}

func (s *Store) inTxLocked(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func sortedUnion(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, v := range l {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}
