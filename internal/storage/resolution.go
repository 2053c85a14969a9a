package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/symgraph/internal/model"
)

// Candidate is a possible target of a pending relationship.
type Candidate struct {
	ID        string
	Name      string
	Kind      model.SymbolKind
	Language  string
	FilePath  string
	StartLine int
}

// ImportRef is one import binding of a file: the local name and the module
// or path it came from.
type ImportRef struct {
	Name     string
	Source   string
	Imported string
}

// CallerFile describes the file a pending relationship originates in.
type CallerFile struct {
	Path     string
	Language string
	Imports  []ImportRef
}

// PendingQuery scopes which pending relationships Pass 2 revisits. All
// overrides the other filters; otherwise a row matches by callee name or by
// file.
type PendingQuery struct {
	All            bool
	CalleeNames    []string
	FilePaths      []string
	OnlyUnresolved bool
}

// PendingRecord is a stored pending relationship and its current target.
type PendingRecord struct {
	model.PendingRelationship
	// ResolvedTo is the promoted target, empty while unresolved.
	ResolvedTo string
}

// Resolution is the Pass 2 decision for one pending relationship. An empty
// Target leaves it unresolved.
type Resolution struct {
	Pending PendingRecord
	Target  string
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ResolutionTx is the view Pass 2 works through: reads and writes share one
// transaction, so resolution sees a consistent snapshot of the name index.
type ResolutionTx struct {
	q queryer
}

// RunResolution runs fn in one write transaction under the writer lock. No
// file commit can interleave with it.
func (s *Store) RunResolution(ctx context.Context, fn func(rt *ResolutionTx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&ResolutionTx{q: tx})
	})
}

// ApplyResolutions writes Pass 2 decisions in their own transaction.
func (s *Store) ApplyResolutions(ctx context.Context, resolutions []Resolution) error {
	return s.RunResolution(ctx, func(rt *ResolutionTx) error {
		return rt.Apply(ctx, resolutions)
	})
}

// NameIndex reads candidates outside a resolution transaction.
func (s *Store) NameIndex(ctx context.Context, names []string) (map[string][]Candidate, error) {
	return (&ResolutionTx{q: s.db}).NameIndex(ctx, names)
}

// PendingRelationships reads pending rows outside a resolution transaction.
func (s *Store) PendingRelationships(ctx context.Context, q PendingQuery) ([]PendingRecord, error) {
	return (&ResolutionTx{q: s.db}).Pending(ctx, q)
}

// ImportsByFile reads caller files outside a resolution transaction.
func (s *Store) ImportsByFile(ctx context.Context, paths []string) (map[string]*CallerFile, error) {
	return (&ResolutionTx{q: s.db}).ImportsByFile(ctx, paths)
}

// NameIndex maps symbol names to their definitions across the workspace.
// Import and export bindings are not definitions and are left out. A nil
// names slice indexes every name.
func (rt *ResolutionTx) NameIndex(ctx context.Context, names []string) (map[string][]Candidate, error) {
	out := make(map[string][]Candidate)
	base := sq.Select("id", "name", "kind", "language", "file_path", "start_line").
		From("symbols").
		Where(sq.NotEq{"kind": []string{string(model.KindImport), string(model.KindExport)}}).
		OrderBy("name", "file_path", "start_line", "id")

	var queries []sq.SelectBuilder
	if names == nil {
		queries = append(queries, base)
	} else {
		for _, chunk := range chunkStrings(sortedUnion(names), maxVariables) {
			queries = append(queries, base.Where(sq.Eq{"name": chunk}))
		}
	}

	for _, b := range queries {
		query, args, err := b.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
		rows, err := rt.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query name index: %w", err)
		}
		for rows.Next() {
			var (
				c    Candidate
				kind string
			)
			if err := rows.Scan(&c.ID, &c.Name, &kind, &c.Language, &c.FilePath, &c.StartLine); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan candidate: %w", err)
			}
			c.Kind = model.SymbolKind(kind)
			out[c.Name] = append(out[c.Name], c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Pending returns the pending relationships in scope, ordered by id.
func (rt *ResolutionTx) Pending(ctx context.Context, q PendingQuery) ([]PendingRecord, error) {
	if !q.All && len(q.CalleeNames) == 0 && len(q.FilePaths) == 0 {
		return nil, nil
	}

	b := sq.Select("id", "from_symbol_id", "callee_name", "kind", "file_path", "line_number", "confidence", "resolved_to").
		From("pending_relationships").
		OrderBy("id")
	if q.OnlyUnresolved {
		b = b.Where("resolved_to IS NULL")
	}

	var queries []sq.SelectBuilder
	if q.All {
		queries = append(queries, b)
	} else {
		for _, chunk := range chunkStrings(sortedUnion(q.CalleeNames), maxVariables) {
			queries = append(queries, b.Where(sq.Eq{"callee_name": chunk}))
		}
		for _, chunk := range chunkStrings(sortedUnion(q.FilePaths), maxVariables) {
			queries = append(queries, b.Where(sq.Eq{"file_path": chunk}))
		}
	}

	seen := make(map[string]bool)
	var out []PendingRecord
	for _, qb := range queries {
		query, args, err := qb.ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
		rows, err := rt.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query pending relationships: %w", err)
		}
		for rows.Next() {
			var (
				r        PendingRecord
				kind     string
				resolved sql.NullString
			)
			if err := rows.Scan(&r.ID, &r.FromSymbolID, &r.CalleeName, &kind, &r.FilePath, &r.LineNumber, &r.Confidence, &resolved); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan pending relationship: %w", err)
			}
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			r.Kind = model.RelationshipKind(kind)
			r.ResolvedTo = resolved.String
			out = append(out, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ImportsByFile loads the language and import bindings of each path.
func (rt *ResolutionTx) ImportsByFile(ctx context.Context, paths []string) (map[string]*CallerFile, error) {
	out := make(map[string]*CallerFile)
	for _, chunk := range chunkStrings(sortedUnion(paths), maxVariables) {
		query, args, err := sq.Select("file_path", "language", "kind", "name", "metadata").
			From("symbols").
			Where(sq.Eq{"file_path": chunk}).
			Where(sq.Or{sq.Eq{"kind": string(model.KindImport)}, sq.Eq{"parent_id": nil}}).
			OrderBy("file_path", "start_byte", "id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}
		rows, err := rt.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query imports: %w", err)
		}
		for rows.Next() {
			var path, lang, kind, name, meta string
			if err := rows.Scan(&path, &lang, &kind, &name, &meta); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan import: %w", err)
			}
			cf := out[path]
			if cf == nil {
				cf = &CallerFile{Path: path, Language: lang}
				out[path] = cf
			}
			if model.SymbolKind(kind) != model.KindImport {
				continue
			}
			m, err := decodeMetadata(meta)
			if err != nil {
				rows.Close()
				return nil, err
			}
			cf.Imports = append(cf.Imports, ImportRef{Name: name, Source: m["source"], Imported: m["imported"]})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Apply writes Pass 2 decisions. Promotion upserts the relationship under its
// derived id, so applying the same decisions twice changes nothing. A pending
// row that moves to a different target drops its previous edge unless another
// pending row still resolves to it.
func (rt *ResolutionTx) Apply(ctx context.Context, resolutions []Resolution) error {
	for _, r := range resolutions {
		p := r.Pending
		if p.ResolvedTo != "" && p.ResolvedTo != r.Target {
			oldID := model.RelationshipID(p.FromSymbolID, p.ResolvedTo, p.Kind, p.FilePath, p.LineNumber)
			_, err := rt.q.ExecContext(ctx, `
				DELETE FROM relationships WHERE id = ? AND NOT EXISTS (
					SELECT 1 FROM pending_relationships
					WHERE resolved_to = ? AND from_symbol_id = ? AND kind = ?
					  AND file_path = ? AND line_number = ? AND id != ?
				)`, oldID, p.ResolvedTo, p.FromSymbolID, string(p.Kind), p.FilePath, p.LineNumber, p.ID)
			if err != nil {
				return fmt.Errorf("failed to drop stale edge of %s: %w", p.ID, err)
			}
		}

		if r.Target == "" {
			if p.ResolvedTo != "" {
				if _, err := rt.q.ExecContext(ctx, "UPDATE pending_relationships SET resolved_to = NULL WHERE id = ?", p.ID); err != nil {
					return fmt.Errorf("failed to clear resolution of %s: %w", p.ID, err)
				}
			}
			continue
		}

		rel := p.Promote(r.Target)
		meta, err := encodeMetadata(rel.Metadata)
		if err != nil {
			return err
		}
		_, err = rt.q.ExecContext(ctx, `
			INSERT INTO relationships (id, from_symbol_id, to_symbol_id, kind, file_path, line_number, confidence, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET confidence = excluded.confidence, metadata = excluded.metadata`,
			rel.ID, rel.FromSymbolID, rel.ToSymbolID, string(rel.Kind), rel.FilePath, rel.LineNumber, rel.Confidence, meta)
		if err != nil {
			return fmt.Errorf("failed to promote %s to %s: %w", p.ID, r.Target, err)
		}
		if p.ResolvedTo != r.Target {
			if _, err := rt.q.ExecContext(ctx, "UPDATE pending_relationships SET resolved_to = ? WHERE id = ?", r.Target, p.ID); err != nil {
				return fmt.Errorf("failed to record resolution of %s: %w", p.ID, err)
			}
		}
	}
	return nil
}
