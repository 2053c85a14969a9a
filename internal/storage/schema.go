package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is bumped on incompatible layout changes.
const SchemaVersion = "1"

// CreateSchema creates every table, index, the FTS5 mirror and its triggers.
// It is idempotent, so Open calls it on every start.
//
// The vector table is created by the vector index itself because its width
// depends on the embedding dimensions.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"files", createFilesTable},
		{"symbols", createSymbolsTable},
		{"relationships", createRelationshipsTable},
		{"pending_relationships", createPendingTable},
		{"identifiers", createIdentifiersTable},
		{"symbol_types", createSymbolTypesTable},
		{"embeddings", createEmbeddingsTable},
		{"store_metadata", createMetadataTable},
		{"symbols_fts", createSymbolsFTSTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	for i, trigger := range ftsTriggers {
		if _, err := tx.Exec(trigger); err != nil {
			return fmt.Errorf("failed to create trigger %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO store_metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)
		ON CONFLICT(key) DO NOTHING`, SchemaVersion, now); err != nil {
		return fmt.Errorf("failed to bootstrap store_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the stored schema version, "0" for an empty database.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='store_metadata'").Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("failed to check store_metadata existence: %w", err)
	}
	if exists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM store_metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in store_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createFilesTable = `
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,                       -- workspace-relative, forward slashes
    language TEXT NOT NULL,
    hash TEXT NOT NULL,                          -- SHA-256 of content, the change key
    size INTEGER NOT NULL DEFAULT 0,
    last_modified INTEGER NOT NULL DEFAULT 0,    -- unix nanoseconds
    content TEXT,
    symbol_count INTEGER NOT NULL DEFAULT 0,
    indexed_at TEXT NOT NULL
)
`

// symbols.file_path carries no foreign key: bulk loads may store symbols for
// files that have no file record yet. File removal deletes by path.
const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    language TEXT NOT NULL,
    file_path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    start_column INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL,
    start_byte INTEGER NOT NULL,
    end_byte INTEGER NOT NULL,
    signature TEXT NOT NULL DEFAULT '',
    doc_comment TEXT NOT NULL DEFAULT '',
    visibility TEXT NOT NULL DEFAULT 'public',
    parent_id TEXT,
    metadata TEXT NOT NULL DEFAULT '{}',         -- JSON object
    terms TEXT NOT NULL DEFAULT ''               -- name split into words, for FTS
)
`

const createRelationshipsTable = `
CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    from_symbol_id TEXT NOT NULL,
    to_symbol_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    file_path TEXT NOT NULL,                     -- file of the source site
    line_number INTEGER NOT NULL,
    confidence REAL NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (from_symbol_id) REFERENCES symbols(id) ON DELETE CASCADE,
    FOREIGN KEY (to_symbol_id) REFERENCES symbols(id) ON DELETE CASCADE
)
`

const createPendingTable = `
CREATE TABLE IF NOT EXISTS pending_relationships (
    id TEXT PRIMARY KEY,
    from_symbol_id TEXT NOT NULL,
    callee_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    file_path TEXT NOT NULL,
    line_number INTEGER NOT NULL,
    confidence REAL NOT NULL,
    resolved_to TEXT,                            -- target of the promoted edge, NULL while unresolved
    FOREIGN KEY (from_symbol_id) REFERENCES symbols(id) ON DELETE CASCADE,
    FOREIGN KEY (resolved_to) REFERENCES symbols(id) ON DELETE SET NULL
)
`

const createIdentifiersTable = `
CREATE TABLE IF NOT EXISTS identifiers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    language TEXT NOT NULL,
    file_path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    start_column INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    end_column INTEGER NOT NULL,
    start_byte INTEGER NOT NULL,
    end_byte INTEGER NOT NULL,
    containing_symbol_id TEXT,
    target_symbol_id TEXT,
    confidence REAL NOT NULL,
    code_context TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (containing_symbol_id) REFERENCES symbols(id) ON DELETE SET NULL,
    FOREIGN KEY (target_symbol_id) REFERENCES symbols(id) ON DELETE SET NULL
)
`

const createSymbolTypesTable = `
CREATE TABLE IF NOT EXISTS symbol_types (
    symbol_id TEXT PRIMARY KEY,
    resolved_type TEXT NOT NULL,
    language TEXT NOT NULL,
    is_inferred INTEGER NOT NULL DEFAULT 1,
    FOREIGN KEY (symbol_id) REFERENCES symbols(id) ON DELETE CASCADE
)
`

const createEmbeddingsTable = `
CREATE TABLE IF NOT EXISTS embeddings (
    symbol_id TEXT PRIMARY KEY,
    model TEXT NOT NULL,
    dimensions INTEGER NOT NULL,
    text_hash TEXT NOT NULL,                     -- SHA-256 of the embedded text
    vector BLOB NOT NULL,                        -- little-endian float32
    created_at TEXT NOT NULL,
    FOREIGN KEY (symbol_id) REFERENCES symbols(id) ON DELETE CASCADE
)
`

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS store_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

// The FTS rowid mirrors symbols.rowid so triggers can delete by key.
const createSymbolsFTSTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
    symbol_id UNINDEXED,
    name,
    terms,
    signature,
    doc_comment,
    file_path UNINDEXED,
    tokenize = "unicode61 separators '._'"
)
`

var ftsTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS symbols_fts_insert AFTER INSERT ON symbols
	BEGIN
		INSERT INTO symbols_fts(rowid, symbol_id, name, terms, signature, doc_comment, file_path)
		VALUES (NEW.rowid, NEW.id, NEW.name, NEW.terms, NEW.signature, NEW.doc_comment, NEW.file_path);
	END`,

	`CREATE TRIGGER IF NOT EXISTS symbols_fts_update AFTER UPDATE ON symbols
	BEGIN
		DELETE FROM symbols_fts WHERE rowid = OLD.rowid;
		INSERT INTO symbols_fts(rowid, symbol_id, name, terms, signature, doc_comment, file_path)
		VALUES (NEW.rowid, NEW.id, NEW.name, NEW.terms, NEW.signature, NEW.doc_comment, NEW.file_path);
	END`,

	`CREATE TRIGGER IF NOT EXISTS symbols_fts_delete AFTER DELETE ON symbols
	BEGIN
		DELETE FROM symbols_fts WHERE rowid = OLD.rowid;
	END`,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)",
	"CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path)",
	"CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind)",
	"CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_id)",
	"CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_symbol_id, kind)",
	"CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_symbol_id, kind)",
	"CREATE INDEX IF NOT EXISTS idx_relationships_file ON relationships(file_path)",
	"CREATE INDEX IF NOT EXISTS idx_pending_callee ON pending_relationships(callee_name)",
	"CREATE INDEX IF NOT EXISTS idx_pending_file ON pending_relationships(file_path)",
	"CREATE INDEX IF NOT EXISTS idx_pending_from ON pending_relationships(from_symbol_id)",
	"CREATE INDEX IF NOT EXISTS idx_pending_resolved ON pending_relationships(resolved_to)",
	"CREATE INDEX IF NOT EXISTS idx_identifiers_file ON identifiers(file_path)",
	"CREATE INDEX IF NOT EXISTS idx_identifiers_name ON identifiers(name)",
	"CREATE INDEX IF NOT EXISTS idx_identifiers_containing ON identifiers(containing_symbol_id)",
	"CREATE INDEX IF NOT EXISTS idx_identifiers_target ON identifiers(target_symbol_id)",
}
