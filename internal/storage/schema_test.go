package storage

// Test Plan for SQLite Schema:
// - CreateSchema creates every table and the FTS5 mirror
// - CreateSchema is idempotent
// - GetSchemaVersion returns "0" before and SchemaVersion after CreateSchema
// - Deleting a symbol cascades to its relationships and nulls pending resolved_to
// - FTS triggers follow inserts, updates and deletes on symbols

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	t.Parallel()
	db := openSchemaDB(t)

	require.NoError(t, CreateSchema(db))
	require.NoError(t, CreateSchema(db), "second run should be a no-op")

	for _, table := range []string{
		"files", "symbols", "relationships", "pending_relationships", "identifiers",
		"symbol_types", "embeddings", "store_metadata", "symbols_fts",
	} {
		assert.True(t, tableExists(t, db, table), "table %s should exist", table)
	}

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'").Scan(&n))
	assert.Equal(t, len(indexes), n)
}

func TestGetSchemaVersion(t *testing.T) {
	t.Parallel()
	db := openSchemaDB(t)

	v, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, "0", v)

	require.NoError(t, CreateSchema(db))
	v, err = GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestCreateSchema_ForeignKeys(t *testing.T) {
	t.Parallel()
	db := openSchemaDB(t)
	require.NoError(t, CreateSchema(db))

	insertRawSymbol(t, db, "a", "caller")
	insertRawSymbol(t, db, "b", "callee")
	_, err := db.Exec(`INSERT INTO relationships (id, from_symbol_id, to_symbol_id, kind, file_path, line_number, confidence)
		VALUES ('r1', 'a', 'b', 'calls', 'x.go', 2, 1.0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO pending_relationships (id, from_symbol_id, callee_name, kind, file_path, line_number, confidence, resolved_to)
		VALUES ('p1', 'a', 'callee', 'calls', 'x.go', 2, 0.7, 'b')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO relationships (id, from_symbol_id, to_symbol_id, kind, file_path, line_number, confidence)
		VALUES ('r2', 'a', 'missing', 'calls', 'x.go', 3, 1.0)`)
	assert.Error(t, err, "edge to a missing symbol should be rejected")

	_, err = db.Exec("DELETE FROM symbols WHERE id = 'b'")
	require.NoError(t, err)

	var rels int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM relationships").Scan(&rels))
	assert.Equal(t, 0, rels)

	var resolved sql.NullString
	require.NoError(t, db.QueryRow("SELECT resolved_to FROM pending_relationships WHERE id = 'p1'").Scan(&resolved))
	assert.False(t, resolved.Valid)
}

func TestCreateSchema_FTSTriggers(t *testing.T) {
	t.Parallel()
	db := openSchemaDB(t)
	require.NoError(t, CreateSchema(db))

	insertRawSymbol(t, db, "a", "parseConfig")
	assert.Equal(t, 1, ftsMatches(t, db, "parseConfig"))

	_, err := db.Exec("UPDATE symbols SET name = 'renderPage' WHERE id = 'a'")
	require.NoError(t, err)
	assert.Equal(t, 0, ftsMatches(t, db, "parseConfig"))
	assert.Equal(t, 1, ftsMatches(t, db, "renderPage"))

	_, err = db.Exec("DELETE FROM symbols WHERE id = 'a'")
	require.NoError(t, err)
	assert.Equal(t, 0, ftsMatches(t, db, "renderPage"))
}

func openSchemaDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.db")
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertRawSymbol(t *testing.T, db *sql.DB, id, name string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO symbols (id, name, kind, language, file_path, start_line, start_column,
		end_line, end_column, start_byte, end_byte) VALUES (?, ?, 'function', 'go', 'x.go', 1, 0, 2, 0, 0, 10)`, id, name)
	require.NoError(t, err)
}

func ftsMatches(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM symbols_fts WHERE symbols_fts MATCH ?`, `"`+name+`"`).Scan(&n))
	return n
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, tableName).Scan(&count)
	require.NoError(t, err)
	return count > 0
}
