//go:build fts5 || sqlite_fts5

// mattn/go-sqlite3 compiles FTS5 in only with -tags fts5 (or sqlite_fts5).
// Without it CreateSchema fails on the symbols_fts table.

package storage

import (
	_ "github.com/mattn/go-sqlite3"
)
