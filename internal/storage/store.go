// Package storage is the durable home of the symbol graph: files, symbols,
// relationships, pending relationships, identifiers and embeddings in SQLite,
// plus the derived full-text and vector indexes kept consistent with them.
//
// One database holds one workspace. Writes are serialized by the Store; reads
// run concurrently against WAL snapshots.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWorkspaceMismatch is returned when a write names a workspace other than
	// the one this database belongs to.
	ErrWorkspaceMismatch = errors.New("workspace mismatch")
)

// Vector backends.
const (
	VectorBackendSQLiteVec = "sqlite-vec"
	VectorBackendChromem   = "chromem"
)

// Options configures Open.
type Options struct {
	// WorkspaceRoot derives the workspace id when WorkspaceID is empty.
	WorkspaceRoot string
	WorkspaceID   string

	// Dimensions of stored embeddings. A change drops existing vectors, which
	// are then backfilled.
	Dimensions     int
	EmbeddingModel string

	// VectorBackend is sqlite-vec (default) or chromem.
	VectorBackend string
	// VectorPath persists the chromem collection; empty keeps it in memory.
	VectorPath string

	// Observers are derived indexes outside SQLite that mirror committed symbols.
	Observers []Observer

	// SkipIntegrityCheck opens without comparing derived index counts.
	SkipIntegrityCheck bool
}

// Store is the workspace database.
type Store struct {
	db          *sql.DB
	path        string
	opts        Options
	workspaceID string
	vectors     VectorIndex
	observers   []Observer

	writeMu sync.Mutex
}

// WorkspaceID derives the stable workspace id for a root directory.
func WorkspaceID(root string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("symgraph:"+root)).String()
}

// Open opens (creating if needed) the workspace database at path, brings the
// schema up to date and verifies the derived indexes.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", opts.Dimensions)
	}
	if opts.WorkspaceID == "" {
		opts.WorkspaceID = WorkspaceID(opts.WorkspaceRoot)
	}
	if opts.VectorBackend == "" {
		opts.VectorBackend = VectorBackendSQLiteVec
	}

	InitVectorExtension()

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, path: path, opts: opts, observers: opts.Observers}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if !opts.SkipIntegrityCheck {
		report, err := s.VerifyIntegrity(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		for _, name := range report.Rebuilt {
			log.Printf("Warning: %s index was out of sync with symbols and has been rebuilt", name)
		}
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := CreateSchema(s.db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	meta, err := s.metadata(ctx)
	if err != nil {
		return err
	}

	if existing := meta[metaWorkspaceID]; existing != "" && existing != s.opts.WorkspaceID {
		return fmt.Errorf("%w: database belongs to %s, opened as %s", ErrWorkspaceMismatch, existing, s.opts.WorkspaceID)
	}
	s.workspaceID = s.opts.WorkspaceID

	dimsChanged := meta[metaDimensions] != "" && meta[metaDimensions] != fmt.Sprint(s.opts.Dimensions)
	modelChanged := meta[metaModel] != "" && s.opts.EmbeddingModel != "" && meta[metaModel] != s.opts.EmbeddingModel
	if dimsChanged || modelChanged {
		log.Printf("Warning: embedding model changed (%s/%s -> %s/%d), dropping stored vectors",
			meta[metaModel], meta[metaDimensions], s.opts.EmbeddingModel, s.opts.Dimensions)
		if _, err := s.db.ExecContext(ctx, "DELETE FROM embeddings"); err != nil {
			return fmt.Errorf("failed to clear embeddings: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS symbols_vec"); err != nil {
			return fmt.Errorf("failed to drop vector table: %w", err)
		}
	}

	switch s.opts.VectorBackend {
	case VectorBackendSQLiteVec:
		s.vectors, err = newSQLiteVecIndex(s.db, s.opts.Dimensions)
	case VectorBackendChromem:
		s.vectors, err = newChromemIndex(s.opts.VectorPath, dimsChanged || modelChanged)
	default:
		err = fmt.Errorf("unknown vector backend %q", s.opts.VectorBackend)
	}
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}

	return s.setMetadata(ctx, map[string]string{
		metaWorkspaceID:   s.workspaceID,
		metaWorkspaceRoot: s.opts.WorkspaceRoot,
		metaDimensions:    fmt.Sprint(s.opts.Dimensions),
		metaModel:         s.opts.EmbeddingModel,
		metaVectorBackend: s.opts.VectorBackend,
	})
}

// Close releases the vector index and the database.
func (s *Store) Close() error {
	var errs []error
	if s.vectors != nil {
		errs = append(errs, s.vectors.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// DB exposes the underlying connection pool for read-only tooling.
func (s *Store) DB() *sql.DB { return s.db }

// WorkspaceID returns the id this database is bound to.
func (s *Store) WorkspaceID() string { return s.workspaceID }

// Dimensions returns the configured embedding dimensions.
func (s *Store) Dimensions() int { return s.opts.Dimensions }

// EmbeddingModel returns the configured embedding model name.
func (s *Store) EmbeddingModel() string { return s.opts.EmbeddingModel }

// AddObserver registers a derived index after Open. The caller is expected to
// run VerifyIntegrity afterwards so the observer starts in sync.
func (s *Store) AddObserver(o Observer) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.observers = append(s.observers, o)
}

const (
	metaWorkspaceID   = "workspace_id"
	metaWorkspaceRoot = "workspace_root"
	metaDimensions    = "embedding_dimensions"
	metaModel         = "embedding_model"
	metaVectorBackend = "vector_backend"
	metaLastIndexed   = "last_indexed"
)

func (s *Store) metadata(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM store_metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to read store metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan store metadata: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *Store) setMetadata(ctx context.Context, values map[string]string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for k, v := range values {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO store_metadata (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			return fmt.Errorf("failed to write metadata %s: %w", k, err)
		}
	}
	return nil
}

// MarkIndexed records the completion time of a full indexing run.
func (s *Store) MarkIndexed(ctx context.Context, at time.Time) error {
	return s.setMetadata(ctx, map[string]string{metaLastIndexed: at.UTC().Format(time.RFC3339)})
}

// LastIndexed returns the time of the last full indexing run, zero if never.
func (s *Store) LastIndexed(ctx context.Context) (time.Time, error) {
	meta, err := s.metadata(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if meta[metaLastIndexed] == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, meta[metaLastIndexed])
}
