package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mvp-joe/symgraph/internal/model"
)

// FileLister is the store view the change detector compares against.
type FileLister interface {
	ListFiles(ctx context.Context) ([]*model.File, error)
}

// ChangeSet contains the result of change detection.
type ChangeSet struct {
	Added     []string // New files not in DB
	Modified  []string // Files with different hash than DB
	Deleted   []string // Files in DB but not on disk
	Unchanged []string // Files with same hash (mtime may have drifted)
}

// Changed returns Added and Modified together.
func (c *ChangeSet) Changed() []string {
	out := append(append([]string{}, c.Added...), c.Modified...)
	sort.Strings(out)
	return out
}

// ChangeDetector compares the workspace on disk with the stored files.
type ChangeDetector struct {
	rootDir   string
	store     FileLister
	discovery *Discovery
}

// NewChangeDetector creates a new change detector.
func NewChangeDetector(rootDir string, store FileLister, discovery *Discovery) *ChangeDetector {
	return &ChangeDetector{rootDir: rootDir, store: store, discovery: discovery}
}

// DetectChanges classifies files. With an empty hint every discovered file is
// checked and stored files missing from disk are Deleted. With a hint only
// those paths are checked, and a hinted path gone from disk is Deleted.
//
// Size and mtime equal to the stored record is taken as unchanged without
// hashing; otherwise the SHA-256 of the content decides.
func (cd *ChangeDetector) DetectChanges(ctx context.Context, hint []string) (*ChangeSet, error) {
	changes := &ChangeSet{}

	paths := hint
	if len(hint) == 0 {
		var err error
		if paths, err = cd.discovery.Discover(ctx); err != nil {
			return nil, err
		}
	}

	stored, err := cd.store.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read files from database: %w", err)
	}
	byPath := make(map[string]*model.File, len(stored))
	for _, f := range stored {
		byPath[f.Path] = f
	}

	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := model.NormalizePath(cd.rootDir, p)
		if err != nil {
			return nil, err
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true

		dbFile, inDB := byPath[rel]
		info, err := os.Stat(filepath.Join(cd.rootDir, filepath.FromSlash(rel)))
		if errors.Is(err, fs.ErrNotExist) {
			if inDB {
				changes.Deleted = append(changes.Deleted, rel)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat file %s: %w", rel, err)
		}

		switch {
		case !inDB:
			changes.Added = append(changes.Added, rel)
		case dbFile.Size == info.Size() && dbFile.LastModified == info.ModTime().UnixNano():
			changes.Unchanged = append(changes.Unchanged, rel)
		default:
			// An unreadable file counts as Modified; indexing reports it.
			hash, err := hashFile(filepath.Join(cd.rootDir, filepath.FromSlash(rel)))
			if err == nil && hash == dbFile.Hash {
				changes.Unchanged = append(changes.Unchanged, rel)
			} else {
				changes.Modified = append(changes.Modified, rel)
			}
		}
	}

	if len(hint) == 0 {
		for _, f := range stored {
			if !seen[f.Path] {
				changes.Deleted = append(changes.Deleted, f.Path)
			}
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Deleted)
	sort.Strings(changes.Unchanged)
	return changes, nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return model.ContentHash(data), nil
}
