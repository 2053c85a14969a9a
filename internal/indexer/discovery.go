package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, compiledPattern{pattern: p, glob: g})
	}
	return out, nil
}

// Discovery finds the workspace files to index: include globs, minus ignore
// globs and .gitignore rules.
type Discovery struct {
	rootDir   string
	include   []compiledPattern
	ignore    []compiledPattern
	gitignore *ignore.GitIgnore
}

// NewDiscovery compiles the patterns. When respectGitignore is set and the
// root has a .gitignore, its rules apply too.
func NewDiscovery(rootDir string, include, ignorePatterns []string, respectGitignore bool) (*Discovery, error) {
	d := &Discovery{rootDir: rootDir}

	var err error
	if d.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if d.ignore, err = compilePatterns(ignorePatterns); err != nil {
		return nil, err
	}

	if respectGitignore {
		path := filepath.Join(rootDir, ".gitignore")
		if _, statErr := os.Stat(path); statErr == nil {
			gi, err := ignore.CompileIgnoreFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			d.gitignore = gi
		}
	}
	return d, nil
}

// Discover walks the root and returns matching workspace-relative paths,
// sorted.
func (d *Discovery) Discover(ctx context.Context) ([]string, error) {
	return d.discoverUnder(ctx, d.rootDir)
}

func (d *Discovery) discoverUnder(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, ok := d.relative(path)
		if !ok {
			return nil
		}
		if entry.IsDir() {
			if rel != "" && d.Ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Match reports whether a workspace-relative file path is indexed.
func (d *Discovery) Match(rel string) bool {
	return !d.Ignored(rel) && matchesAny(rel, d.include)
}

// Ignored reports whether a workspace-relative path (file or directory) is
// excluded.
func (d *Discovery) Ignored(rel string) bool {
	if rel == ".symgraph" || strings.HasPrefix(rel, ".symgraph/") {
		return true
	}
	if matchesAny(rel, d.ignore) || matchesAny(rel+"/**", d.ignore) {
		return true
	}
	return d.gitignore != nil && d.gitignore.MatchesPath(rel)
}

func (d *Discovery) relative(path string) (string, bool) {
	rel, err := filepath.Rel(d.rootDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}

// matchesAny also lets "**/x" patterns match files at the root.
func matchesAny(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}
	if strings.Contains(path, "/") {
		return false
	}
	for _, cp := range patterns {
		if !strings.HasPrefix(cp.pattern, "**/") {
			continue
		}
		if g, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/'); err == nil && g.Match(path) {
			return true
		}
	}
	return false
}

// extensionPatterns turns file extensions into include globs.
func extensionPatterns(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, "**/*"+ext)
	}
	return out
}
