package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// contextExtractor cuts code snippets out of indexed file content, falling
// back to the file on disk when content was not cached.
type contextExtractor struct {
	store   Store
	rootDir string

	mu    sync.Mutex
	cache map[string][]string
}

func newContextExtractor(store Store, rootDir string) *contextExtractor {
	return &contextExtractor{store: store, rootDir: rootDir, cache: make(map[string][]string)}
}

// extract returns lines [startLine-contextLines, endLine+contextLines] of
// file with a "// Lines a-b" header. Lines are 1-indexed.
func (ce *contextExtractor) extract(ctx context.Context, file string, startLine, endLine, contextLines int) (string, error) {
	lines, err := ce.lines(ctx, file)
	if err != nil {
		return "", err
	}

	from := max(0, startLine-contextLines-1)
	to := min(len(lines), endLine+contextLines)
	if from >= to {
		return "", fmt.Errorf("%s: lines %d-%d out of range", file, startLine, endLine)
	}

	prefix := fmt.Sprintf("// Lines %d-%d\n", from+1, to)
	return prefix + strings.Join(lines[from:to], "\n"), nil
}

func (ce *contextExtractor) lines(ctx context.Context, file string) ([]string, error) {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	if lines, ok := ce.cache[file]; ok {
		return lines, nil
	}

	var content string
	if f, err := ce.store.GetFile(ctx, file); err == nil && f.Content != "" {
		content = f.Content
	} else if ce.rootDir != "" {
		data, err := os.ReadFile(filepath.Join(ce.rootDir, filepath.FromSlash(file)))
		if err != nil {
			return nil, err
		}
		content = string(data)
	} else {
		return nil, fmt.Errorf("no content for %s", file)
	}

	lines := strings.Split(content, "\n")
	ce.cache[file] = lines
	return lines, nil
}

func (ce *contextExtractor) reset() {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	ce.cache = make(map[string][]string)
}
