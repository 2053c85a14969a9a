// Package search is the code search engine: a bleve index over symbols kept
// in step with the store as one of its derived indexes.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/camelcase"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mvp-joe/symgraph/internal/model"
)

// codeAnalyzer splits identifiers on case changes before lowercasing, so
// "parseHTTPRequest" matches "request".
const codeAnalyzer = "code"

const batchSize = 1000

// Engine is a bleve index of symbols. It implements storage.Observer.
type Engine struct {
	mu    sync.RWMutex
	path  string // empty for an in-memory index
	index bleve.Index
}

// Open opens the index at path, creating it when missing. An empty path
// gives an in-memory index.
func Open(path string) (*Engine, error) {
	index, err := openIndex(path)
	if err != nil {
		return nil, err
	}
	return &Engine{path: path, index: index}, nil
}

func openIndex(path string) (bleve.Index, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
		return index, nil
	}

	index, err := bleve.Open(path)
	if err == nil {
		return index, nil
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return nil, fmt.Errorf("failed to open bleve index %s: %w", path, err)
	}
	index, err = bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index %s: %w", path, err)
	}
	return index, nil
}

// buildMapping creates the index mapping for symbol documents.
func buildMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	if err := indexMapping.AddCustomAnalyzer(codeAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{camelcase.Name, lowercase.Name},
	}); err != nil {
		// Static configuration; only a bleve upgrade could break it.
		panic(fmt.Sprintf("invalid code analyzer: %v", err))
	}

	text := func(analyzer string) *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = true
		fm.Index = true
		return fm
	}

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", text(codeAnalyzer))
	docMapping.AddFieldMappingsAt("terms", text(standard.Name))
	docMapping.AddFieldMappingsAt("signature", text(codeAnalyzer))
	docMapping.AddFieldMappingsAt("doc", text(standard.Name))
	docMapping.AddFieldMappingsAt("kind", text(keyword.Name))
	docMapping.AddFieldMappingsAt("language", text(keyword.Name))
	docMapping.AddFieldMappingsAt("file_path", text(keyword.Name))

	line := bleve.NewNumericFieldMapping()
	line.Store = true
	line.Index = false
	docMapping.AddFieldMappingsAt("start_line", line)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

func symbolToDocument(s *model.Symbol) map[string]interface{} {
	return map[string]interface{}{
		"name":       s.Name,
		"terms":      model.Terms(s.Name),
		"signature":  s.Signature,
		"doc":        s.DocComment,
		"kind":       string(s.Kind),
		"language":   s.Language,
		"file_path":  s.FilePath,
		"start_line": s.StartLine,
	}
}

// Name identifies the engine in integrity reports.
func (e *Engine) Name() string { return "search" }

// Index adds or replaces documents for symbols.
func (e *Engine) Index(ctx context.Context, symbols []*model.Symbol) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return indexSymbols(ctx, e.index, symbols)
}

func indexSymbols(ctx context.Context, index bleve.Index, symbols []*model.Symbol) error {
	batch := index.NewBatch()
	for i, s := range symbols {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := batch.Index(s.ID, symbolToDocument(s)); err != nil {
			return fmt.Errorf("failed to add symbol %s to batch: %w", s.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return nil
}

// Remove deletes documents by symbol id. Unknown ids are ignored.
func (e *Engine) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := e.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete symbols: %w", err)
	}
	return nil
}

// Count returns the number of indexed documents.
func (e *Engine) Count(ctx context.Context) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n, err := e.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(n), nil
}

// Rebuild replaces the index contents with symbols.
func (e *Engine) Rebuild(ctx context.Context, symbols []*model.Symbol) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.index.Close(); err != nil {
		return fmt.Errorf("failed to close bleve index: %w", err)
	}
	if e.path != "" {
		if err := os.RemoveAll(e.path); err != nil {
			return fmt.Errorf("failed to remove bleve index %s: %w", e.path, err)
		}
	}
	index, err := openIndex(e.path)
	if err != nil {
		return err
	}
	e.index = index
	return indexSymbols(ctx, index, symbols)
}

// Query is a search request. Text is matched against names, name terms,
// signatures and doc comments. Syntax switches Text to bleve query-string
// syntax (field scoping, boolean operators, phrases, wildcards).
type Query struct {
	Text     string
	Syntax   bool
	Kind     model.SymbolKind
	Language string
	// FilePath is a wildcard pattern ("internal/*").
	FilePath string
	Limit    int
}

// Hit is one search result.
type Hit struct {
	SymbolID   string
	Name       string
	Kind       model.SymbolKind
	Language   string
	FilePath   string
	StartLine  int
	Score      float64
	Highlights []string
}

// Search runs q against the index, best match first.
func (e *Engine) Search(ctx context.Context, q Query) ([]Hit, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var match query.Query
	if q.Syntax {
		match = bleve.NewQueryStringQuery(text)
	} else {
		match = textQuery(text)
	}

	queries := []query.Query{match}
	if q.Kind != "" {
		tq := bleve.NewTermQuery(string(q.Kind))
		tq.SetField("kind")
		queries = append(queries, tq)
	}
	if q.Language != "" {
		tq := bleve.NewTermQuery(q.Language)
		tq.SetField("language")
		queries = append(queries, tq)
	}
	if q.FilePath != "" {
		wq := bleve.NewWildcardQuery(q.FilePath)
		wq.SetField("file_path")
		queries = append(queries, wq)
	}

	var final query.Query = match
	if len(queries) > 1 {
		final = bleve.NewConjunctionQuery(queries...)
	}

	req := bleve.NewSearchRequestOptions(final, limit, 0, false)
	req.Fields = []string{"name", "kind", "language", "file_path", "start_line"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.Fields = []string{"signature", "doc"}

	e.mu.RLock()
	res, err := e.index.SearchInContext(ctx, req)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{SymbolID: h.ID, Score: h.Score}
		hit.Name, _ = h.Fields["name"].(string)
		kind, _ := h.Fields["kind"].(string)
		hit.Kind = model.SymbolKind(kind)
		hit.Language, _ = h.Fields["language"].(string)
		hit.FilePath, _ = h.Fields["file_path"].(string)
		if line, ok := h.Fields["start_line"].(float64); ok {
			hit.StartLine = int(line)
		}
		for _, frags := range h.Fragments {
			hit.Highlights = append(hit.Highlights, frags...)
		}
		if len(hit.Highlights) > 3 {
			hit.Highlights = hit.Highlights[:3]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// textQuery matches the name most strongly, then its split terms, then the
// signature and doc comment.
func textQuery(text string) query.Query {
	name := bleve.NewMatchQuery(text)
	name.SetField("name")
	name.SetBoost(4)

	terms := bleve.NewMatchQuery(model.Terms(text))
	terms.SetField("terms")
	terms.SetBoost(2)

	sig := bleve.NewMatchQuery(text)
	sig.SetField("signature")

	doc := bleve.NewMatchQuery(text)
	doc.SetField("doc")
	doc.SetBoost(0.5)

	return bleve.NewDisjunctionQuery(name, terms, sig, doc)
}

// Close releases the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index != nil {
		return e.index.Close()
	}
	return nil
}
