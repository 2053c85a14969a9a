package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// Store is what the searcher loads the graph from.
type Store interface {
	FindSymbols(ctx context.Context, q storage.SymbolQuery) ([]*model.Symbol, error)
	ListRelationships(ctx context.Context, q storage.RelationshipQuery) ([]*model.Relationship, error)
	GetFile(ctx context.Context, path string) (*model.File, error)
}

// Searcher holds the resolved graph in memory with forward and reverse
// adjacency per relationship kind.
type Searcher struct {
	store   Store
	context *contextExtractor
	dirty   atomic.Bool

	mu     sync.RWMutex
	calls  graph.Graph[string, *Node]
	nodes  map[string]*Node
	byName map[string][]string
	out    map[model.RelationshipKind]map[string][]string
	in     map[model.RelationshipKind]map[string][]string
	edges  int
}

// NewSearcher loads the graph from store. rootDir is used to read code
// context for files whose content is not cached in the store.
func NewSearcher(ctx context.Context, store Store, rootDir string) (*Searcher, error) {
	s := &Searcher{store: store, context: newContextExtractor(store, rootDir)}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Invalidate marks the graph stale; the next query reloads it.
func (s *Searcher) Invalidate() { s.dirty.Store(true) }

// Reload rebuilds the in-memory graph from the store.
func (s *Searcher) Reload(ctx context.Context) error {
	symbols, err := s.store.FindSymbols(ctx, storage.SymbolQuery{})
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}
	rels, err := s.store.ListRelationships(ctx, storage.RelationshipQuery{})
	if err != nil {
		return fmt.Errorf("failed to load relationships: %w", err)
	}

	calls := graph.New(func(n *Node) string { return n.ID }, graph.Directed())
	nodes := make(map[string]*Node, len(symbols))
	byName := make(map[string][]string)
	for _, sym := range symbols {
		n := nodeFromSymbol(sym)
		nodes[n.ID] = n
		byName[n.Name] = append(byName[n.Name], n.ID)
		if err := calls.AddVertex(n); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return fmt.Errorf("failed to add node %s: %w", n.ID, err)
		}
	}

	out := make(map[model.RelationshipKind]map[string][]string)
	in := make(map[model.RelationshipKind]map[string][]string)
	edges := 0
	for _, r := range rels {
		if nodes[r.FromSymbolID] == nil || nodes[r.ToSymbolID] == nil {
			continue
		}
		edges++
		if out[r.Kind] == nil {
			out[r.Kind] = make(map[string][]string)
			in[r.Kind] = make(map[string][]string)
		}
		out[r.Kind][r.FromSymbolID] = append(out[r.Kind][r.FromSymbolID], r.ToSymbolID)
		in[r.Kind][r.ToSymbolID] = append(in[r.Kind][r.ToSymbolID], r.FromSymbolID)

		if r.Kind == model.RelCalls {
			err := calls.AddEdge(r.FromSymbolID, r.ToSymbolID)
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return fmt.Errorf("failed to add edge %s: %w", r.ID, err)
			}
		}
	}

	s.mu.Lock()
	s.calls, s.nodes, s.byName, s.out, s.in, s.edges = calls, nodes, byName, out, in, edges
	s.mu.Unlock()
	s.context.reset()
	return nil
}

// Query executes a graph query.
func (s *Searcher) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if s.dirty.CompareAndSwap(true, false) {
		if err := s.Reload(ctx); err != nil {
			s.dirty.Store(true)
			return nil, err
		}
	}

	start := time.Now()
	depth := req.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	depth = min(depth, MaxDepth)
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	contextLines := req.ContextLines
	if contextLines <= 0 {
		contextLines = DefaultContextLines
	}
	contextLines = min(contextLines, MaxContextLines)

	s.mu.RLock()
	defer s.mu.RUnlock()

	targets, err := s.lookup(req.Target)
	if err != nil {
		return nil, err
	}

	var found []hop
	switch req.Operation {
	case OperationCallers:
		found = s.traverse(targets, depth, s.in, model.RelCalls)
	case OperationCallees:
		found = s.traverse(targets, depth, s.out, model.RelCalls)
	case OperationImplementations:
		found = s.traverse(targets, depth, s.in, model.RelExtends, model.RelImplements)
	case OperationSupertypes:
		found = s.traverse(targets, depth, s.out, model.RelExtends, model.RelImplements)
	case OperationReferences:
		found = s.traverse(targets, 1, s.in, allKinds(s.in)...)
	case OperationPath:
		dests, err := s.lookup(req.To)
		if err != nil {
			return nil, err
		}
		found = s.shortestPath(targets, dests)
	default:
		return nil, fmt.Errorf("unsupported operation: %s", req.Operation)
	}

	results := []QueryResult{}
	for _, h := range found {
		if len(results) >= maxResults {
			break
		}
		node := s.nodes[h.id]
		result := QueryResult{Node: node, Depth: h.depth}
		if req.IncludeContext {
			if snippet, err := s.context.extract(ctx, node.File, node.StartLine, node.EndLine, contextLines); err == nil {
				result.Context = snippet
			}
		}
		results = append(results, result)
	}

	return &QueryResponse{
		Operation:     string(req.Operation),
		Target:        req.Target,
		Results:       results,
		TotalFound:    len(found),
		TotalReturned: len(results),
		Truncated:     len(results) < len(found),
		Metadata: ResponseMeta{
			TookMs: int(time.Since(start).Milliseconds()),
			Nodes:  len(s.nodes),
			Edges:  s.edges,
			Source: "graph",
		},
	}, nil
}

// lookup resolves a symbol id or name to node ids.
func (s *Searcher) lookup(target string) ([]string, error) {
	if target == "" {
		return nil, fmt.Errorf("target symbol is required")
	}
	if _, ok := s.nodes[target]; ok {
		return []string{target}, nil
	}
	var ids []string
	for _, id := range s.byName[target] {
		if !s.nodes[id].Kind.IsBinding() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("symbol %q: %w", target, storage.ErrNotFound)
	}
	return ids, nil
}

type hop struct {
	id    string
	depth int
}

// traverse walks adjacency of the given kinds breadth-first from starts, up
// to depth hops. Each node is reported once, at its shallowest depth; the
// start nodes are not reported.
func (s *Searcher) traverse(starts []string, depth int, adj map[model.RelationshipKind]map[string][]string, kinds ...model.RelationshipKind) []hop {
	visited := make(map[string]bool, len(starts))
	for _, id := range starts {
		visited[id] = true
	}

	var found []hop
	frontier := starts
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			for _, kind := range kinds {
				for _, nb := range adj[kind][id] {
					if visited[nb] {
						continue
					}
					visited[nb] = true
					found = append(found, hop{id: nb, depth: d})
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}
	return found
}

// shortestPath returns the shortest call path between any start and any
// destination, start included at depth 0. Nil when none is reachable.
func (s *Searcher) shortestPath(starts, dests []string) []hop {
	var best []string
	for _, from := range starts {
		for _, to := range dests {
			if from == to {
				continue
			}
			path, err := graph.ShortestPath(s.calls, from, to)
			if err != nil || len(path) == 0 {
				continue
			}
			if best == nil || len(path) < len(best) {
				best = path
			}
		}
	}
	found := make([]hop, len(best))
	for i, id := range best {
		found[i] = hop{id: id, depth: i}
	}
	return found
}

func allKinds(adj map[model.RelationshipKind]map[string][]string) []model.RelationshipKind {
	var kinds []model.RelationshipKind
	for _, k := range []model.RelationshipKind{
		model.RelCalls, model.RelExtends, model.RelImplements, model.RelUses,
	} {
		if adj[k] != nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Close releases resources.
func (s *Searcher) Close() error {
	return nil
}
