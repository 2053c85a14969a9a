// Package indexer keeps the store in step with the workspace: it discovers
// files, runs Pass 1 on the ones that changed, commits each file atomically
// with its embeddings and runs Pass 2 scoped to the names that changed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/extraction"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/resolver"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// Store is the persistence the pipeline drives.
type Store interface {
	FileLister
	resolver.Store

	FileHash(ctx context.Context, path string) (string, error)
	CommitFile(ctx context.Context, u *storage.FileUpdate) (*storage.CommitResult, error)
	DeleteFile(ctx context.Context, path string) (*storage.CommitResult, error)
	EmbeddingsForFile(ctx context.Context, path string) (map[string]storage.Embedding, error)
	StoreEmbeddings(ctx context.Context, embs []storage.Embedding) (int, error)
	SymbolsWithoutEmbeddings(ctx context.Context, limit int) ([]*model.Symbol, error)
	CountUnembedded(ctx context.Context) (int, error)
	MarkIndexed(ctx context.Context, at time.Time) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEmbedder enables embedding. Without one, symbols are stored without
// vectors.
func WithEmbedder(p embed.Provider) Option {
	return func(pl *Pipeline) { pl.embedder = p }
}

// WithProgress sets the progress reporter for IndexAll and Backfill.
func WithProgress(r ProgressReporter) Option {
	return func(pl *Pipeline) { pl.progress = r }
}

// WithRegistry replaces the built-in extractor registry.
func WithRegistry(r *extraction.Registry) Option {
	return func(pl *Pipeline) { pl.registry = r }
}

// WithOnChange registers a callback run with the paths whose records changed
// after every commit.
func WithOnChange(fn func(paths []string)) Option {
	return func(pl *Pipeline) { pl.onChange = fn }
}

// job is the in-flight work for one path.
type job struct {
	seq    uint64
	cancel context.CancelFunc
}

// Pipeline is the incremental update pipeline.
type Pipeline struct {
	cfg       *Config
	store     Store
	registry  *extraction.Registry
	discovery *Discovery
	detector  *ChangeDetector
	resolver  *resolver.Resolver
	embedder  embed.Provider
	progress  ProgressReporter
	onChange  func(paths []string)

	mu   sync.Mutex
	seq  uint64
	jobs map[string]*job

	// commitMu makes "still the latest job for this path" and the commit
	// one step.
	commitMu sync.Mutex
}

// NewPipeline creates a pipeline over cfg.RootDir.
func NewPipeline(cfg *Config, store Store, opts ...Option) (*Pipeline, error) {
	if cfg == nil || cfg.RootDir == "" {
		return nil, fmt.Errorf("pipeline requires a root directory")
	}
	p := &Pipeline{
		cfg:      cfg,
		store:    store,
		registry: extraction.NewRegistry(),
		progress: &NoOpProgressReporter{},
		jobs:     make(map[string]*job),
	}
	for _, opt := range opts {
		opt(p)
	}

	include := cfg.Include
	if len(include) == 0 {
		include = extensionPatterns(p.registry.Extensions())
	}
	discovery, err := NewDiscovery(cfg.RootDir, include, cfg.Ignore, cfg.RespectGitignore)
	if err != nil {
		return nil, err
	}
	p.discovery = discovery
	p.detector = NewChangeDetector(cfg.RootDir, store, discovery)
	p.resolver = resolver.New(store)
	return p, nil
}

// Discovery returns the file matcher the pipeline indexes with.
func (p *Pipeline) Discovery() *Discovery { return p.discovery }

// IndexAll brings the store in line with the workspace: Pass 1 and commit
// for every added or modified file in parallel, deletes for files gone from
// disk, then a full Pass 2 once every commit is in.
func (p *Pipeline) IndexAll(ctx context.Context) (*Stats, error) {
	start := time.Now()

	p.progress.OnDiscoveryStart()
	changes, err := p.detector.DetectChanges(ctx, nil)
	if err != nil {
		return nil, err
	}
	p.progress.OnDiscoveryComplete(changes)

	changed := changes.Changed()
	stats := &Stats{
		FilesDiscovered: len(changed) + len(changes.Unchanged),
		FilesUnchanged:  len(changes.Unchanged),
	}

	p.progress.OnFileProcessingStart(len(changed))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for _, path := range changed {
		g.Go(func() error {
			res, _, err := p.indexFile(gctx, path)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.add(res)
			mu.Unlock()
			p.progress.OnFileProcessed(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	for _, path := range changes.Deleted {
		if _, _, err := p.deleteFile(ctx, path); err != nil {
			return nil, err
		}
		stats.FilesDeleted++
	}

	p.progress.OnResolutionStart()
	stats.Resolution, err = p.resolver.Resolve(ctx, resolver.Scope{All: true})
	if err != nil {
		return nil, err
	}
	p.progress.OnResolutionComplete(stats.Resolution)

	if err := p.store.MarkIndexed(ctx, time.Now()); err != nil {
		return nil, err
	}
	p.notify(append(changed, changes.Deleted...))

	stats.ProcessingTimeSeconds = time.Since(start).Seconds()
	p.progress.OnComplete(stats)
	return stats, nil
}

// HandleEvent applies one file change and the Pass 2 it implies. The disk
// decides: a "deleted" path that exists is reindexed and a "modified" path
// that is gone is deleted, so reordered events converge. A path with no
// stored record that is deleted is treated as a removed directory.
func (p *Pipeline) HandleEvent(ctx context.Context, ev Event) (*EventResult, error) {
	rel, err := model.NormalizePath(p.cfg.RootDir, ev.Path)
	if err != nil {
		return nil, err
	}

	var (
		res    *EventResult
		commit *storage.CommitResult
	)
	switch ev.Kind {
	case EventCreated, EventModified:
		res, commit, err = p.indexFile(ctx, rel)
	case EventDeleted:
		if p.exists(rel) {
			res, commit, err = p.indexFile(ctx, rel)
			break
		}
		hash, herr := p.store.FileHash(ctx, rel)
		if herr != nil {
			return nil, herr
		}
		if hash == "" {
			return p.deleteTree(ctx, rel)
		}
		res, commit, err = p.deleteFile(ctx, rel)
	default:
		return nil, fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
	if err != nil || commit == nil {
		return res, err
	}

	res.Resolution, err = p.resolveScoped(ctx, commit.ChangedNames(), []string{rel})
	if err != nil {
		return res, err
	}
	p.notify([]string{rel})
	return res, nil
}

// Backfill embeds symbols stored without vectors, batchSize texts per
// request, until none are left.
func (p *Pipeline) Backfill(ctx context.Context, batchSize int) (*BackfillStats, error) {
	if p.embedder == nil {
		return nil, fmt.Errorf("backfill requires an embedding provider")
	}
	if batchSize <= 0 {
		batchSize = p.batchSize()
	}

	total, err := p.store.CountUnembedded(ctx)
	if err != nil {
		return nil, err
	}
	p.progress.OnEmbeddingStart(total)

	stats := &BackfillStats{}
	for {
		symbols, err := p.store.SymbolsWithoutEmbeddings(ctx, batchSize*8)
		if err != nil {
			return stats, err
		}
		if len(symbols) == 0 {
			break
		}

		texts := make([]string, len(symbols))
		for i, sym := range symbols {
			texts[i] = sym.EmbeddingText()
		}

		progressCh := make(chan embed.BatchProgress, 1)
		forwarded := make(chan struct{})
		go func(base int) {
			defer close(forwarded)
			for bp := range progressCh {
				p.progress.OnEmbeddingProgress(base + bp.ProcessedTexts)
			}
		}(stats.Embedded)
		vectors, err := embed.EmbedWithProgress(ctx, p.embedder, texts, embed.EmbedModePassage, batchSize, progressCh)
		close(progressCh)
		<-forwarded
		if err != nil {
			return stats, fmt.Errorf("failed to embed backfill batch: %w", err)
		}

		embs := make([]storage.Embedding, len(symbols))
		for i, sym := range symbols {
			embs[i] = storage.Embedding{
				SymbolID: sym.ID,
				Model:    p.embedder.Model(),
				TextHash: model.ContentHash([]byte(texts[i])),
				Vector:   vectors[i],
			}
		}
		n, err := p.store.StoreEmbeddings(ctx, embs)
		if err != nil {
			return stats, err
		}
		stats.Embedded += n
		if n == 0 {
			break
		}
	}

	stats.Remaining, err = p.store.CountUnembedded(ctx)
	return stats, err
}

// begin registers a new job for path, cancelling the one in flight.
func (p *Pipeline) begin(ctx context.Context, path string) (context.Context, uint64, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.jobs[path]; ok {
		prev.cancel()
	}
	p.seq++
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{seq: p.seq, cancel: cancel}
	p.jobs[path] = j

	return jobCtx, j.seq, func() {
		cancel()
		p.mu.Lock()
		if p.jobs[path] == j {
			delete(p.jobs, path)
		}
		p.mu.Unlock()
	}
}

func (p *Pipeline) latest(path string, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[path]
	return ok && j.seq == seq
}

// commit runs fn if the job is still the latest for path. Once started the
// commit is not cancelled.
func (p *Pipeline) commit(ctx context.Context, path string, seq uint64, fn func(context.Context) (*storage.CommitResult, error)) (*storage.CommitResult, bool, error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	if !p.latest(path, seq) {
		return nil, false, nil
	}
	out, err := fn(context.WithoutCancel(ctx))
	return out, true, err
}

func (p *Pipeline) storedHash(ctx context.Context, path string) (string, error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	return p.store.FileHash(ctx, path)
}

// skip marks a file the pipeline could not read or parse. Its stored rows
// stay as they were and the run carries on.
func (p *Pipeline) skip(res *EventResult, err error) *EventResult {
	log.Printf("Warning: %v", err)
	res.Skipped = true
	res.Warnings = append(res.Warnings, err.Error())
	return res
}

// indexFile runs Pass 1 and the embedding step for one file and commits the
// result. The CommitResult is nil when nothing was written.
func (p *Pipeline) indexFile(ctx context.Context, path string) (*EventResult, *storage.CommitResult, error) {
	jobCtx, seq, done := p.begin(ctx, path)
	defer done()
	res := &EventResult{Path: path}

	abs := p.abs(path)
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return p.remove(ctx, path, seq, res)
	}
	if err != nil {
		return p.skip(res, fmt.Errorf("failed to stat %s: %w", path, err)), nil, nil
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return p.skip(res, fmt.Errorf("failed to read %s: %w", path, err)), nil, nil
	}
	hash := model.ContentHash(src)

	stored, err := p.storedHash(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if stored == hash {
		res.Unchanged = true
		return res, nil, nil
	}

	parsed, err := extraction.ParseFile(jobCtx, p.registry, path, src)
	if err != nil {
		if jobCtx.Err() != nil {
			res.Superseded = true
			return res, nil, nil
		}
		return p.skip(res, fmt.Errorf("skipping %s: %w", path, err)), nil, nil
	}
	res.Warnings = append(res.Warnings, parsed.Warnings...)

	update := newFileUpdate(parsed, &model.File{
		Path:         path,
		Language:     parsed.Language,
		Hash:         hash,
		Size:         info.Size(),
		LastModified: info.ModTime().UnixNano(),
		Content:      string(src),
	})

	var embedErr error
	update.Embeddings, res.Embedded, res.Reused, embedErr = p.embedSymbols(jobCtx, path, parsed.Symbols)
	if jobCtx.Err() != nil {
		res.Superseded = true
		return res, nil, nil
	}
	if embedErr != nil {
		log.Printf("Warning: failed to embed %s, symbols stored without vectors: %v", path, embedErr)
		res.Warnings = append(res.Warnings, fmt.Sprintf("embedding failed: %v", embedErr))
	}

	commit, ok, err := p.commit(ctx, path, seq, func(c context.Context) (*storage.CommitResult, error) {
		return p.store.CommitFile(c, update)
	})
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		res.Superseded = true
		return res, nil, nil
	}

	res.Symbols = len(parsed.Symbols)
	res.Relationships = len(parsed.Relationships)
	res.Pending = len(parsed.Pending)
	return res, commit, nil
}

func (p *Pipeline) deleteFile(ctx context.Context, path string) (*EventResult, *storage.CommitResult, error) {
	_, seq, done := p.begin(ctx, path)
	defer done()
	return p.remove(ctx, path, seq, &EventResult{Path: path})
}

func (p *Pipeline) remove(ctx context.Context, path string, seq uint64, res *EventResult) (*EventResult, *storage.CommitResult, error) {
	commit, ok, err := p.commit(ctx, path, seq, func(c context.Context) (*storage.CommitResult, error) {
		return p.store.DeleteFile(c, path)
	})
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		res.Superseded = true
		return res, nil, nil
	}
	return res, commit, nil
}

// deleteTree removes every stored file under dir.
func (p *Pipeline) deleteTree(ctx context.Context, dir string) (*EventResult, error) {
	files, err := p.store.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	res := &EventResult{Path: dir}
	var names, paths []string
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for _, f := range files {
		if !strings.HasPrefix(f.Path, prefix) {
			continue
		}
		_, commit, err := p.deleteFile(ctx, f.Path)
		if err != nil {
			return nil, err
		}
		if commit != nil {
			names = append(names, commit.OldNames...)
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return res, nil
	}

	res.Resolution, err = p.resolveScoped(ctx, names, paths)
	if err != nil {
		return res, err
	}
	p.notify(paths)
	return res, nil
}

func (p *Pipeline) resolveScoped(ctx context.Context, names, paths []string) (*resolver.Stats, error) {
	sort.Strings(names)
	return p.resolver.Resolve(context.WithoutCancel(ctx), resolver.Scope{CalleeNames: names, FilePaths: paths})
}

// embedSymbols returns the embeddings for a file's embeddable symbols.
// Stored vectors are reused when the embedded text is unchanged; the rest are
// computed. On error the reused embeddings are still returned.
func (p *Pipeline) embedSymbols(ctx context.Context, path string, symbols []*model.Symbol) ([]storage.Embedding, int, int, error) {
	if p.embedder == nil {
		return nil, 0, 0, nil
	}
	modelName := p.embedder.Model()

	prev, err := p.store.EmbeddingsForFile(ctx, path)
	if err != nil {
		log.Printf("Warning: failed to load stored embeddings of %s: %v", path, err)
	}
	byText := make(map[string]storage.Embedding, len(prev))
	for _, e := range prev {
		if e.Model == modelName {
			byText[e.TextHash] = e
		}
	}

	var (
		out     []storage.Embedding
		texts   []string
		pending []storage.Embedding
	)
	for _, sym := range symbols {
		if !sym.Embeddable() {
			continue
		}
		text := sym.EmbeddingText()
		e := storage.Embedding{SymbolID: sym.ID, Model: modelName, TextHash: model.ContentHash([]byte(text))}
		if stored, ok := byText[e.TextHash]; ok {
			e.Vector = stored.Vector
			out = append(out, e)
			continue
		}
		texts = append(texts, text)
		pending = append(pending, e)
	}
	reused := len(out)
	if len(texts) == 0 {
		return out, 0, reused, nil
	}

	vectors, err := embed.EmbedWithProgress(ctx, p.embedder, texts, embed.EmbedModePassage, p.batchSize(), nil)
	if err != nil {
		return out, 0, reused, err
	}
	for i := range pending {
		pending[i].Vector = vectors[i]
	}
	return append(out, pending...), len(pending), reused, nil
}

func (p *Pipeline) notify(paths []string) {
	if p.onChange != nil && len(paths) > 0 {
		p.onChange(paths)
	}
}

func (p *Pipeline) exists(path string) bool {
	info, err := os.Stat(p.abs(path))
	return err == nil && !info.IsDir()
}

func (p *Pipeline) abs(path string) string {
	return filepath.Join(p.cfg.RootDir, filepath.FromSlash(path))
}

func (p *Pipeline) workers() int {
	if p.cfg.Workers > 0 {
		return p.cfg.Workers
	}
	return 1
}

func (p *Pipeline) batchSize() int {
	if p.cfg.EmbedBatchSize > 0 {
		return p.cfg.EmbedBatchSize
	}
	return 64
}

// newFileUpdate packages one Pass-1 result for CommitFile.
func newFileUpdate(res *extraction.Result, file *model.File) *storage.FileUpdate {
	ids := make([]string, 0, len(res.Types))
	for id := range res.Types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	types := make([]*model.TypeInfo, 0, len(ids))
	for _, id := range ids {
		types = append(types, &model.TypeInfo{
			SymbolID:     id,
			ResolvedType: res.Types[id],
			Language:     res.Language,
			IsInferred:   true,
		})
	}

	return &storage.FileUpdate{
		File:          file,
		Symbols:       res.Symbols,
		Relationships: res.Relationships,
		Pending:       res.Pending,
		Identifiers:   res.Identifiers,
		Types:         types,
	}
}
