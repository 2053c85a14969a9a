package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

const chromemCollection = "symbols"

// chromemIndex keeps vectors in a chromem-go collection, optionally persisted
// to a directory. Changes are buffered per transaction and applied after the
// SQLite commit; a crash in between is repaired by the integrity check.
type chromemIndex struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
}

func newChromemIndex(path string, reset bool) (*chromemIndex, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database at %s: %w", path, err)
		}
	}

	if reset {
		if err := db.DeleteCollection(chromemCollection); err != nil {
			return nil, fmt.Errorf("failed to reset collection: %w", err)
		}
	}
	collection, err := db.GetOrCreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &chromemIndex{db: db, collection: collection}, nil
}

func (c *chromemIndex) Name() string { return "vector" }

func (c *chromemIndex) Begin(tx *sql.Tx) VectorBatch {
	return &chromemBatch{index: c}
}

func (c *chromemIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// QueryEmbedding rejects n larger than the collection.
	if n := c.collection.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	docs, err := c.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	hits := make([]VectorHit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, VectorHit{SymbolID: d.ID, Distance: 1 - float64(d.Similarity)})
	}
	return hits, nil
}

func (c *chromemIndex) Count(ctx context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.Count(), nil
}

func (c *chromemIndex) Rebuild(ctx context.Context, entries []VectorEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	collection, err := c.db.CreateCollection(chromemCollection, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	c.collection = collection

	for _, e := range entries {
		if err := c.add(ctx, e.SymbolID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

func (c *chromemIndex) Close() error { return nil }

func (c *chromemIndex) add(ctx context.Context, id string, vec []float32) error {
	doc := chromem.Document{ID: id, Content: id, Embedding: vec}
	if err := c.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add vector for symbol %s: %w", id, err)
	}
	return nil
}

type chromemOp struct {
	id     string
	vec    []float32
	delete bool
}

type chromemBatch struct {
	index *chromemIndex
	ops   []chromemOp
}

func (b *chromemBatch) Upsert(id string, vec []float32) error {
	b.ops = append(b.ops, chromemOp{id: id, vec: vec})
	return nil
}

func (b *chromemBatch) Delete(ids ...string) error {
	for _, id := range ids {
		b.ops = append(b.ops, chromemOp{id: id, delete: true})
	}
	return nil
}

func (b *chromemBatch) Commit(ctx context.Context) error {
	c := b.index
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, op := range b.ops {
		// AddDocument overwrites by id; Delete of a missing id is a no-op.
		if op.delete {
			if err := c.collection.Delete(ctx, nil, nil, op.id); err != nil {
				return fmt.Errorf("failed to delete vector for symbol %s: %w", op.id, err)
			}
			continue
		}
		if err := c.add(ctx, op.id, op.vec); err != nil {
			return err
		}
	}
	b.ops = nil
	return nil
}
