package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rcliao/lore-memory/internal/embedding"
	"github.com/rcliao/lore-memory/internal/model"
)

// Chromem delegates similarity scoring to an in-process chromem-go collection.
// Ranking metadata (reference and creation times) stays in a side table so
// the tie-break order matches Flat.
//
// Zero vectors and vectors whose dimension differs from the collection's are
// kept out of chromem and score 0.
type Chromem struct {
	mu      sync.RWMutex
	col     *chromem.Collection
	entries map[string]*Entry
	dims    int
}

// NewChromem returns an empty chromem-backed index.
func NewChromem() (*Chromem, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(
		"memories",
		nil, // no metadata
		nil, // vectors are supplied by the caller
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Chromem{col: col, entries: make(map[string]*Entry)}, nil
}

func (c *Chromem) Put(ctx context.Context, e Entry) error {
	vec := embedding.Normalize(e.Vector)
	m := meta(&e)

	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[e.ID]
	if c.dims == 0 && !embedding.IsZero(vec) {
		c.dims = len(vec)
	}
	if c.indexable(vec) {
		err := c.col.AddDocument(ctx, chromem.Document{
			ID:        e.ID,
			Metadata:  map[string]string{"type": string(e.Type)},
			Embedding: vec,
		})
		if err != nil {
			return fmt.Errorf("add document: %w", err)
		}
	} else if existed {
		if err := c.col.Delete(ctx, nil, nil, e.ID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	}
	c.entries[e.ID] = &m
	return nil
}

func (c *Chromem) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return nil
	}
	delete(c.entries, id)
	if err := c.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (c *Chromem) Touch(id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[id]; ok {
		t := at
		e.LastReferencedAt = &t
	}
}

func (c *Chromem) Search(ctx context.Context, query []float32, limit int, typ model.MemoryType) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := embedding.Normalize(query)

	c.mu.RLock()
	defer c.mu.RUnlock()

	sims := make(map[string]float64)
	if n := c.col.Count(); n > 0 && c.indexable(q) {
		var where map[string]string
		if typ != "" {
			where = map[string]string{"type": string(typ)}
		}
		// chromem-go requires nResults <= collection size; ask for everything
		// so ties at the cut-off are broken by our own order.
		results, err := c.col.QueryEmbedding(ctx, q, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem query: %w", err)
		}
		for _, r := range results {
			sims[r.ID] = float64(r.Similarity)
		}
	}

	cands := make([]scored, 0, len(c.entries))
	for id, e := range c.entries {
		if typ != "" && e.Type != typ {
			continue
		}
		cands = append(cands, scored{entry: meta(e), sim: sims[id]})
	}
	return rank(cands, limit), nil
}

func (c *Chromem) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Chromem) indexable(v []float32) bool {
	return len(v) > 0 && len(v) == c.dims && !embedding.IsZero(v)
}
