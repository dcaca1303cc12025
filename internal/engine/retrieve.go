package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
	"github.com/rcliao/lore-memory/internal/store"
)

// RetrieveRelevant returns the limit memories most similar to query, best
// first, and marks each as referenced. Ties on similarity are broken by the
// most recent reference, then the newest creation time, then the highest id.
func (e *Engine) RetrieveRelevant(ctx context.Context, query string, limit int) ([]model.ScoredMemory, error) {
	return e.retrieve(ctx, query, "", limit)
}

// RetrieveRelevantOfType is RetrieveRelevant restricted to one memory type.
// An unknown type yields no results.
func (e *Engine) RetrieveRelevantOfType(ctx context.Context, query string, typ model.MemoryType, limit int) ([]model.ScoredMemory, error) {
	if !typ.Valid() {
		return []model.ScoredMemory{}, nil
	}
	return e.retrieve(ctx, query, typ, limit)
}

func (e *Engine) retrieve(ctx context.Context, query string, typ model.MemoryType, limit int) ([]model.ScoredMemory, error) {
	out, err := e.rank(ctx, query, typ, limit)
	if err != nil {
		return nil, err
	}
	if err := e.touchRanked(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// rank loads the limit best matches for query without marking them referenced.
func (e *Engine) rank(ctx context.Context, query string, typ model.MemoryType, limit int) ([]model.ScoredMemory, error) {
	if limit <= 0 || e.index.Len() == 0 {
		return []model.ScoredMemory{}, nil
	}
	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.index.Search(ctx, vec, limit, typ)
	if err != nil {
		return nil, err
	}

	out := make([]model.ScoredMemory, 0, len(hits))
	for _, h := range hits {
		mem, err := e.store.Get(ctx, h.ID)
		if errors.Is(err, model.ErrNotFound) {
			// Deleted between search and load.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, model.ScoredMemory{Memory: *mem, Similarity: h.Similarity})
	}
	return out, nil
}

// touchRanked marks ranked memories as referenced. Reference times are
// staggered by rank so repeating the query reproduces the same order.
func (e *Engine) touchRanked(ctx context.Context, ranked []model.ScoredMemory) error {
	now := e.now()
	for i := range ranked {
		at := now.Add(-time.Duration(i))
		if err := e.touchAt(ctx, ranked[i].ID, at); err != nil {
			return err
		}
		ranked[i].LastReferencedAt = &at
	}
	return nil
}

// Search finds memories by keyword over names and content. An empty typ
// searches every type; an unknown one, like a non-positive limit, yields no
// results.
func (e *Engine) Search(ctx context.Context, query string, typ model.MemoryType, limit int) ([]model.Memory, error) {
	if limit <= 0 || (typ != "" && !typ.Valid()) {
		return []model.Memory{}, nil
	}
	return e.store.Search(ctx, store.SearchParams{Query: query, Type: typ, Limit: limit})
}
