package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/lore-memory/internal/store"
)

// ImportResult counts what Import wrote and what it skipped as already present.
type ImportResult struct {
	Memories int `json:"memories"`
	World    int `json:"world"`
	Skipped  int `json:"skipped"`
}

// Export dumps every memory and the whole world timeline.
func (e *Engine) Export(ctx context.Context) (*store.Export, error) {
	return e.store.ExportAll(ctx)
}

// Import loads a document produced by Export. Memories keep their ids and
// timestamps and are re-embedded with the current embedder. Records already
// present are skipped, so importing the same document twice is harmless.
// The document is validated before anything is written.
func (e *Engine) Import(ctx context.Context, doc *store.Export) (*ImportResult, error) {
	if err := validateExport(doc); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for _, m := range doc.Memories {
		if m.ID != "" {
			exists, err := e.store.Has(ctx, m.ID)
			if err != nil {
				return res, err
			}
			if exists {
				res.Skipped++
				continue
			}
		}
		vec, err := e.embed(ctx, m.Content)
		if err != nil {
			return res, fmt.Errorf("import memory %s: %w", m.ID, err)
		}
		if _, err := e.put(ctx, store.PutParams{
			ID:               m.ID,
			Type:             m.Type,
			Name:             m.Name,
			Content:          m.Content,
			Embedding:        vec,
			CreatedAt:        m.CreatedAt,
			LastReferencedAt: m.LastReferencedAt,
		}); err != nil {
			return res, fmt.Errorf("import memory %s: %w", m.ID, err)
		}
		res.Memories++
	}

	for _, w := range doc.World {
		exists, err := e.store.HasWorldEntry(ctx, w.Key, w.Value, w.RecordedAt)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}
		if _, err := e.store.AppendWorld(ctx, w.Key, w.Value, w.RecordedAt); err != nil {
			return res, fmt.Errorf("import world %q: %w", w.Key, err)
		}
		res.World++
	}

	e.logger.Info("import complete", "memories", res.Memories, "world", res.World, "skipped", res.Skipped)
	return res, nil
}

// validateExport rejects documents Import could not load idempotently.
// World entries are matched on their recorded time, so one without a time
// would be appended again on every import.
func validateExport(doc *store.Export) error {
	if doc.Version != 0 && doc.Version != store.ExportVersion {
		return fmt.Errorf("unsupported export version %d", doc.Version)
	}
	for _, m := range doc.Memories {
		if !m.Type.Valid() {
			return fmt.Errorf("import memory %s: %w", m.ID, invalidType(m.Type))
		}
	}
	for i, w := range doc.World {
		if strings.TrimSpace(w.Key) == "" {
			return fmt.Errorf("import world entry %d: key is required", i)
		}
		if w.RecordedAt.IsZero() {
			return fmt.Errorf("import world entry %d (%q): recorded_at is required", i, w.Key)
		}
	}
	return nil
}
