// Package engine wires the memory store, retrieval index, embedder and
// extraction pipeline into a single explicit instance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rcliao/lore-memory/internal/embedding"
	"github.com/rcliao/lore-memory/internal/extract"
	"github.com/rcliao/lore-memory/internal/index"
	"github.com/rcliao/lore-memory/internal/model"
	"github.com/rcliao/lore-memory/internal/store"
)

// DefaultDedupThreshold is the similarity at or above which an extracted
// candidate counts as a near-duplicate of an existing memory.
const DefaultDedupThreshold = 0.92

// DefaultEmbedTimeout bounds a single embedding call.
const DefaultEmbedTimeout = 10 * time.Second

// Options configures an Engine. Only Embedder is required.
type Options struct {
	Embedder       embedding.Embedder
	Classifier     extract.Classifier
	Index          index.Index
	Logger         *slog.Logger
	Clock          func() time.Time
	EmbedTimeout   time.Duration
	DedupThreshold float64
	MaxCandidates  int
	AdvanceClock   bool
}

// Engine is the memory system for one process. It is safe for concurrent use.
type Engine struct {
	store      *store.SQLiteStore
	index      index.Index
	embedder   embedding.Embedder
	classifier extract.Classifier
	logger     *slog.Logger
	now        func() time.Time
	opts       Options

	// extractMu keeps the dedup check and the write of one turn atomic
	// with respect to other turns.
	extractMu sync.Mutex
}

// Open opens (or creates) the database at path and returns a ready engine.
func Open(path string, opts Options) (*Engine, error) {
	var storeOpts []store.Option
	if opts.Clock != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Clock))
	}
	st, err := store.NewSQLiteStore(path, storeOpts...)
	if err != nil {
		return nil, err
	}
	e, err := New(st, opts)
	if err != nil {
		st.Close()
		return nil, err
	}
	return e, nil
}

// New builds an engine over an open store and loads every stored vector
// into the retrieval index.
func New(st *store.SQLiteStore, opts Options) (*Engine, error) {
	if opts.Embedder == nil {
		return nil, errors.New("engine: embedder is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultEmbedTimeout
	}
	if opts.DedupThreshold <= 0 {
		opts.DedupThreshold = DefaultDedupThreshold
	}
	if opts.Classifier == nil {
		opts.Classifier = extract.NewHeuristic(extract.Options{MaxCandidates: opts.MaxCandidates})
	}
	if opts.Index == nil {
		opts.Index = index.NewFlat()
	}

	e := &Engine{
		store:      st,
		index:      opts.Index,
		embedder:   opts.Embedder,
		classifier: opts.Classifier,
		logger:     opts.Logger,
		now:        opts.Clock,
		opts:       opts,
	}
	if err := e.loadIndex(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadIndex(ctx context.Context) error {
	all, err := e.store.List(ctx, store.ListParams{})
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	for _, m := range all {
		if err := e.index.Put(ctx, entryFor(m)); err != nil {
			return fmt.Errorf("load index: %w", err)
		}
	}
	e.logger.Debug("retrieval index loaded", "memories", len(all))
	return nil
}

// Close releases the store and any embedder resources.
func (e *Engine) Close() error {
	if c, ok := e.embedder.(interface{ Close() }); ok {
		c.Close()
	}
	return e.store.Close()
}

// Store embeds content and persists a new memory. The memory is visible to
// RetrieveRelevant as soon as Store returns.
func (e *Engine) Store(ctx context.Context, typ model.MemoryType, name, content string) (*model.Memory, error) {
	if !typ.Valid() {
		return nil, invalidType(typ)
	}
	vec, err := e.embed(ctx, content)
	if err != nil {
		return nil, err
	}
	return e.put(ctx, store.PutParams{Type: typ, Name: strings.TrimSpace(name), Content: content, Embedding: vec})
}

func (e *Engine) put(ctx context.Context, p store.PutParams) (*model.Memory, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = e.now()
	}
	mem, err := e.store.Put(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := e.index.Put(ctx, entryFor(*mem)); err != nil {
		// Keep store and index in step: a memory that cannot be ranked is not kept.
		if rmErr := e.store.Rm(ctx, mem.ID); rmErr != nil {
			e.logger.Error("rollback after index failure", "id", mem.ID, "error", rmErr)
		}
		return nil, fmt.Errorf("%w: index memory: %v", model.ErrStorage, err)
	}
	e.logger.Debug("memory stored", "id", mem.ID, "type", mem.Type, "name", mem.Name)
	return mem, nil
}

// Get returns one memory by id.
func (e *Engine) Get(ctx context.Context, id string) (*model.Memory, error) {
	return e.store.Get(ctx, id)
}

// GetByType returns the limit newest memories of typ. An unknown type or a
// non-positive limit yields an empty slice.
func (e *Engine) GetByType(ctx context.Context, typ model.MemoryType, limit int) ([]model.Memory, error) {
	if !typ.Valid() || limit <= 0 {
		return []model.Memory{}, nil
	}
	return e.store.List(ctx, store.ListParams{Type: typ, Limit: limit})
}

// List returns the limit newest memories across all types.
func (e *Engine) List(ctx context.Context, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		return []model.Memory{}, nil
	}
	return e.store.List(ctx, store.ListParams{Limit: limit})
}

// Stats aggregates the store as of now; Recent24h counts memories created in
// the trailing 24 hours.
func (e *Engine) Stats(ctx context.Context) (*model.MemoryStats, error) {
	return e.store.Stats(ctx, e.now().Add(-24*time.Hour))
}

// Info describes the underlying database.
func (e *Engine) Info(ctx context.Context) (*store.DBInfo, error) {
	return e.store.Info(ctx)
}

// Touch marks a memory as referenced now. Unknown ids are ignored.
func (e *Engine) Touch(ctx context.Context, id string) error {
	return e.touchAt(ctx, id, e.now())
}

func (e *Engine) touchAt(ctx context.Context, id string, at time.Time) error {
	ok, err := e.store.Touch(ctx, id, at)
	if err != nil {
		return err
	}
	if ok {
		e.index.Touch(id, at)
	}
	return nil
}

// Correct replaces a memory's content and re-embeds it. ID and CreatedAt are kept.
func (e *Engine) Correct(ctx context.Context, id, content string) (*model.Memory, error) {
	vec, err := e.embed(ctx, content)
	if err != nil {
		return nil, err
	}
	mem, err := e.store.UpdateContent(ctx, id, content, vec)
	if err != nil {
		return nil, err
	}
	if err := e.index.Put(ctx, entryFor(*mem)); err != nil {
		return nil, fmt.Errorf("%w: index memory: %v", model.ErrStorage, err)
	}
	return mem, nil
}

// Remove deletes a memory from the store and the index.
func (e *Engine) Remove(ctx context.Context, id string) error {
	if err := e.store.Rm(ctx, id); err != nil {
		return err
	}
	return e.index.Remove(ctx, id)
}

// embed runs the embedder under the configured timeout and returns a
// unit-length vector.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.EmbedTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, model.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", model.ErrEmbeddingUnavailable)
	}
	return embedding.Normalize(vec), nil
}

func invalidType(t model.MemoryType) error {
	return fmt.Errorf("%w: %q", model.ErrInvalidType, t)
}

func entryFor(m model.Memory) index.Entry {
	return index.Entry{
		ID:               m.ID,
		Type:             m.Type,
		Vector:           m.Embedding,
		CreatedAt:        m.CreatedAt,
		LastReferencedAt: m.LastReferencedAt,
	}
}
