package index

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/rcliao/lore-memory/internal/embedding"
	"github.com/rcliao/lore-memory/internal/model"
)

// Flat is an exact brute-force index: every search scores every entry.
type Flat struct {
	mu      sync.RWMutex
	entries map[string]*flatEntry
}

// flatEntry keeps the unit vector widened to float64 once, at Put, so a
// search allocates nothing per entry.
type flatEntry struct {
	Entry
	vec []float64
}

// NewFlat returns an empty flat index.
func NewFlat() *Flat {
	return &Flat{entries: make(map[string]*flatEntry)}
}

func (f *Flat) Put(_ context.Context, e Entry) error {
	fe := &flatEntry{Entry: meta(&e), vec: widen(embedding.Normalize(e.Vector))}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[e.ID] = fe
	return nil
}

func (f *Flat) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	return nil
}

func (f *Flat) Touch(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[id]; ok {
		t := at
		e.LastReferencedAt = &t
	}
}

func (f *Flat) Search(_ context.Context, query []float32, limit int, typ model.MemoryType) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := widen(embedding.Normalize(query))

	f.mu.RLock()
	cands := make([]scored, 0, len(f.entries))
	for _, e := range f.entries {
		if typ != "" && e.Type != typ {
			continue
		}
		// Both sides are unit vectors, so cosine reduces to the dot product.
		cands = append(cands, scored{entry: meta(&e.Entry), sim: dot(q, e.vec)})
	}
	f.mu.RUnlock()

	return rank(cands, limit), nil
}

func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return floats.Dot(a, b)
}
