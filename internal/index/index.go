// Package index ranks stored memory vectors against a query vector.
package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

// Backend names accepted by New.
const (
	BackendFlat    = "flat"
	BackendChromem = "chromem"
)

// Entry is the ranking view of one memory. Backends normalise Vector on Put.
type Entry struct {
	ID               string
	Type             model.MemoryType
	Vector           []float32
	CreatedAt        time.Time
	LastReferencedAt *time.Time
}

// Hit is one ranked result.
type Hit struct {
	ID         string
	Type       model.MemoryType
	Similarity float64
}

// Index holds one vector per memory id. Implementations are safe for
// concurrent use. Search returns hits in rank order: similarity desc,
// LastReferencedAt desc (never referenced sorts oldest), CreatedAt desc, ID desc.
type Index interface {
	Put(ctx context.Context, e Entry) error
	Remove(ctx context.Context, id string) error
	// Touch records a reference time; unknown ids are ignored.
	Touch(id string, at time.Time)
	// Search ranks entries of type typ (all types when typ is empty).
	// limit <= 0 yields no hits.
	Search(ctx context.Context, query []float32, limit int, typ model.MemoryType) ([]Hit, error)
	Len() int
}

// New returns an empty index for the named backend ("" means flat).
func New(backend string) (Index, error) {
	switch backend {
	case "", BackendFlat:
		return NewFlat(), nil
	case BackendChromem:
		return NewChromem()
	default:
		return nil, fmt.Errorf("unknown index backend %q", backend)
	}
}

type scored struct {
	entry Entry // ranking metadata only; Vector is left nil
	sim   float64
}

// rank sorts candidates into the total order described on Index and
// truncates to limit.
func rank(cands []scored, limit int) []Hit {
	sort.Slice(cands, func(i, j int) bool {
		return before(cands[i], cands[j])
	})
	if limit < len(cands) {
		cands = cands[:limit]
	}
	hits := make([]Hit, len(cands))
	for i, c := range cands {
		hits[i] = Hit{ID: c.entry.ID, Type: c.entry.Type, Similarity: c.sim}
	}
	return hits
}

func before(a, b scored) bool {
	if a.sim != b.sim {
		return a.sim > b.sim
	}
	ar, br := a.entry.LastReferencedAt, b.entry.LastReferencedAt
	switch {
	case ar != nil && br == nil:
		return true
	case ar == nil && br != nil:
		return false
	case ar != nil && br != nil && !ar.Equal(*br):
		return ar.After(*br)
	}
	if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
		return a.entry.CreatedAt.After(b.entry.CreatedAt)
	}
	return a.entry.ID > b.entry.ID
}

// meta copies the ranking fields of e without its vector.
func meta(e *Entry) Entry {
	c := Entry{ID: e.ID, Type: e.Type, CreatedAt: e.CreatedAt}
	if e.LastReferencedAt != nil {
		t := *e.LastReferencedAt
		c.LastReferencedAt = &t
	}
	return c
}
