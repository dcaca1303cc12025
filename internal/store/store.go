// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

// PutParams holds parameters for storing a memory.
type PutParams struct {
	ID               string // empty means generate a new ULID
	Type             model.MemoryType
	Name             string
	Content          string
	Embedding        []float32
	CreatedAt        time.Time // zero means now
	LastReferencedAt *time.Time
}

// ListParams holds parameters for listing memories.
type ListParams struct {
	Type  model.MemoryType // empty means every type
	Limit int              // <= 0 means no limit
}

// SearchParams holds parameters for keyword search.
type SearchParams struct {
	Query string
	Type  model.MemoryType
	Limit int // <= 0 means 20
}

// Store defines the memory storage interface.
type Store interface {
	// Put stores a new memory. Returns the created memory.
	Put(ctx context.Context, p PutParams) (*model.Memory, error)

	// Get retrieves a memory by id.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// List lists memories newest first.
	List(ctx context.Context, p ListParams) ([]model.Memory, error)

	// Touch records a reference to a memory. Reports whether the id exists.
	Touch(ctx context.Context, id string, at time.Time) (bool, error)

	// UpdateContent replaces a memory's content and embedding in place.
	UpdateContent(ctx context.Context, id, content string, embedding []float32) (*model.Memory, error)

	// Rm deletes a memory.
	Rm(ctx context.Context, id string) error

	// Close closes the store.
	Close() error
}
