package store

import (
	"context"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

// ExportVersion identifies the export document layout.
const ExportVersion = 1

// Export is a portable dump of memories and the world timeline.
// Embeddings are omitted; importers re-embed content.
type Export struct {
	Version    int                     `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Memories   []model.Memory          `json:"memories"`
	World      []model.WorldStateEntry `json:"world_state"`
}

// ExportAll returns every memory (oldest first) and the full world timeline.
func (s *SQLiteStore) ExportAll(ctx context.Context) (*Export, error) {
	memories, err := s.queryMemories(ctx, "export memories",
		`SELECT `+memoryColumns+` FROM memories ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	world, err := s.AllWorld(ctx)
	if err != nil {
		return nil, err
	}
	return &Export{
		Version:    ExportVersion,
		ExportedAt: s.now(),
		Memories:   memories,
		World:      world,
	}, nil
}
