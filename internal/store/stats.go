package store

import (
	"context"
	"os"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

// Stats counts memories in total, per type, and created at or after since.
// ByType only holds types that have at least one memory.
func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (*model.MemoryStats, error) {
	st := &model.MemoryStats{ByType: map[model.MemoryType]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories); err != nil {
		return nil, storageErr("count memories", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE created_at >= ?`, since.UnixNano()).Scan(&st.Recent24h); err != nil {
		return nil, storageErr("count recent memories", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM memories GROUP BY type`)
	if err != nil {
		return nil, storageErr("count by type", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, storageErr("count by type", err)
		}
		st.ByType[model.MemoryType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("count by type", err)
	}

	return st, nil
}

// DBInfo describes the database file.
type DBInfo struct {
	Path         string `json:"db_path"`
	SizeBytes    int64  `json:"db_size_bytes"`
	WorldEntries int    `json:"world_entries"`
	Turns        int    `json:"turns"`
}

// Info returns file-level database details.
func (s *SQLiteStore) Info(ctx context.Context) (*DBInfo, error) {
	info := &DBInfo{Path: s.path}
	if fi, err := os.Stat(s.path); err == nil {
		info.SizeBytes = fi.Size()
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM world_state`).Scan(&info.WorldEntries); err != nil {
		return nil, storageErr("count world state", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&info.Turns); err != nil {
		return nil, storageErr("count turns", err)
	}
	return info, nil
}
