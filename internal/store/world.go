package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

const worldColumns = `id, key, value, recorded_at`

// AppendWorld records a new world-state observation. Entries are never
// updated or deleted; recordedAt zero means now.
func (s *SQLiteStore) AppendWorld(ctx context.Context, key, value string, recordedAt time.Time) (*model.WorldStateEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("world-state key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO world_state (key, value, recorded_at) VALUES (?, ?, ?)`,
		key, value, recordedAt.UnixNano())
	if err != nil {
		return nil, storageErr("append world state", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("append world state", err)
	}

	return &model.WorldStateEntry{
		ID:         id,
		Key:        key,
		Value:      value,
		RecordedAt: time.Unix(0, recordedAt.UnixNano()).UTC(),
	}, nil
}

// WorldSnapshot returns the most recent limit entries across all keys, newest
// first. The same key may appear more than once.
func (s *SQLiteStore) WorldSnapshot(ctx context.Context, limit int) ([]model.WorldStateEntry, error) {
	if limit <= 0 {
		return []model.WorldStateEntry{}, nil
	}
	return s.queryWorld(ctx, "world snapshot",
		`SELECT `+worldColumns+` FROM world_state
		 ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
}

// WorldHistory returns the most recent limit values recorded for key, newest first.
func (s *SQLiteStore) WorldHistory(ctx context.Context, key string, limit int) ([]model.WorldStateEntry, error) {
	if limit <= 0 {
		return []model.WorldStateEntry{}, nil
	}
	return s.queryWorld(ctx, "world history",
		`SELECT `+worldColumns+` FROM world_state WHERE key = ?
		 ORDER BY recorded_at DESC, id DESC LIMIT ?`, key, limit)
}

// CurrentWorld returns the latest entry for every key, ordered by key.
func (s *SQLiteStore) CurrentWorld(ctx context.Context) ([]model.WorldStateEntry, error) {
	return s.queryWorld(ctx, "current world",
		`SELECT `+worldColumns+` FROM (
			SELECT `+worldColumns+`,
			       ROW_NUMBER() OVER (PARTITION BY key ORDER BY recorded_at DESC, id DESC) AS rn
			FROM world_state
		 ) WHERE rn = 1 ORDER BY key`)
}

// AllWorld returns the full timeline in recording order.
func (s *SQLiteStore) AllWorld(ctx context.Context) ([]model.WorldStateEntry, error) {
	return s.queryWorld(ctx, "export world",
		`SELECT `+worldColumns+` FROM world_state ORDER BY recorded_at, id`)
}

func (s *SQLiteStore) queryWorld(ctx context.Context, op, query string, args ...interface{}) ([]model.WorldStateEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	entries := []model.WorldStateEntry{}
	for rows.Next() {
		var e model.WorldStateEntry
		var recordedAt int64
		if err := rows.Scan(&e.ID, &e.Key, &e.Value, &recordedAt); err != nil {
			return nil, storageErr(op, err)
		}
		e.RecordedAt = time.Unix(0, recordedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return entries, nil
}

// HasWorldEntry reports whether an identical observation is already on the
// timeline. Import uses it to stay idempotent.
func (s *SQLiteStore) HasWorldEntry(ctx context.Context, key, value string, recordedAt time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM world_state WHERE key = ? AND value = ? AND recorded_at = ?`,
		key, value, recordedAt.UnixNano()).Scan(&n)
	if err != nil {
		return false, storageErr("lookup world state", err)
	}
	return n > 0, nil
}
