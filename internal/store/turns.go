package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rcliao/lore-memory/internal/model"
)

// AppendTurn logs one conversational exchange.
func (s *SQLiteStore) AppendTurn(ctx context.Context, t model.Turn) (*model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.CreatedAt = time.Unix(0, t.CreatedAt.UnixNano()).UTC()
	if t.ID == "" {
		t.ID = s.newID(t.CreatedAt)
	}

	var retrieved *string
	if len(t.Retrieved) > 0 {
		b, _ := json.Marshal(t.Retrieved)
		s := string(b)
		retrieved = &s
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, user_text, response_text, retrieved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, t.UserText, t.ResponseText, retrieved, t.CreatedAt.UnixNano())
	if err != nil {
		return nil, storageErr("insert turn", err)
	}
	return &t, nil
}

// Turns returns the newest limit turns of a session in chronological order.
func (s *SQLiteStore) Turns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		return []model.Turn{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_text, response_text, retrieved, created_at FROM (
			SELECT * FROM turns WHERE session_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at, id`, sessionID, limit)
	if err != nil {
		return nil, storageErr("list turns", err)
	}
	defer rows.Close()

	turns := []model.Turn{}
	for rows.Next() {
		var t model.Turn
		var retrieved sql.NullString
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.UserText, &t.ResponseText, &retrieved, &createdAt); err != nil {
			return nil, storageErr("list turns", err)
		}
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		if retrieved.Valid {
			json.Unmarshal([]byte(retrieved.String), &t.Retrieved)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list turns", err)
	}
	return turns, nil
}
