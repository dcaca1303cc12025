package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/lore-memory/internal/model"
)

// AppendWorld records a world-state observation at the current time.
func (e *Engine) AppendWorld(ctx context.Context, key, value string) (*model.WorldStateEntry, error) {
	return e.store.AppendWorld(ctx, key, value, time.Time{})
}

// WorldSnapshot returns the limit most recent world-state entries across all
// keys, newest first.
func (e *Engine) WorldSnapshot(ctx context.Context, limit int) ([]model.WorldStateEntry, error) {
	return e.store.WorldSnapshot(ctx, limit)
}

// WorldHistory returns the limit most recent values of key, newest first.
func (e *Engine) WorldHistory(ctx context.Context, key string, limit int) ([]model.WorldStateEntry, error) {
	return e.store.WorldHistory(ctx, key, limit)
}

// CurrentWorld returns the latest value of every key.
func (e *Engine) CurrentWorld(ctx context.Context) ([]model.WorldStateEntry, error) {
	return e.store.CurrentWorld(ctx)
}

// NewSessionID returns a fresh conversation session id.
func NewSessionID() string {
	return uuid.NewString()
}

// RecordTurn logs one exchange together with the ids of the memories that
// were retrieved for it.
func (e *Engine) RecordTurn(ctx context.Context, sessionID, userText, responseText string, retrieved []string) (*model.Turn, error) {
	return e.store.AppendTurn(ctx, model.Turn{
		SessionID:    sessionID,
		UserText:     userText,
		ResponseText: responseText,
		Retrieved:    retrieved,
	})
}

// History returns the newest limit turns of a session, oldest first.
func (e *Engine) History(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	return e.store.Turns(ctx, sessionID, limit)
}
