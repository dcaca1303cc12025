package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/lore-memory/internal/extract"
	"github.com/rcliao/lore-memory/internal/model"
	"github.com/rcliao/lore-memory/internal/store"
)

const clockKey = "current_time"

// ExtractResult reports what one turn's extraction wrote.
type ExtractResult struct {
	Stored      []model.Memory          `json:"stored"`
	Touched     []string                `json:"touched"`
	World       []model.WorldStateEntry `json:"world"`
	Quarantined int                     `json:"quarantined"`
	Warnings    []string                `json:"warnings"`
}

func (r *ExtractResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Extract classifies one conversational turn and commits what it finds.
// World deltas are appended as-is. Candidates of an unknown type are
// quarantined, and candidates too close to an existing memory of the same
// type touch that memory instead of creating a new one.
//
// Extract never fails: any fault ends the turn's extraction and is reported
// in Warnings alongside whatever was already written.
func (e *Engine) Extract(ctx context.Context, userText, responseText string) (res ExtractResult) {
	res = ExtractResult{
		Stored:   []model.Memory{},
		Touched:  []string{},
		World:    []model.WorldStateEntry{},
		Warnings: []string{},
	}

	e.extractMu.Lock()
	defer e.extractMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			res.warn("extraction aborted: %v", r)
		}
		for _, w := range res.Warnings {
			e.logger.Warn("extraction", "warning", w)
		}
		e.logger.Debug("turn extracted",
			"stored", len(res.Stored), "touched", len(res.Touched),
			"world", len(res.World), "quarantined", res.Quarantined)
	}()

	text := strings.TrimSpace(strings.Join([]string{userText, responseText}, "\n"))
	if text == "" {
		return res
	}
	c, err := e.classifier.Classify(ctx, text)
	if err != nil {
		res.warn("classify: %v", err)
		return res
	}

	clockSet := false
	for _, d := range c.World {
		entry, err := e.store.AppendWorld(ctx, d.Key, d.Value, time.Time{})
		if err != nil {
			res.warn("append world %q: %v", d.Key, err)
			return res
		}
		res.World = append(res.World, *entry)
		if entry.Key == clockKey {
			clockSet = true
		}
	}

	for _, cand := range c.Candidates {
		if !cand.Type.Valid() {
			res.Quarantined++
			res.warn("quarantined candidate %q: %v: %q", cand.Name, model.ErrInvalidType, cand.Type)
			continue
		}
		if strings.TrimSpace(cand.Content) == "" {
			continue
		}
		if err := e.commit(ctx, cand, &res); err != nil {
			res.warn("store %s %q: %v", cand.Type, cand.Name, err)
			return res
		}
	}

	if e.opts.AdvanceClock && !clockSet {
		if err := e.advanceClock(ctx, &res); err != nil {
			res.warn("advance clock: %v", err)
		}
	}
	return res
}

// commit writes cand unless an existing memory of the same type is a near
// duplicate, in which case that memory is touched.
func (e *Engine) commit(ctx context.Context, cand extract.Candidate, res *ExtractResult) error {
	vec, err := e.embed(ctx, cand.Content)
	if err != nil {
		return err
	}
	hits, err := e.index.Search(ctx, vec, 1, cand.Type)
	if err != nil {
		return err
	}
	if len(hits) > 0 && hits[0].Similarity >= e.opts.DedupThreshold {
		if err := e.Touch(ctx, hits[0].ID); err != nil {
			return err
		}
		res.Touched = append(res.Touched, hits[0].ID)
		return nil
	}
	mem, err := e.put(ctx, store.PutParams{
		Type:      cand.Type,
		Name:      strings.TrimSpace(cand.Name),
		Content:   cand.Content,
		Embedding: vec,
	})
	if err != nil {
		return err
	}
	res.Stored = append(res.Stored, *mem)
	return nil
}

func (e *Engine) advanceClock(ctx context.Context, res *ExtractResult) error {
	cur, err := e.store.WorldHistory(ctx, clockKey, 1)
	if err != nil || len(cur) == 0 {
		return err
	}
	next, ok := extract.NextTimeOfDay(cur[0].Value)
	if !ok {
		return nil
	}
	entry, err := e.store.AppendWorld(ctx, clockKey, next, time.Time{})
	if err != nil {
		return err
	}
	res.World = append(res.World, *entry)
	return nil
}
