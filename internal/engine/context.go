package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/lore-memory/internal/model"
)

// contextCandidates is how many memories are ranked before packing.
const contextCandidates = 20

// minExcerpt is the smallest remainder, in characters, worth filling with a
// truncated memory.
const minExcerpt = 100

const ellipsis = "..."

// ContextMemory is a scored memory for context output.
type ContextMemory struct {
	ID      string           `json:"id"`
	Type    model.MemoryType `json:"type"`
	Name    string           `json:"name,omitempty"`
	Content string           `json:"content"`
	Score   float64          `json:"score"`
	Excerpt bool             `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context response.
type ContextResult struct {
	Budget   int                     `json:"budget"`
	Used     int                     `json:"used"`
	Memories []ContextMemory         `json:"memories"`
	World    []model.WorldStateEntry `json:"world_state"`
}

// Context assembles the memories most relevant to query, plus the current
// world state, within a token budget (1 token ≈ 4 characters). Only the
// memories that make it into the result are marked as referenced.
func (e *Engine) Context(ctx context.Context, query string, budget int) (*ContextResult, error) {
	if budget <= 0 {
		budget = 1000
	}
	charBudget := budget * 4

	world, err := e.CurrentWorld(ctx)
	if err != nil {
		return nil, err
	}
	result := &ContextResult{Budget: budget, Memories: []ContextMemory{}, World: world}

	scored, err := e.rank(ctx, query, "", contextCandidates)
	if err != nil {
		return nil, err
	}

	// Greedy packing into budget, in rank order. Lengths are in runes.
	used := 0
	packed := 0
	for _, s := range scored {
		cm := ContextMemory{
			ID:      s.ID,
			Type:    s.Type,
			Name:    s.Name,
			Content: s.Content,
			Score:   math.Round(s.Similarity*100) / 100,
		}
		contentLen := utf8.RuneCountInString(s.Content)
		if used+contentLen <= charBudget {
			result.Memories = append(result.Memories, cm)
			used += contentLen
			packed++
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerpt {
			r := []rune(s.Content)[:remaining-len(ellipsis)]
			cm.Content = string(r) + ellipsis
			cm.Excerpt = true
			result.Memories = append(result.Memories, cm)
			used += len(r) + len(ellipsis)
			packed++
		}
		break
	}

	if err := e.touchRanked(ctx, scored[:packed]); err != nil {
		return nil, err
	}
	result.Used = (used + 3) / 4
	return result, nil
}

// String renders the context as a plain-text block for prompt assembly.
func (r *ContextResult) String() string {
	var b strings.Builder
	if len(r.Memories) > 0 {
		b.WriteString("Relevant memories:\n")
		for _, m := range r.Memories {
			if m.Name != "" {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", m.Type, m.Name, m.Content)
			} else {
				fmt.Fprintf(&b, "- [%s] %s\n", m.Type, m.Content)
			}
		}
	}
	if len(r.World) > 0 {
		b.WriteString("World state:\n")
		for _, w := range r.World {
			fmt.Fprintf(&b, "- %s: %s\n", w.Key, w.Value)
		}
	}
	return b.String()
}
