// Package extract turns conversational text into typed memory candidates and
// world-state observations.
package extract

import (
	"context"

	"github.com/rcliao/lore-memory/internal/model"
)

// Candidate is a proposed memory. Type may fall outside the closed set when
// produced by a third-party classifier; callers quarantine such candidates.
type Candidate struct {
	Type    model.MemoryType `json:"type"`
	Name    string           `json:"name"`
	Content string           `json:"content"`
}

// WorldDelta is a proposed world-state observation.
type WorldDelta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Classification is everything a classifier found in one piece of text.
type Classification struct {
	Candidates []Candidate  `json:"candidates"`
	World      []WorldDelta `json:"world"`
}

// Classifier assigns memory types to spans of text. Implementations must be
// deterministic for a given version.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (Classification, error) {
	return f(ctx, text)
}

// timesOfDay is the in-world clock cycle.
var timesOfDay = []string{"morning", "midday", "afternoon", "evening", "night", "dawn"}

// NextTimeOfDay returns the period following current. ok is false when
// current is not a known period.
func NextTimeOfDay(current string) (next string, ok bool) {
	for i, t := range timesOfDay {
		if t == current {
			return timesOfDay[(i+1)%len(timesOfDay)], true
		}
	}
	return "", false
}
