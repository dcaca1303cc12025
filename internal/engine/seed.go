package engine

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/lore-memory/internal/model"
)

//go:embed default_seed.yaml
var defaultSeed []byte

// Seed is the starting lore of a world: memories plus initial world state.
type Seed struct {
	Memories []SeedMemory `yaml:"memories"`
	World    []SeedWorld  `yaml:"world"`
}

// SeedMemory is one memory in a seed file.
type SeedMemory struct {
	Type    model.MemoryType `yaml:"type"`
	Name    string           `yaml:"name"`
	Content string           `yaml:"content"`
}

// SeedWorld is one world-state entry in a seed file.
type SeedWorld struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// DefaultSeed returns the built-in Havenbrook seed.
func DefaultSeed() *Seed {
	s, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(fmt.Sprintf("default seed: %v", err))
	}
	return s
}

// LoadSeed reads a seed from a YAML file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and validates a YAML seed.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, m := range s.Memories {
		t, err := model.ParseType(string(m.Type))
		if err != nil {
			return nil, fmt.Errorf("seed memory %d: %w", i, err)
		}
		s.Memories[i].Type = t
		if m.Content == "" {
			return nil, fmt.Errorf("seed memory %d: content is required", i)
		}
	}
	for i, w := range s.World {
		if w.Key == "" {
			return nil, fmt.Errorf("seed world %d: key is required", i)
		}
	}
	return &s, nil
}

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Applied  bool `json:"applied"`
	Memories int  `json:"memories"`
	World    int  `json:"world"`
}

// Seed writes s into the store. Unless force is set it does nothing when the
// store already holds any memory.
func (e *Engine) Seed(ctx context.Context, s *Seed, force bool) (*SeedResult, error) {
	res := &SeedResult{}
	if !force {
		stats, err := e.Stats(ctx)
		if err != nil {
			return nil, err
		}
		if stats.TotalMemories > 0 {
			return res, nil
		}
	}

	res.Applied = true
	for _, m := range s.Memories {
		if _, err := e.Store(ctx, m.Type, m.Name, m.Content); err != nil {
			return res, fmt.Errorf("seed %s %q: %w", m.Type, m.Name, err)
		}
		res.Memories++
	}
	for _, w := range s.World {
		if _, err := e.AppendWorld(ctx, w.Key, w.Value); err != nil {
			return res, fmt.Errorf("seed world %q: %w", w.Key, err)
		}
		res.World++
	}
	e.logger.Info("world seeded", "memories", res.Memories, "world", res.World)
	return res, nil
}
