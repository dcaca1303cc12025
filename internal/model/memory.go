// Package model defines the core memory data types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// MemoryType is the kind of fact a memory records.
type MemoryType string

const (
	TypeCharacter MemoryType = "character"
	TypeLocation  MemoryType = "location"
	TypeItem      MemoryType = "item"
	TypeEvent     MemoryType = "event"
	TypeDialogue  MemoryType = "dialogue"
)

// Types lists every valid memory type in display order.
var Types = []MemoryType{TypeCharacter, TypeLocation, TypeItem, TypeEvent, TypeDialogue}

// Valid reports whether t is one of the five memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case TypeCharacter, TypeLocation, TypeItem, TypeEvent, TypeDialogue:
		return true
	}
	return false
}

func (t MemoryType) String() string { return string(t) }

// ParseType parses a memory type name, case-insensitively.
func ParseType(s string) (MemoryType, error) {
	t := MemoryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q (valid: character, location, item, event, dialogue)", ErrInvalidType, s)
	}
	return t, nil
}

// Memory represents a stored memory entry.
type Memory struct {
	ID               string     `json:"id"`
	Type             MemoryType `json:"type"`
	Name             string     `json:"name"`
	Content          string     `json:"content"`
	Embedding        []float32  `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	LastReferencedAt *time.Time `json:"last_referenced_at,omitempty"`
}

// ScoredMemory is a memory returned by a similarity query.
type ScoredMemory struct {
	Memory
	Similarity float64 `json:"similarity"`
}

// MemoryStats summarises the memory table at query time.
type MemoryStats struct {
	TotalMemories int                `json:"total_memories"`
	ByType        map[MemoryType]int `json:"by_type"`
	Recent24h     int                `json:"recent_memories"`
}
