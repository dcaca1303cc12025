package store

import (
	"context"
	"testing"

	"github.com/rcliao/lore-memory/internal/model"
)

func TestSearch_Basic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, PutParams{Type: model.TypeCharacter, Name: "Elowen", Content: "Elowen is a healer who will tend the wounded"})
	s.Put(ctx, PutParams{Type: model.TypeLocation, Name: "Rivendell", Content: "A valley where elves tend gardens"})
	s.Put(ctx, PutParams{Type: model.TypeItem, Name: "Glamdring", Content: "An ancient sword"})

	// Search by content
	results, err := s.Search(ctx, SearchParams{Query: "tend"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Search with type filter
	results, err = s.Search(ctx, SearchParams{Query: "tend", Type: model.TypeLocation})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Name != "Rivendell" {
		t.Fatalf("expected Rivendell only, got %v", results)
	}

	// Search by name
	results, err = s.Search(ctx, SearchParams{Query: "glamdring"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	// No results
	results, err = s.Search(ctx, SearchParams{Query: "dragon"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestSearch_SubstringFallback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, PutParams{Type: model.TypeItem, Name: "Glamdring", Content: "An ancient sword"})

	// "amdr" is not a whole token, so FTS misses and LIKE finds it.
	results, err := s.Search(ctx, SearchParams{Query: "amdr"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result from fallback, got %d", len(results))
	}
}

func TestSearch_OperatorsAreQuoted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Put(ctx, PutParams{Type: model.TypeEvent, Content: "The gate opened AND the army marched"})

	if _, err := s.Search(ctx, SearchParams{Query: `gate" OR NEAR(`}); err != nil {
		t.Fatalf("search with operator characters: %v", err)
	}
	results, _ := s.Search(ctx, SearchParams{Query: "  "})
	if len(results) != 0 {
		t.Errorf("expected empty query to return nothing, got %d", len(results))
	}
}
